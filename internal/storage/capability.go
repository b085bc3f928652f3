package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/josephgoksu/dayplan/internal/task"
)

// sentinelTaskID never matches a stored row; probes write against it.
const sentinelTaskID int64 = -1

// Capability is the runtime-discovered state of the position column.
type Capability int32

const (
	CapabilityUnknown Capability = iota
	CapabilitySupported
	CapabilityAbsent
)

func (c Capability) String() string {
	switch c {
	case CapabilitySupported:
		return "supported"
	case CapabilityAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// positionSupport tracks whether the backend has a position column.
// Absent is sticky: once observed, position reads and writes are skipped for
// the rest of the adapter's lifetime to avoid repeated failed round-trips.
type positionSupport struct {
	state  atomic.Int32
	logger *slog.Logger
	store  string
}

func (p *positionSupport) load() Capability {
	return Capability(p.state.Load())
}

func (p *positionSupport) absent() bool {
	return p.load() == CapabilityAbsent
}

func (p *positionSupport) markSupported() {
	p.state.CompareAndSwap(int32(CapabilityUnknown), int32(CapabilitySupported))
}

func (p *positionSupport) markAbsent(cause error) {
	if Capability(p.state.Swap(int32(CapabilityAbsent))) != CapabilityAbsent && p.logger != nil {
		p.logger.Warn("position column missing, falling back to time ordering",
			"backend", p.store, "error", cause)
	}
}

// reset forgets a previous discovery. Used after this process migrated the schema.
func (p *positionSupport) reset() {
	p.state.Store(int32(CapabilityUnknown))
}

// observe converts a missing-column failure into task.ErrPositionUnsupported
// and records the discovery. Other errors are returned unchanged.
func (p *positionSupport) observe(err error) error {
	if err == nil || !isMissingPositionColumn(err) {
		return err
	}
	p.markAbsent(err)
	return fmt.Errorf("%w: %v", task.ErrPositionUnsupported, err)
}

// isMissingPositionColumn is the single place that recognizes "the position
// column does not exist" across backends. Matched signatures:
//
//	SQLite:    "no such column: position", "has no column named position"
//	PostgREST: code PGRST204 (column not in schema cache) or Postgres 42703
//	           (undefined_column), with a message that names position
//
// Schema introspection differs between the backends, so detection relies on
// the error a write or ordered read produces.
func isMissingPositionColumn(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, task.ErrPositionUnsupported) {
		return true
	}

	var he *HostedError
	if errors.As(err, &he) {
		if he.Code != "PGRST204" && he.Code != "42703" {
			return false
		}
		return strings.Contains(strings.ToLower(he.Message), "position")
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such column: position") ||
		strings.Contains(msg, "has no column named position")
}
