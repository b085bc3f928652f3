package task

import "errors"

// Domain errors.
var (
	// ErrPositionUnsupported means the active backend's task table has no
	// position column. Callers should surface it as "run migrations" rather
	// than a generic failure.
	ErrPositionUnsupported = errors.New("ordering not supported: migration required")
	ErrNoFieldsToUpdate    = errors.New("no fields to update")
	ErrInvalidTask         = errors.New("invalid task")
)
