// Package app provides the application layer that orchestrates task operations.
// This layer sits between the HTTP/CLI handlers and the storage, ordering and
// cache components, so handlers stay thin adapters.
package app

import (
	"log/slog"

	"github.com/josephgoksu/dayplan/internal/cache"
	"github.com/josephgoksu/dayplan/internal/position"
	"github.com/josephgoksu/dayplan/internal/storage"
)

// Context holds shared dependencies for all app services.
type Context struct {
	Store  storage.Adapter
	Engine *position.Engine
	Cache  *cache.Cache
	Logger *slog.Logger
}

// NewContext wires the position engine over store. A nil cache is replaced by
// a disabled one so callers never need to nil-check.
func NewContext(store storage.Adapter, c *cache.Cache, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = cache.New(cache.Options{Enabled: false})
	}
	return &Context{
		Store:  store,
		Engine: position.NewEngine(store, logger),
		Cache:  c,
		Logger: logger,
	}
}
