// Package config provides centralized configuration constants for dayplan.
// All default values should be defined here to ensure a single source of truth.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Storage backend names
const (
	// BackendSQLite is the embedded, transactional single-process store
	BackendSQLite = "sqlite"

	// BackendHosted is the hosted multi-tenant REST row API
	BackendHosted = "hosted"
)

// Default values for every recognized option.
const (
	DefaultPort            = 5001
	DefaultShutdownTimeout = 10 * time.Second

	DefaultBackend     = BackendSQLite
	DefaultSQLiteFile  = "tasks.db"
	DefaultHostedTable = "tasks"

	DefaultHostedTimeout      = 10 * time.Second
	DefaultReorderConcurrency = 8

	DefaultCacheMaxEntries    = 500
	DefaultCacheTTL           = 5 * time.Minute
	DefaultCacheSweepInterval = time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// SetDefaults registers defaults on v. Explicit values from file, env or flags win.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.allowedOrigins", []string{})
	v.SetDefault("server.shutdownTimeout", DefaultShutdownTimeout)

	v.SetDefault("storage.backend", DefaultBackend)
	v.SetDefault("storage.sqlite.path", "")
	v.SetDefault("storage.sqlite.autoMigrate", true)
	v.SetDefault("storage.hosted.url", "")
	v.SetDefault("storage.hosted.apiKey", "")
	v.SetDefault("storage.hosted.table", DefaultHostedTable)
	v.SetDefault("storage.hosted.timeout", DefaultHostedTimeout)
	v.SetDefault("storage.hosted.reorderConcurrency", DefaultReorderConcurrency)
	v.SetDefault("storage.hosted.reorderFunction", "")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.maxEntries", DefaultCacheMaxEntries)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.sweepInterval", DefaultCacheSweepInterval)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
}
