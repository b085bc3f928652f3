/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package types

import "time"

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose bool          `mapstructure:"verbose" yaml:"verbose"`
	Config  string        `mapstructure:"config" yaml:"config,omitempty"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" validate:"required"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage" validate:"required"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache" validate:"required"`
	Log     LogConfig     `mapstructure:"log" yaml:"log" validate:"required"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port            int           `mapstructure:"port" yaml:"port" validate:"required,min=1,max=65535"`
	AllowedOrigins  []string      `mapstructure:"allowedOrigins" yaml:"allowedOrigins" validate:"omitempty,dive,url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout" yaml:"shutdownTimeout" validate:"min=0"`
}

// StorageConfig selects the task backend. Only the section matching Backend is used.
type StorageConfig struct {
	Backend string       `mapstructure:"backend" yaml:"backend" validate:"required,oneof=sqlite hosted"`
	SQLite  SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
	Hosted  HostedConfig `mapstructure:"hosted" yaml:"hosted"`
}

// SQLiteConfig holds embedded store settings
type SQLiteConfig struct {
	Path        string `mapstructure:"path" yaml:"path"`
	AutoMigrate bool   `mapstructure:"autoMigrate" yaml:"autoMigrate"`
}

// HostedConfig holds settings for the hosted REST row API
type HostedConfig struct {
	URL     string        `mapstructure:"url" yaml:"url" validate:"omitempty,url"`
	APIKey  string        `mapstructure:"apiKey" yaml:"apiKey"`
	Table   string        `mapstructure:"table" yaml:"table" validate:"omitempty,min=1"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=0"`
	// ReorderConcurrency bounds parallel row updates during a reorder
	ReorderConcurrency int `mapstructure:"reorderConcurrency" yaml:"reorderConcurrency" validate:"omitempty,min=1,max=64"`
	// ReorderFunction names a server-side function that applies a reorder atomically.
	// Empty keeps the row-by-row path.
	ReorderFunction string `mapstructure:"reorderFunction" yaml:"reorderFunction"`
}

// CacheConfig holds read cache settings
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxEntries    int           `mapstructure:"maxEntries" yaml:"maxEntries" validate:"min=1"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gt=0"`
	SweepInterval time.Duration `mapstructure:"sweepInterval" yaml:"sweepInterval" validate:"gt=0"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}
