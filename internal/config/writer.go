package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/josephgoksu/dayplan/types"
	"gopkg.in/yaml.v3"
)

// redacted replaces secrets in rendered config.
const redacted = "********"

// Render serializes cfg as YAML. Secrets are masked unless showSecrets is set.
func Render(cfg types.AppConfig, showSecrets bool) ([]byte, error) {
	if !showSecrets && cfg.Storage.Hosted.APIKey != "" {
		cfg.Storage.Hosted.APIKey = redacted
	}
	cfg.Config = ""
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

// WriteDefault writes a config file containing every default to path.
// An existing file is left untouched unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	cfg := DefaultConfig()
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	content := append([]byte("# dayplan configuration\n"), body...)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	// 0600: the file may later hold the hosted API key.
	return os.WriteFile(path, content, 0600)
}

// DefaultConfig returns the configuration used when nothing is set.
// The SQLite path is left empty so it resolves at load time.
func DefaultConfig() types.AppConfig {
	return types.AppConfig{
		Server: types.ServerConfig{
			Port:            DefaultPort,
			AllowedOrigins:  []string{},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Storage: types.StorageConfig{
			Backend: DefaultBackend,
			SQLite:  types.SQLiteConfig{AutoMigrate: true},
			Hosted: types.HostedConfig{
				Table:              DefaultHostedTable,
				Timeout:            DefaultHostedTimeout,
				ReorderConcurrency: DefaultReorderConcurrency,
			},
		},
		Cache: types.CacheConfig{
			Enabled:       true,
			MaxEntries:    DefaultCacheMaxEntries,
			TTL:           DefaultCacheTTL,
			SweepInterval: DefaultCacheSweepInterval,
		},
		Log: types.LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
