package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/josephgoksu/dayplan/types"
	"github.com/spf13/viper"
)

// validate is a single instance of Validate, it caches struct info
var validate = validator.New(validator.WithRequiredStructEnabled())

// Load applies defaults, unmarshals v into an AppConfig and validates it.
// The caller is responsible for pointing v at config files and env vars.
func Load(v *viper.Viper) (*types.AppConfig, error) {
	SetDefaults(v)

	var cfg types.AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Storage.Backend == BackendSQLite {
		cfg.Storage.SQLite.Path = ResolveSQLitePath(cfg.Storage.SQLite.Path)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct rules plus the cross-field rules validator tags can't express.
func Validate(cfg *types.AppConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch cfg.Storage.Backend {
	case BackendSQLite:
		if cfg.Storage.SQLite.Path == "" {
			return errors.New("invalid config: storage.sqlite.path is required for the sqlite backend")
		}
	case BackendHosted:
		if cfg.Storage.Hosted.URL == "" {
			return errors.New("invalid config: storage.hosted.url is required for the hosted backend")
		}
		if cfg.Storage.Hosted.APIKey == "" {
			return errors.New("invalid config: storage.hosted.apiKey is required for the hosted backend")
		}
	}
	return nil
}
