package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/josephgoksu/dayplan/internal/app"
	"github.com/josephgoksu/dayplan/internal/cache"
	"github.com/josephgoksu/dayplan/internal/config"
	"github.com/josephgoksu/dayplan/internal/logger"
	"github.com/josephgoksu/dayplan/internal/storage"
	"github.com/josephgoksu/dayplan/types"
	"github.com/spf13/viper"
)

const (
	configName = ".dayplan"
	envPrefix  = "DAYPLAN"
)

// InitConfig reads in config file and ENV variables if set.
func InitConfig() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)                          // e.g., DAYPLAN_STORAGE_BACKEND
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // storage.backend -> STORAGE_BACKEND
	viper.AutomaticEnv()

	if cfgFileFlag := viper.GetString("config"); cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "No config file found. Using defaults and environment variables.")
		}
	} else {
		fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
	}
}

// GetConfig loads and validates the configuration from viper.
func GetConfig() (*types.AppConfig, error) {
	return config.Load(viper.GetViper())
}

// newLogger builds the process logger from cfg and installs it as the slog default.
func newLogger(cfg *types.AppConfig) (*slog.Logger, error) {
	log, err := logger.New(cfg.Log, cfg.Verbose, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)
	return log, nil
}

// services bundles everything a command needs to run task operations.
type services struct {
	cfg   *types.AppConfig
	log   *slog.Logger
	store storage.Adapter
	cache *cache.Cache
	tasks *app.TaskApp
}

func (s *services) Close() error {
	return s.store.Close()
}

// openServices loads config and wires storage, cache and the task service.
func openServices(ctx context.Context) (*services, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}

	c := cache.New(cache.Options{
		Enabled:       cfg.Cache.Enabled,
		MaxEntries:    cfg.Cache.MaxEntries,
		TTL:           cfg.Cache.TTL,
		SweepInterval: cfg.Cache.SweepInterval,
	})
	return &services{
		cfg:   cfg,
		log:   log,
		store: store,
		cache: c,
		tasks: app.NewTaskApp(app.NewContext(store, c, log)),
	}, nil
}
