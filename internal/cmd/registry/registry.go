// Package registry parses registry service flags and launches the service.
package registry

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/soulbound/internal/platform/cmd"
	"github.com/louisbranch/soulbound/internal/services/registry/app"
)

// Config holds registry command configuration.
type Config struct {
	Port    int    `env:"SOULBOUND_REGISTRY_PORT"    envDefault:"8095"`
	Storage string `env:"SOULBOUND_REGISTRY_STORAGE" envDefault:"sqlite"`
	DBPath  string `env:"SOULBOUND_REGISTRY_DB_PATH"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The registry HTTP server port")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "Storage backend: sqlite or memory")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// runtimeConfig loads the collection settings and applies command overrides.
func runtimeConfig(cfg Config) (app.RuntimeConfig, error) {
	runtimeCfg, err := app.LoadRuntimeConfigFromEnv()
	if err != nil {
		return app.RuntimeConfig{}, err
	}
	if cfg.Storage != "" {
		runtimeCfg.Storage = cfg.Storage
	}
	if cfg.DBPath != "" {
		runtimeCfg.DBPath = cfg.DBPath
	}
	return runtimeCfg, nil
}

// Run starts the registry HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	runtimeCfg, err := runtimeConfig(cfg)
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRegistry, func(ctx context.Context) error {
		return app.Run(ctx, cfg.Port, runtimeCfg)
	})
}
