// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/soulbound/internal/platform/cmd"
	"github.com/louisbranch/soulbound/internal/services/registry/app"
)

// Config holds MCP command configuration.
type Config struct {
	HTTPAddr    string `env:"SOULBOUND_MCP_HTTP_ADDR"     envDefault:"localhost:8096"`
	Transport   string `env:"SOULBOUND_MCP_TRANSPORT"     envDefault:"stdio"`
	CallerToken string `env:"SOULBOUND_MCP_CALLER_TOKEN"`
	DBPath      string `env:"SOULBOUND_REGISTRY_DB_PATH"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	runtimeCfg, err := app.LoadRuntimeConfigFromEnv()
	if err != nil {
		return err
	}
	if cfg.DBPath != "" {
		runtimeCfg.DBPath = cfg.DBPath
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		return app.RunMCP(ctx, runtimeCfg, app.MCPConfig{
			Transport:   cfg.Transport,
			HTTPAddr:    cfg.HTTPAddr,
			CallerToken: cfg.CallerToken,
		})
	})
}
