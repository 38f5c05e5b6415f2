// Package cmd holds the startup plumbing shared by the registry and MCP
// commands: env-then-flags configuration, log prefixes, and tracing around
// the service run loop.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"

	"github.com/louisbranch/soulbound/internal/platform/config"
	"github.com/louisbranch/soulbound/internal/platform/otel"
	"github.com/louisbranch/soulbound/internal/platform/timeouts"
)

// Service names. They name the tracer resource ("soulbound-<service>") and
// the log prefix.
const (
	ServiceRegistry = "registry"
	ServiceMCP      = "mcp"
)

// ParseConfig fills cfg from SOULBOUND_* variables. Commands call it before
// registering flags so flag defaults show the environment values.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs applies command-line flags on top of the environment values.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag set is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// LogPrefix returns the log prefix for service, e.g. "[REGISTRY] ".
func LogPrefix(service string) string {
	return "[" + strings.ToUpper(strings.TrimSpace(service)) + "] "
}

// RunWithTelemetry installs tracing for service, calls run, and flushes
// spans once run returns. run's error is returned unchanged.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := otel.Setup(ctx, "soulbound-"+service)
	if err != nil {
		return err
	}
	defer flushTelemetry(service, shutdown)
	return run(ctx)
}

func flushTelemetry(service string, shutdown otel.Shutdown) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Printf("%s: flush traces: %v", service, err)
	}
}
