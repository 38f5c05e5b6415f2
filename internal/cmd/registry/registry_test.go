package registry

import (
	"flag"
	"io"
	"path/filepath"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv("SOULBOUND_REGISTRY_PORT", "")
	t.Setenv("SOULBOUND_REGISTRY_STORAGE", "")
	t.Setenv("SOULBOUND_REGISTRY_DB_PATH", "")

	cfg, err := ParseConfig(flag.NewFlagSet("registry", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8095 {
		t.Fatalf("port = %d, want 8095", cfg.Port)
	}
	if cfg.Storage != "sqlite" {
		t.Fatalf("storage = %q, want sqlite", cfg.Storage)
	}
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SOULBOUND_REGISTRY_PORT", "9000")
	t.Setenv("SOULBOUND_REGISTRY_DB_PATH", "env.db")

	args := []string{"-port", "9100", "-storage", "memory", "-db-path", "flag.db"}
	cfg, err := ParseConfig(flag.NewFlagSet("registry", flag.ContinueOnError), args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9100 || cfg.Storage != "memory" || cfg.DBPath != "flag.db" {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestParseConfigRejectsUnknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("registry", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := ParseConfig(fs, []string{"-nope"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRuntimeConfigAppliesOverrides(t *testing.T) {
	t.Setenv("SOULBOUND_REGISTRY_STORAGE", "sqlite")
	t.Setenv("SOULBOUND_REGISTRY_DB_PATH", "")

	runtimeCfg, err := runtimeConfig(Config{Storage: "memory"})
	if err != nil {
		t.Fatalf("runtime config: %v", err)
	}
	if runtimeCfg.Storage != "memory" {
		t.Fatalf("storage = %q, want memory", runtimeCfg.Storage)
	}
	if runtimeCfg.DBPath != filepath.Join("data", "registry.db") {
		t.Fatalf("db path = %q", runtimeCfg.DBPath)
	}
}
