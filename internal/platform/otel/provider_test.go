package otel_test

import (
	"context"
	"testing"

	"github.com/louisbranch/soulbound/internal/platform/otel"
)

func TestSetupNoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("SOULBOUND_OTEL_ENDPOINT", "")
	t.Setenv("SOULBOUND_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "registry-test")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupNoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("SOULBOUND_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("SOULBOUND_OTEL_ENABLED", "false")

	shutdown, err := otel.Setup(context.Background(), "registry-test")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupCreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so nothing is exported.
	t.Setenv("SOULBOUND_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("SOULBOUND_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "registry-test")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupRejectsSampleRatioOutOfRange(t *testing.T) {
	t.Setenv("SOULBOUND_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("SOULBOUND_OTEL_ENABLED", "")
	t.Setenv("SOULBOUND_OTEL_SAMPLE_RATIO", "1.5")

	if _, err := otel.Setup(context.Background(), "registry-test"); err == nil {
		t.Fatal("expected sample ratio error")
	}
}
