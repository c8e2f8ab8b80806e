package telemetry

import (
	"context"
	"testing"
)

func TestNewClientOptOut(t *testing.T) {
	t.Setenv(optOutEnvVar, "1")

	enabled := true
	client := NewClient("1.0.0", &enabled)

	if _, ok := client.(*NoOpClient); !ok {
		t.Error("opt-out env var should return NoOpClient regardless of settings")
	}
}

func TestNewClientTelemetryNotAskedDefaultsToDisabled(t *testing.T) {
	client := NewClient("1.0.0", nil)

	if _, ok := client.(*NoOpClient); !ok {
		t.Error("nil Telemetry setting should return NoOpClient")
	}
}

func TestNewClientTelemetryDisabledInSettings(t *testing.T) {
	disabled := false
	client := NewClient("1.0.0", &disabled)

	if _, ok := client.(*NoOpClient); !ok {
		t.Error("Telemetry=false should return NoOpClient")
	}
}

func TestNoOpClientMethodsDoNotPanic(_ *testing.T) {
	client := &NoOpClient{}
	client.TrackMineRun(3, 12)
	client.TrackReplayRun("merge", true)
	client.Close()
}

func TestWithClientAndGetClient(t *testing.T) {
	ctx := context.Background()
	client := &NoOpClient{}

	ctx = WithClient(ctx, client)
	if got := GetClient(ctx); got != client {
		t.Error("GetClient should return the client set with WithClient")
	}
}

func TestGetClientReturnsNoOpWhenNotSet(t *testing.T) {
	if _, ok := GetClient(context.Background()).(*NoOpClient); !ok {
		t.Error("GetClient should return NoOpClient when no client is set")
	}
}

func TestPostHogClientTrackMineRunSkipsWithNilInternalClient(_ *testing.T) {
	client := &PostHogClient{machineID: "test-id"}
	// internal posthog.Client is nil; must not panic
	client.TrackMineRun(1, 1)
	client.TrackReplayRun("rebase", false)
	client.Close()
}
