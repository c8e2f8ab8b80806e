// Package telemetry sends best-effort, anonymous usage counters for mining
// and replay runs, mirroring the opt-in PostHog client the CLI this project
// is descended from uses for its own commands.
package telemetry

import (
	"net"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"
)

var (
	// PostHogAPIKey is overridden at build time for production.
	PostHogAPIKey = "phc_development_key"
	// PostHogEndpoint is overridden at build time for production.
	PostHogEndpoint = "https://eu.i.posthog.com"
)

const optOutEnvVar = "SCENARIO_MINER_TELEMETRY_OPTOUT"

// Client records anonymous command/run events.
type Client interface {
	TrackMineRun(repositoryCount, scenarioCount int)
	TrackReplayRun(scenarioKind string, passed bool)
	Close()
}

// NoOpClient discards every event. It is returned whenever telemetry is
// disabled, opted out of via environment variable, or could not be set up.
type NoOpClient struct{}

func (n *NoOpClient) TrackMineRun(_, _ int)           {}
func (n *NoOpClient) TrackReplayRun(_ string, _ bool) {}
func (n *NoOpClient) Close()                          {}

type silentLogger struct{}

func (silentLogger) Logf(_ string, _ ...interface{})   {}
func (silentLogger) Debugf(_ string, _ ...interface{}) {}
func (silentLogger) Warnf(_ string, _ ...interface{})  {}
func (silentLogger) Errorf(_ string, _ ...interface{}) {}

// PostHogClient is the real telemetry client.
type PostHogClient struct {
	client    posthog.Client
	machineID string
	version   string
	mu        sync.RWMutex
}

// NewClient builds a Client based on opt-in settings. enabled comes from
// config.Config.Telemetry: nil or false returns a NoOpClient, matching the
// tri-state "not asked yet defaults to disabled" semantics the configuration
// layer uses.
//
//nolint:ireturn // factory returns NoOpClient or PostHogClient depending on settings
func NewClient(version string, enabled *bool) Client {
	if os.Getenv(optOutEnvVar) != "" {
		return &NoOpClient{}
	}
	if enabled == nil || !*enabled {
		return &NoOpClient{}
	}

	id, err := machineid.ProtectedID("scenario-miner")
	if err != nil {
		return &NoOpClient{}
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 100 * time.Millisecond,
		}).DialContext,
		TLSHandshakeTimeout:   100 * time.Millisecond,
		ResponseHeaderTimeout: 100 * time.Millisecond,
	}

	client, err := posthog.NewWithConfig(PostHogAPIKey, posthog.Config{
		Endpoint:           PostHogEndpoint,
		ShutdownTimeout:    100 * time.Millisecond,
		BatchUploadTimeout: 200 * time.Millisecond,
		Transport:          transport,
		Logger:             silentLogger{},
		DisableGeoIP:       posthog.Ptr(true),
		DefaultEventProperties: posthog.NewProperties().
			Set("tool_version", version).
			Set("os", runtime.GOOS).
			Set("arch", runtime.GOARCH),
	})
	if err != nil {
		return &NoOpClient{}
	}

	return &PostHogClient{
		client:    client,
		machineID: id,
		version:   version,
	}
}

// TrackMineRun records that a mining pass completed, with coarse-grained
// output size only — no repository names or file paths leave the machine.
func (p *PostHogClient) TrackMineRun(repositoryCount, scenarioCount int) {
	p.enqueue("mine_run_completed", posthog.NewProperties().
		Set("repository_count", repositoryCount).
		Set("scenario_count", scenarioCount))
}

// TrackReplayRun records the outcome of a single scenario replay.
func (p *PostHogClient) TrackReplayRun(scenarioKind string, passed bool) {
	p.enqueue("replay_run_completed", posthog.NewProperties().
		Set("scenario_kind", scenarioKind).
		Set("passed", passed))
}

func (p *PostHogClient) enqueue(event string, props posthog.Properties) {
	p.mu.RLock()
	id := p.machineID
	c := p.client
	p.mu.RUnlock()

	if c == nil {
		return
	}

	//nolint:errcheck // best-effort telemetry, failures should not affect the run
	_ = c.Enqueue(posthog.Capture{
		DistinctId: id,
		Event:      event,
		Properties: props,
	})
}

// Close flushes pending events.
func (p *PostHogClient) Close() {
	p.mu.RLock()
	c := p.client
	p.mu.RUnlock()

	if c != nil {
		_ = c.Close()
	}
}
