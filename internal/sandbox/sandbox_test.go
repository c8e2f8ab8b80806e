package sandbox

import (
	"strings"
	"testing"
	"time"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{Image: "alpine"}.withDefaults()

	if cfg.CommandTimeout != 2*time.Minute {
		t.Errorf("CommandTimeout = %v, want 2m default", cfg.CommandTimeout)
	}
	if cfg.StartTimeout != 30*time.Second {
		t.Errorf("StartTimeout = %v, want 30s default", cfg.StartTimeout)
	}
	if cfg.MaxOutputBytes != 1<<20 {
		t.Errorf("MaxOutputBytes = %d, want 1MiB default", cfg.MaxOutputBytes)
	}
	if cfg.Workdir != "/workspace" {
		t.Errorf("Workdir = %q, want /workspace default", cfg.Workdir)
	}
}

func TestConfig_WithDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := Config{
		Image:          "alpine",
		Workdir:        "/repo",
		CommandTimeout: 5 * time.Second,
		StartTimeout:   time.Second,
		MaxOutputBytes: 128,
	}.withDefaults()

	if cfg.Workdir != "/repo" || cfg.CommandTimeout != 5*time.Second ||
		cfg.StartTimeout != time.Second || cfg.MaxOutputBytes != 128 {
		t.Errorf("withDefaults overrode an explicitly set field: %+v", cfg)
	}
}

func TestShellQuote_EscapesEmbeddedSingleQuotes(t *testing.T) {
	got := shellQuote(`echo 'hi there'`)
	want := `'echo '\''hi there'\'''`
	if got != want {
		t.Errorf("shellQuote() = %q, want %q", got, want)
	}
}

func TestExec_DenyListRejectsSudoWithoutInvokingDocker(t *testing.T) {
	r := &Runtime{cfg: Config{Image: "alpine"}.withDefaults()}

	exitCode, output, err := r.Exec(nil, "sudo rm file", "/workspace")
	if err != nil {
		t.Fatalf("Exec returned Go error for a deny-listed command: %v", err)
	}
	if exitCode != -1 {
		t.Errorf("exitCode = %d, want -1 for a denied command", exitCode)
	}
	if !strings.Contains(string(output), "sudo") {
		t.Errorf("output = %q, want a mention of the matched substring", output)
	}
}

func TestExec_DenyListRejectsForceRemove(t *testing.T) {
	r := &Runtime{cfg: Config{Image: "alpine"}.withDefaults()}

	exitCode, output, err := r.Exec(nil, "rm -rf /", "/workspace")
	if err != nil {
		t.Fatalf("Exec returned Go error for a deny-listed command: %v", err)
	}
	if exitCode != -1 {
		t.Errorf("exitCode = %d, want -1 for a denied command", exitCode)
	}
	if !strings.Contains(string(output), "-rf") {
		t.Errorf("output = %q, want a mention of the matched substring", output)
	}
}

func TestExecuteBashCommand_DenyListSurfacesInOutputNotError(t *testing.T) {
	r := &Runtime{cfg: Config{Image: "alpine"}.withDefaults()}

	output, err := r.ExecuteBashCommand(nil, "sudo rm file", "cleaning up")
	if err != nil {
		t.Fatalf("ExecuteBashCommand returned Go error for a deny-listed command: %v", err)
	}
	if !strings.Contains(output, "sudo") {
		t.Errorf("output = %q, want a mention of the matched substring", output)
	}
}
