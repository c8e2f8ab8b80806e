//go:build docker

package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"
)

// TestRuntime_FullLifecycle exercises EnsureImage/Create/Start/Exec/
// StopAndRemove against a real Docker daemon. Skipped by default; run with
// `go test -tags docker ./internal/sandbox/...` against an environment that
// has Docker available.
func TestRuntime_FullLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	r, err := New(Config{Image: "alpine:3", Workdir: "/tmp"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.StopAndRemove(ctx)

	if err := r.EnsureImage(ctx, "alpine:3"); err != nil {
		t.Fatalf("EnsureImage: %v", err)
	}
	if err := r.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	exitCode, output, err := r.Exec(ctx, "echo hello", "/tmp")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if exitCode != 0 {
		t.Errorf("exitCode = %d, want 0", exitCode)
	}
	if !strings.Contains(string(output), "hello") {
		t.Errorf("output = %q, want to contain %q", output, "hello")
	}

	if err := r.StopAndRemove(ctx); err != nil {
		t.Fatalf("StopAndRemove: %v", err)
	}
}
