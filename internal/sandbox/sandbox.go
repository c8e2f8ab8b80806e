// Package sandbox owns a single Docker container for the lifetime of a
// mining/evaluation session and runs shell commands inside it. It is the
// only package in this repository that talks to the Docker Engine API.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"github.com/scenario-miner/scenario-miner/internal/logging"
	"github.com/scenario-miner/scenario-miner/internal/scenario"
	"github.com/scenario-miner/scenario-miner/redact"
)

// denyListedSubstrings are rejected pre-execution, without ever reaching the
// container. This is a coarse safety net, not a security boundary — the
// container itself is the boundary.
var denyListedSubstrings = []string{"sudo", "-rf"}

// pollInterval is how often Start polls container state while waiting for
// it to transition out of "created".
const pollInterval = 100 * time.Millisecond

// Config configures one Runtime.
type Config struct {
	// Image is the reference ensure_image/Create operate against.
	Image string
	// Env is passed through to the container on creation.
	Env []string
	// Workdir is the container working directory exec runs commands in by
	// default; the driver overrides it per scenario via ExecIn.
	Workdir string
	// CommandTimeout bounds every exec call via the `timeout` wrapper.
	CommandTimeout time.Duration
	// StartTimeout bounds the created->running poll loop.
	StartTimeout time.Duration
	// MaxOutputBytes truncates stdout+stderr before it is returned.
	MaxOutputBytes int
}

func (c Config) withDefaults() Config {
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 2 * time.Minute
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = 30 * time.Second
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = 1 << 20 // 1 MiB
	}
	if c.Workdir == "" {
		c.Workdir = "/workspace"
	}
	return c
}

// Runtime owns exactly one container. Not safe for concurrent use: callers
// must serialize Exec against one Runtime; separate scenarios running
// concurrently each get their own Runtime bound to their own container.
type Runtime struct {
	cli         *client.Client
	cfg         Config
	containerID string
}

// New constructs a Runtime bound to the local Docker daemon discovered via
// the standard DOCKER_HOST/DOCKER_* environment variables.
func New(cfg Config) (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, &scenario.EnvironmentError{Command: "docker client init", Err: err}
	}
	return &Runtime{cli: cli, cfg: cfg.withDefaults()}, nil
}

// EnsureImage pulls ref if it is not already present locally. A tag embedded
// in ref (name:tag) is preserved as-is; Docker's own reference parsing
// handles the split, so no client-side splitting is required beyond what
// ImagePull already does.
func (r *Runtime) EnsureImage(ctx context.Context, ref string) error {
	if _, _, err := r.cli.ImageInspectWithRaw(ctx, ref); err == nil {
		return nil
	}

	reader, err := r.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return &scenario.EnvironmentError{Command: "docker pull " + ref, Err: err}
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return &scenario.EnvironmentError{Command: "docker pull " + ref, Err: err}
	}
	return nil
}

// Create creates (but does not start) the container. The entrypoint is a
// no-op keepalive so the container stays up for the lifetime of the
// session regardless of what image it was built from.
func (r *Runtime) Create(ctx context.Context) error {
	created, err := r.cli.ContainerCreate(ctx,
		&container.Config{
			Image:      r.cfg.Image,
			Env:        r.cfg.Env,
			WorkingDir: r.cfg.Workdir,
			Entrypoint: []string{"tail", "-f", "/dev/null"},
			Tty:        false,
		},
		&container.HostConfig{},
		nil, nil, "",
	)
	if err != nil {
		return &scenario.EnvironmentError{Command: "docker create", Err: err}
	}
	r.containerID = created.ID
	return nil
}

// Start transitions the container created -> running, polling state at
// 100ms intervals until it observes "running", "exited" (fatal), or
// StartTimeout elapses.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.cli.ContainerStart(ctx, r.containerID, container.StartOptions{}); err != nil {
		return &scenario.EnvironmentError{Command: "docker start", Err: err}
	}

	deadline := time.Now().Add(r.cfg.StartTimeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		inspect, err := r.cli.ContainerInspect(ctx, r.containerID)
		if err != nil {
			return &scenario.EnvironmentError{Command: "docker inspect (start poll)", Err: err}
		}
		if inspect.State != nil {
			switch {
			case inspect.State.Running:
				return nil
			case inspect.State.Status == "exited":
				return &scenario.EnvironmentError{
					Command:  "docker start",
					ExitCode: inspect.State.ExitCode,
					Err:      fmt.Errorf("container exited during startup"),
				}
			}
		}
		if time.Now().After(deadline) {
			return scenario.NewTimeoutError("docker start")
		}
		select {
		case <-ctx.Done():
			return &scenario.EnvironmentError{Command: "docker start", Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

// Exec runs command under an unprivileged shell in workdir, enforcing the
// deny list, the hard timeout, and the output cap. It returns a non-nil
// error only for infrastructure failure (the container could not be
// reached); a non-zero exit code or a deny-list hit are reported through
// the return values, never as a Go error, so the caller can hand the
// result straight back to the agent it came from.
func (r *Runtime) Exec(ctx context.Context, command, workdir string) (exitCode int, output []byte, err error) {
	for _, substr := range denyListedSubstrings {
		if strings.Contains(command, substr) {
			denyErr := &scenario.PermissionError{Command: command, Matched: substr}
			return -1, []byte(denyErr.Error()), nil
		}
	}

	if workdir == "" {
		workdir = r.cfg.Workdir
	}

	wrapped := fmt.Sprintf("timeout %d /bin/bash -c %s", int(r.cfg.CommandTimeout.Seconds()), shellQuote(command))

	execCfg := container.ExecOptions{
		Cmd:          []string{"/bin/bash", "-c", wrapped},
		WorkingDir:   workdir,
		AttachStdout: true,
		AttachStderr: true,
	}

	created, err := r.cli.ContainerExecCreate(ctx, r.containerID, execCfg)
	if err != nil {
		return 0, nil, &scenario.EnvironmentError{Command: command, Err: err}
	}

	attach, err := r.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return 0, nil, &scenario.EnvironmentError{Command: command, Err: err}
	}
	defer attach.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, attach.Reader); err != nil {
		return 0, nil, &scenario.EnvironmentError{Command: command, Err: err}
	}

	inspect, err := r.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return 0, nil, &scenario.EnvironmentError{Command: command, Err: err}
	}

	captured := buf.Bytes()
	if len(captured) > r.cfg.MaxOutputBytes {
		captured = captured[:r.cfg.MaxOutputBytes]
	}
	captured = redact.Bytes(captured)

	// Exit code 124 is `timeout`'s own signal that it killed the command;
	// surfaced through the ordinary (exit_code, output) result rather than
	// as a Go error, matching exec's no-raise contract for in-container
	// failures.
	return inspect.ExitCode, captured, nil
}

// ExecuteBashCommand is the single callable exposed to an external agent
// driving a replay. reason is documentation only: it is logged at DEBUG for
// operator visibility but never interpreted or passed to the container.
func (r *Runtime) ExecuteBashCommand(ctx context.Context, command, reason string) (string, error) {
	logging.Debug(ctx, "agent executing command", "command", command, "reason", reason)

	exitCode, output, err := r.Exec(ctx, command, "")
	if err != nil {
		return "", err
	}
	if exitCode != 0 {
		return fmt.Sprintf("%s\n(exit code %d)", output, exitCode), nil
	}
	return string(output), nil
}

// StopAndRemove stops the container if running, then removes it. Safe to
// call on a Runtime whose container was never started.
func (r *Runtime) StopAndRemove(ctx context.Context) error {
	if r.containerID == "" {
		return nil
	}

	inspect, err := r.cli.ContainerInspect(ctx, r.containerID)
	if err == nil && inspect.State != nil && inspect.State.Running {
		if err := r.cli.ContainerStop(ctx, r.containerID, container.StopOptions{}); err != nil {
			return &scenario.EnvironmentError{Command: "docker stop", Err: err}
		}
	}

	if err := r.cli.ContainerRemove(ctx, r.containerID, container.RemoveOptions{Force: true}); err != nil {
		return &scenario.EnvironmentError{Command: "docker rm", Err: err}
	}
	return nil
}

// ContainerID returns the id of the owned container, empty until Create
// succeeds.
func (r *Runtime) ContainerID() string { return r.containerID }

// shellQuote wraps s in single quotes for embedding inside a `bash -c`
// argument, escaping any single quotes already present.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
