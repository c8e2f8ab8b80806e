package cli

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const sigwinch = syscall.SIGWINCH

// newAttachCmd builds the debug subcommand that drops an operator into an
// interactive shell inside an already-running scenario container, for
// inspecting state a replay left behind without tearing it down first.
func newAttachCmd() *cobra.Command {
	var shellFlag string

	cmd := &cobra.Command{
		Use:   "attach <container-id>",
		Short: "Attach an interactive shell to a running scenario container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttach(cmd, args[0], shellFlag)
		},
	}

	cmd.Flags().StringVar(&shellFlag, "shell", "/bin/bash", "shell to exec inside the container")
	return cmd
}

// runAttach shells out to `docker exec -it` under a local pty rather than
// driving the Docker SDK's hijacked exec stream directly: a pty gives the
// remote shell real terminal semantics (job control, line editing) for free,
// and `docker exec` already does the attach-stream plumbing correctly.
func runAttach(cmd *cobra.Command, containerID, shell string) error {
	dockerCmd := exec.Command("docker", "exec", "-it", containerID, shell)

	ptmx, err := pty.Start(dockerCmd)
	if err != nil {
		return NewSilentError(fmt.Errorf("starting attach session: %w", err))
	}
	defer ptmx.Close()

	resize := make(chan os.Signal, 1)
	signal.Notify(resize, sigwinch)
	defer signal.Stop(resize)
	go func() {
		for range resize {
			_ = pty.InheritSize(os.Stdin, ptmx)
		}
	}()
	resize <- sigwinch // trigger an initial resize to match the current terminal

	stdin := int(os.Stdin.Fd())
	if term.IsTerminal(stdin) {
		prevState, err := term.MakeRaw(stdin)
		if err == nil {
			defer term.Restore(stdin, prevState)
		}
	}

	go func() { _, _ = io.Copy(ptmx, os.Stdin) }()
	_, _ = io.Copy(os.Stdout, ptmx)

	err = dockerCmd.Wait()
	if err != nil {
		return NewSilentError(fmt.Errorf("attach session exited: %w", err))
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "attach session closed")
	return nil
}
