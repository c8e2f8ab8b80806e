// Package cli wires the scenario-miner binary's subcommands together.
package cli

import (
	"fmt"
	"runtime"

	"github.com/scenario-miner/scenario-miner/internal/config"
	"github.com/scenario-miner/scenario-miner/internal/telemetry"
	"github.com/scenario-miner/scenario-miner/internal/versioncheck"
	"github.com/spf13/cobra"
)

// Version information, set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// SilentError wraps an error already printed to the user, so main.go's
// top-level error handler does not print it a second time.
type SilentError struct {
	Err error
}

func (e *SilentError) Error() string { return e.Err.Error() }
func (e *SilentError) Unwrap() error { return e.Err }

// NewSilentError wraps err as a SilentError.
func NewSilentError(err error) *SilentError {
	return &SilentError{Err: err}
}

// NewRootCmd builds the scenario-miner command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario-miner",
		Short: "Mine and replay Git scenarios",
		Long: `scenario-miner extracts reproducible scenarios from a repository's commit
history and replays them inside a sandboxed container as evaluation tasks
for a coding agent.`,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var telemetryEnabled *bool
			if cfg, err := config.Load(); err == nil {
				telemetryEnabled = cfg.Telemetry
			}
			client := telemetry.NewClient(Version, telemetryEnabled)
			cmd.SetContext(telemetry.WithClient(cmd.Context(), client))
			versioncheck.CheckAndNotify(cmd, Version)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			telemetry.GetClient(cmd.Context()).Close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newMineCmd())
	cmd.AddCommand(newReplayCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newAttachCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scenario-miner %s (%s)\n", Version, Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
