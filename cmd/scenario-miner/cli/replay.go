package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/scenario-miner/scenario-miner/internal/config"
	"github.com/scenario-miner/scenario-miner/internal/driver"
	"github.com/scenario-miner/scenario-miner/internal/logging"
	"github.com/scenario-miner/scenario-miner/internal/sandbox"
	"github.com/scenario-miner/scenario-miner/internal/scenario"
	"github.com/scenario-miner/scenario-miner/internal/summarize"
	"github.com/scenario-miner/scenario-miner/internal/telemetry"
	"github.com/spf13/cobra"
)

func newReplayCmd() *cobra.Command {
	var tableFlag string
	var repositoryFlag string
	var scenarioTypeFlag string
	var indexFlag int
	var imageFlag string
	var rebaseModeFlag string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay one scenario against a sandboxed container and print the verdict",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReplay(cmd, tableFlag, repositoryFlag, scenarioTypeFlag, indexFlag, imageFlag, rebaseModeFlag)
		},
	}

	cfg, err := config.Load()
	if err != nil {
		cfg = nil
	}
	defaultImage := ""
	defaultRebaseMode := "count-only"
	if cfg != nil {
		defaultImage = cfg.Image
		if cfg.RebaseEvaluationMode != "" {
			defaultRebaseMode = cfg.RebaseEvaluationMode
		}
	}

	cmd.Flags().StringVar(&tableFlag, "table", "", "path to the scenario table (JSON Lines)")
	cmd.Flags().StringVar(&repositoryFlag, "repository", "", "repository ID within the table")
	cmd.Flags().StringVar(&scenarioTypeFlag, "scenario-type", "", "file_commit_gram_chunk, file_commit_gram_rebase, merge, or cherry_pick")
	cmd.Flags().IntVar(&indexFlag, "index", 0, "0-based index within the scenario kind's list")
	cmd.Flags().StringVar(&imageFlag, "image", defaultImage, "container image to replay against")
	cmd.Flags().StringVar(&rebaseModeFlag, "rebase-eval-mode", defaultRebaseMode, "count-only or count-and-diff")

	for _, required := range []string{"table", "repository", "scenario-type"} {
		_ = cmd.MarkFlagRequired(required)
	}

	return cmd
}

func runReplay(cmd *cobra.Command, tablePath, repositoryID, scenarioType string, index int, image, rebaseMode string) error {
	ctx := cmd.Context()
	kind := scenario.Kind(scenarioType)

	table, repo, err := loadTableAndRepository(tablePath, repositoryID)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return NewSilentError(err)
	}

	payload, err := scenario.LoadScenario(table, repositoryID, kind, index)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return NewSilentError(err)
	}

	sandboxCfg := sandbox.Config{Image: image}
	if loaded, err := config.Load(); err == nil {
		sandboxCfg.CommandTimeout = loaded.CommandTimeout()
		sandboxCfg.StartTimeout = loaded.StartTimeout()
		sandboxCfg.MaxOutputBytes = loaded.MaxOutputBytes
	}

	runtime, err := sandbox.New(sandboxCfg)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: creating sandbox: %v\n", err)
		return NewSilentError(err)
	}

	if err := runtime.EnsureImage(ctx, image); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: pulling image: %v\n", err)
		return NewSilentError(err)
	}
	if err := runtime.Create(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: creating container: %v\n", err)
		return NewSilentError(err)
	}
	if err := runtime.Start(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: starting container: %v\n", err)
		return NewSilentError(err)
	}
	defer runtime.StopAndRemove(ctx) //nolint:errcheck // best-effort cleanup

	evalMode := driver.CountOnly
	if strings.EqualFold(rebaseMode, "count-and-diff") {
		evalMode = driver.CountAndDiff
	}

	d := driver.New(runtime, "/workspace", evalMode)
	start := time.Now()

	if err := d.SetupRepository(ctx, repo); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: setting up repository: %v\n", err)
		return NewSilentError(err)
	}
	if err := d.SetupScenario(ctx, kind, payload); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: setting up scenario: %v\n", err)
		return NewSilentError(err)
	}

	logging.Info(ctx, "scenario armed, awaiting agent", "scenario_kind", string(kind))
	// The agent's shell session happens out of process, against runtime's
	// container, between SetupScenario and MarkDone/Evaluate.

	if err := d.MarkDone(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return NewSilentError(err)
	}

	verdict, err := d.Evaluate(ctx)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: evaluating scenario: %v\n", err)
		return NewSilentError(err)
	}
	duration := time.Since(start)

	if err := d.TeardownScenario(ctx); err != nil {
		logging.Warn(ctx, "scenario teardown failed", "error", err.Error())
	}
	if err := d.TeardownRepository(ctx); err != nil {
		logging.Warn(ctx, "repository teardown failed", "error", err.Error())
	}

	fmt.Fprint(cmd.OutOrStdout(), summarize.FormatReplayVerdict(kind, verdict, duration))
	telemetry.GetClient(ctx).TrackReplayRun(string(kind), verdict.Passed)

	if !verdict.Passed {
		return NewSilentError(fmt.Errorf("scenario did not pass"))
	}
	return nil
}

func loadTableAndRepository(tablePath, repositoryID string) (scenario.Table, scenario.RepositoryRecord, error) {
	f, err := os.Open(tablePath) //nolint:gosec // path comes from an operator-supplied flag
	if err != nil {
		return scenario.Table{}, scenario.RepositoryRecord{}, fmt.Errorf("opening scenario table: %w", err)
	}
	defer f.Close()

	table, err := scenario.ReadTable(f)
	if err != nil {
		return scenario.Table{}, scenario.RepositoryRecord{}, fmt.Errorf("reading scenario table: %w", err)
	}

	for _, rec := range table.Records {
		if rec.Repository.ID == repositoryID {
			return table, rec.Repository, nil
		}
	}
	return scenario.Table{}, scenario.RepositoryRecord{}, fmt.Errorf("no record for repository %q", repositoryID)
}
