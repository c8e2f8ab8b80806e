package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/scenario-miner/scenario-miner/internal/config"
	"github.com/scenario-miner/scenario-miner/internal/gitrepo"
	"github.com/scenario-miner/scenario-miner/internal/logging"
	"github.com/scenario-miner/scenario-miner/internal/miner"
	"github.com/scenario-miner/scenario-miner/internal/scenario"
	"github.com/scenario-miner/scenario-miner/internal/summarize"
	"github.com/scenario-miner/scenario-miner/internal/telemetry"
	"github.com/spf13/cobra"
)

func newMineCmd() *cobra.Command {
	var windowFlag int
	var languageFlag string
	var languageMatchFlag string
	var outFlag string
	var cloneTimeoutFlag time.Duration
	var concurrencyFlag int

	cmd := &cobra.Command{
		Use:   "mine <repo-path-or-clone-url> [repo-path-or-clone-url...]",
		Short: "Mine file-commit-gram, merge, and cherry-pick scenarios from one or more repositories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMine(cmd, args, windowFlag, languageFlag, languageMatchFlag, outFlag, cloneTimeoutFlag, concurrencyFlag)
		},
	}

	cfg, err := config.Load()
	if err != nil {
		cfg = nil
	}
	defaultWindow := 2
	defaultMatch := "substring"
	if cfg != nil {
		defaultWindow = cfg.Window
		if cfg.LanguageMatch != "" {
			defaultMatch = cfg.LanguageMatch
		}
	}

	cmd.Flags().IntVar(&windowFlag, "sliding-window-size", defaultWindow, "minimum file-commit-gram run length")
	cmd.Flags().StringVar(&languageFlag, "programming-language", "", "restrict grams to paths matching this tag")
	cmd.Flags().StringVar(&languageMatchFlag, "language-match", defaultMatch, "substring or suffix")
	cmd.Flags().StringVar(&outFlag, "out", "", "write the scenario table to this file instead of stdout")
	cmd.Flags().DurationVar(&cloneTimeoutFlag, "clone-timeout", 2*time.Minute, "timeout for cloning a remote repository")
	cmd.Flags().IntVar(&concurrencyFlag, "concurrency", runtime.NumCPU(), "number of repositories to mine in parallel")

	return cmd
}

// runMine mines every repository in repoArgs through miner.MineAll, bounded
// to concurrency in-flight workers at a time, matching spec.md §5's
// "parallel workers... bounded by a configurable concurrency". A
// repository that fails to mine does not abort the others: its Record
// carries the error instead, so summarize.NewMineSummary can report it as
// a failure among otherwise-successful results.
func runMine(cmd *cobra.Command, repoArgs []string, window int, language, languageMatch, out string, cloneTimeout time.Duration, concurrency int) error {
	ctx := cmd.Context()
	logging.Info(ctx, "mine started", "repository_count", len(repoArgs))
	start := time.Now()

	match := miner.Substring
	if strings.EqualFold(languageMatch, "suffix") {
		match = miner.Suffix
	}

	jobs := make([]miner.Job, len(repoArgs))
	for i, repoArg := range repoArgs {
		repoArg := repoArg
		jobs[i] = miner.Job{
			Name: repositoryNameFromPath(repoArg),
			Open: func(ctx context.Context) (miner.GitView, func(), error) {
				view, _, cleanup, err := openOrClone(ctx, repoArg, cloneTimeout)
				if err != nil {
					return nil, nil, err
				}
				return view, cleanup, nil
			},
		}
	}

	records := miner.MineAll(ctx, jobs, miner.Config{Window: window, Language: language, Match: match}, concurrency)

	table := scenario.Table{Records: records}
	if err := writeTable(table, out); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: writing scenario table: %v\n", err)
		return NewSilentError(err)
	}

	duration := time.Since(start)
	summary := summarize.NewMineSummary(records, duration)
	outputWithPager(cmd.OutOrStdout(), summary.Format())

	scenarioCount := 0
	for _, r := range records {
		scenarioCount += len(r.FileCommitGrams) + len(r.Merges) + len(r.CherryPicks)
	}
	telemetry.GetClient(ctx).TrackMineRun(len(repoArgs), scenarioCount)
	logging.Info(ctx, "mine finished", "repository_count", len(repoArgs), "duration_ms", duration.Milliseconds())

	if len(summary.FailedRepos) > 0 {
		for _, r := range records {
			if r.Error != "" {
				logging.Warn(ctx, "mine: repository failed", "repository", r.Repository.Name, "error", r.Error)
			}
		}
		return NewSilentError(fmt.Errorf("%d of %d repositories failed to mine", len(summary.FailedRepos), len(repoArgs)))
	}
	return nil
}

// openOrClone opens repoArg as a local repository path, or clones it into a
// temporary directory if it looks like a remote URL. The returned cleanup
// removes any clone directory it created; it is a no-op for a local path.
func openOrClone(ctx context.Context, repoArg string, timeout time.Duration) (*gitrepo.View, string, func(), error) {
	if !looksLikeRemote(repoArg) {
		view, err := gitrepo.Open(repoArg)
		if err != nil {
			return nil, "", nil, err
		}
		return view, repositoryNameFromPath(repoArg), func() {}, nil
	}

	dir, err := os.MkdirTemp("", "scenario-miner-clone-*")
	if err != nil {
		return nil, "", nil, fmt.Errorf("creating clone directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	view, err := gitrepo.CloneContext(ctx, repoArg, dir, timeout)
	if err != nil {
		cleanup()
		return nil, "", nil, fmt.Errorf("cloning %s: %w", repoArg, err)
	}
	return view, repositoryNameFromPath(repoArg), cleanup, nil
}

func looksLikeRemote(repoArg string) bool {
	return strings.HasPrefix(repoArg, "http://") ||
		strings.HasPrefix(repoArg, "https://") ||
		strings.HasPrefix(repoArg, "git@") ||
		strings.HasSuffix(repoArg, ".git")
}

func repositoryNameFromPath(path string) string {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(path, "/"), ".git")
	if idx := strings.LastIndex(trimmed, "/"); idx != -1 {
		return trimmed[idx+1:]
	}
	return trimmed
}

func writeTable(table scenario.Table, out string) error {
	if out == "" {
		_, err := table.WriteTo(os.Stdout)
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = table.WriteTo(f)
	return err
}
