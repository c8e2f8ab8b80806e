// Package summarize renders human-readable run summaries for the mine and
// replay commands: aggregate scenario counts, per-scenario verdicts, and
// diff previews, in the teacher's plain-text report style.
package summarize

import (
	"fmt"
	"strings"
	"time"

	"github.com/scenario-miner/scenario-miner/internal/driver"
	"github.com/scenario-miner/scenario-miner/internal/scenario"
)

// MineSummary aggregates the outcome of a mining pass across repositories.
type MineSummary struct {
	RepositoryCount int
	ScenarioCounts  map[scenario.Kind]int
	FailedRepos     []string
	Duration        time.Duration
}

// NewMineSummary builds a MineSummary from the per-repository records a
// mining pass produced.
func NewMineSummary(records []scenario.Record, duration time.Duration) MineSummary {
	s := MineSummary{
		RepositoryCount: len(records),
		ScenarioCounts:  make(map[scenario.Kind]int),
		Duration:        duration,
	}
	for _, r := range records {
		if r.Error != "" {
			s.FailedRepos = append(s.FailedRepos, r.Repository.Name)
			continue
		}
		s.ScenarioCounts[scenario.KindFileCommitGramChunk] += len(r.FileCommitGrams)
		s.ScenarioCounts[scenario.KindFileCommitGramRebase] += len(r.FileCommitGrams)
		s.ScenarioCounts[scenario.KindMerge] += len(r.Merges)
		s.ScenarioCounts[scenario.KindCherryPick] += len(r.CherryPicks)
	}
	return s
}

// Format renders the summary as a multi-line report.
func (s MineSummary) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mined %d repositor%s in %s\n", s.RepositoryCount, plural(s.RepositoryCount, "y", "ies"), s.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  file-commit-gram chunk scenarios: %d\n", s.ScenarioCounts[scenario.KindFileCommitGramChunk])
	fmt.Fprintf(&b, "  file-commit-gram rebase scenarios: %d\n", s.ScenarioCounts[scenario.KindFileCommitGramRebase])
	fmt.Fprintf(&b, "  merge scenarios: %d\n", s.ScenarioCounts[scenario.KindMerge])
	fmt.Fprintf(&b, "  cherry-pick scenarios: %d\n", s.ScenarioCounts[scenario.KindCherryPick])
	if len(s.FailedRepos) > 0 {
		fmt.Fprintf(&b, "  failed: %s\n", strings.Join(s.FailedRepos, ", "))
	}
	return b.String()
}

func plural(n int, singular, pl string) string {
	if n == 1 {
		return singular
	}
	return pl
}

// FormatReplayVerdict renders a single scenario's evaluation outcome.
func FormatReplayVerdict(kind scenario.Kind, v driver.Verdict, duration time.Duration) string {
	status := "FAIL"
	switch {
	case v.EnvironmentFailure:
		status = "ERROR"
	case v.Passed:
		status = "PASS"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s (%s)\n", status, kind, duration.Round(time.Millisecond))
	if v.Detail != "" {
		fmt.Fprintf(&b, "  %s\n", v.Detail)
	}
	return b.String()
}
