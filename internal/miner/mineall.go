package miner

import (
	"context"
	"runtime"
	"sync"

	"github.com/scenario-miner/scenario-miner/internal/scenario"
)

// Job describes one repository to mine as part of a MineAll run. Open
// materializes a GitView for the repository — a local open or a remote
// clone into a scratch directory — and returns a cleanup func the runner
// invokes once mining that repository finishes.
type Job struct {
	Name string
	Open func(ctx context.Context) (GitView, func(), error)
}

// MineAll mines every job concurrently, bounded to concurrency in-flight
// workers at a time — one goroutine per repository, each constructing its
// own Miner (Miner is not safe for concurrent use, so callers mining many
// repositories at once need one instance per repository). A repository
// that fails to open or mine does not abort the run: its Record carries
// the failure in Error instead, so the caller can report partial success.
// Results are returned in the same order as jobs.
func MineAll(ctx context.Context, jobs []Job, cfg Config, concurrency int) []scenario.Record {
	if concurrency < 1 {
		concurrency = runtime.NumCPU()
	}
	if concurrency < 1 {
		concurrency = 1
	}

	records := make([]scenario.Record, len(jobs))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, job Job) {
			defer wg.Done()
			defer func() { <-sem }()
			records[i] = mineJob(ctx, job, cfg)
		}(i, job)
	}
	wg.Wait()
	return records
}

func mineJob(ctx context.Context, job Job, cfg Config) scenario.Record {
	view, cleanup, err := job.Open(ctx)
	if err != nil {
		return scenario.Record{
			Repository: scenario.RepositoryRecord{ID: job.Name, Name: job.Name, Language: cfg.Language},
			Error:      err.Error(),
		}
	}
	defer cleanup()

	m := New(view, cfg)
	result, err := m.Mine(ctx)
	if err != nil {
		return scenario.Record{
			Repository: scenario.RepositoryRecord{ID: job.Name, Name: job.Name, Language: cfg.Language},
			Error:      err.Error(),
		}
	}

	return scenario.Record{
		Repository: scenario.RepositoryRecord{
			ID:       job.Name,
			Name:     job.Name,
			Language: cfg.Language,
		},
		FileCommitGrams: result.FileCommitGrams,
		Merges:          result.Merges,
		CherryPicks:     result.CherryPicks,
	}
}
