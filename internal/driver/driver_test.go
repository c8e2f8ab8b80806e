package driver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/scenario-miner/scenario-miner/internal/scenario"
)

// fakeExec implements Exec by dispatching on command substrings, keyed in
// registration order so a test can override just the commands it cares
// about and let everything else succeed with empty output.
type fakeExec struct {
	responses map[string]fakeResponse
	calls     []string
}

type fakeResponse struct {
	exitCode int
	output   string
	err      error
}

func newFakeExec() *fakeExec {
	return &fakeExec{responses: make(map[string]fakeResponse)}
}

func (f *fakeExec) on(substr string, exitCode int, output string) {
	f.responses[substr] = fakeResponse{exitCode: exitCode, output: output}
}

func (f *fakeExec) Exec(_ context.Context, command, _ string) (int, []byte, error) {
	f.calls = append(f.calls, command)
	for substr, resp := range f.responses {
		if strings.Contains(command, substr) {
			return resp.exitCode, []byte(resp.output), resp.err
		}
	}
	return 0, nil, nil
}

func repo() scenario.RepositoryRecord {
	return scenario.RepositoryRecord{ID: "r1", Name: "owner/repo", Language: "python"}
}

func TestSetupRepository_ParsesDefaultBranchAndTransitionsToReady(t *testing.T) {
	exec := newFakeExec()
	exec.on("git status", 0, "On branch main\nnothing to commit\n")

	d := New(exec, "/work", CountOnly)
	if err := d.SetupRepository(context.Background(), repo()); err != nil {
		t.Fatalf("SetupRepository: %v", err)
	}
	if d.State() != Ready {
		t.Errorf("State() = %v, want Ready", d.State())
	}
	if d.defaultBranch != "main" {
		t.Errorf("defaultBranch = %q, want main", d.defaultBranch)
	}
}

func TestSetupRepository_CloneFailureIsEnvironmentError(t *testing.T) {
	exec := newFakeExec()
	exec.on("git clone", 1, "fatal: repository not found")

	d := New(exec, "/work", CountOnly)
	err := d.SetupRepository(context.Background(), repo())
	if err == nil {
		t.Fatal("expected an error from a failing clone")
	}
	var envErr *scenario.EnvironmentError
	if !errors.As(err, &envErr) {
		t.Fatalf("error = %v, want *scenario.EnvironmentError", err)
	}
	if d.State() != Empty {
		t.Errorf("State() = %v, want Empty after failed setup", d.State())
	}
}

func TestSetupScenario_ChunkChecksOutFirstThenStagesLastCommitDiff(t *testing.T) {
	exec := newFakeExec()
	exec.on("git status", 0, "On branch main\n")
	d := New(exec, "/work", CountOnly)
	if err := d.SetupRepository(context.Background(), repo()); err != nil {
		t.Fatalf("SetupRepository: %v", err)
	}

	gram := scenario.FileCommitGram{FilePath: "a.py", FirstCommit: "c1", LastCommit: "c2", Length: 3}
	if err := d.SetupScenario(context.Background(), scenario.KindFileCommitGramChunk, gram); err != nil {
		t.Fatalf("SetupScenario: %v", err)
	}
	if d.State() != Armed {
		t.Errorf("State() = %v, want Armed", d.State())
	}

	var sawFirstCheckout, sawStagedCheckout, sawBranch bool
	for _, c := range exec.calls {
		if strings.Contains(c, "git checkout c1") {
			sawFirstCheckout = true
		}
		if strings.Contains(c, "git checkout c2 -- a.py") {
			sawStagedCheckout = true
		}
		if strings.Contains(c, "git checkout -b "+AgentTargetBranchName) {
			sawBranch = true
		}
	}
	if !sawFirstCheckout || !sawStagedCheckout || !sawBranch {
		t.Errorf("missing expected commands in %v", exec.calls)
	}
}

func TestSetupScenario_WrongPayloadTypeIsConfigurationError(t *testing.T) {
	exec := newFakeExec()
	exec.on("git status", 0, "On branch main\n")
	d := New(exec, "/work", CountOnly)
	_ = d.SetupRepository(context.Background(), repo())

	err := d.SetupScenario(context.Background(), scenario.KindFileCommitGramChunk, scenario.MergeScenario{})
	var cfgErr *scenario.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want *scenario.ConfigurationError", err)
	}
}

func TestContextBundle_ChunkIncludesCachedDiffOthersDoNot(t *testing.T) {
	exec := newFakeExec()
	exec.on("git status", 0, "On branch main\n")
	exec.on("git diff --cached", 0, "diff content")
	d := New(exec, "/work", CountOnly)
	_ = d.SetupRepository(context.Background(), repo())
	_ = d.SetupScenario(context.Background(), scenario.KindFileCommitGramChunk,
		scenario.FileCommitGram{FilePath: "a.py", FirstCommit: "c1", LastCommit: "c2", Length: 3})

	bundle := d.ContextBundle(context.Background())
	if bundle["gitdiffcached"] != "diff content" {
		t.Errorf("gitdiffcached = %q, want captured output", bundle["gitdiffcached"])
	}

	exec2 := newFakeExec()
	exec2.on("git status", 0, "On branch main\n")
	d2 := New(exec2, "/work", CountOnly)
	_ = d2.SetupRepository(context.Background(), repo())
	_ = d2.SetupScenario(context.Background(), scenario.KindFileCommitGramRebase,
		scenario.FileCommitGram{FilePath: "a.py", FirstCommit: "c1", LastCommit: "c2", Length: 3})
	bundle2 := d2.ContextBundle(context.Background())
	if _, ok := bundle2["gitdiffcached"]; ok {
		t.Errorf("rebase scenario bundle should not include gitdiffcached: %v", bundle2)
	}
}

func TestContextBundle_FailedCommandDegradesToUnavailable(t *testing.T) {
	exec := newFakeExec()
	exec.on("git status", 1, "fatal: not a git repository")
	d := New(exec, "/work", CountOnly)
	d.state = Ready
	d.repository = repo()

	bundle := d.ContextBundle(context.Background())
	if bundle["gitstatus"] != Unavailable {
		t.Errorf("gitstatus = %q, want %q", bundle["gitstatus"], Unavailable)
	}
}

func TestEvaluate_ChunkPassesWhenDiffEmptyAndMultipleCommits(t *testing.T) {
	exec := newFakeExec()
	exec.on("git status", 0, "On branch main\n")
	exec.on("git diff c1", 0, "")
	exec.on("git rev-list --count", 0, "3")
	d := New(exec, "/work", CountOnly)
	_ = d.SetupRepository(context.Background(), repo())
	gram := scenario.FileCommitGram{FilePath: "a.py", FirstCommit: "c1", LastCommit: "c2", Length: 3}
	_ = d.SetupScenario(context.Background(), scenario.KindFileCommitGramChunk, gram)

	verdict, err := d.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !verdict.Passed {
		t.Errorf("verdict.Passed = false, want true: %+v", verdict)
	}
}

func TestEvaluate_ChunkFailsWhenOnlyOneCommit(t *testing.T) {
	exec := newFakeExec()
	exec.on("git status", 0, "On branch main\n")
	exec.on("git diff c1", 0, "")
	exec.on("git rev-list --count", 0, "1")
	d := New(exec, "/work", CountOnly)
	_ = d.SetupRepository(context.Background(), repo())
	gram := scenario.FileCommitGram{FilePath: "a.py", FirstCommit: "c1", LastCommit: "c2", Length: 3}
	_ = d.SetupScenario(context.Background(), scenario.KindFileCommitGramChunk, gram)

	verdict, err := d.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if verdict.Passed {
		t.Errorf("verdict.Passed = true, want false for a single-commit result")
	}
}

func TestEvaluate_RebaseCountOnlyIgnoresDiffContent(t *testing.T) {
	exec := newFakeExec()
	exec.on("git status", 0, "On branch main\n")
	exec.on("git rev-list --count", 0, "4")
	d := New(exec, "/work", CountOnly)
	_ = d.SetupRepository(context.Background(), repo())
	gram := scenario.FileCommitGram{FilePath: "a.py", FirstCommit: "c1", LastCommit: "c2", Length: 7}
	_ = d.SetupScenario(context.Background(), scenario.KindFileCommitGramRebase, gram)

	verdict, err := d.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !verdict.Passed {
		t.Errorf("verdict.Passed = false, want true (count 4 is within (0,7])")
	}
}

func TestEvaluate_RebaseCountOutOfRangeFails(t *testing.T) {
	exec := newFakeExec()
	exec.on("git status", 0, "On branch main\n")
	exec.on("git rev-list --count", 0, "0")
	d := New(exec, "/work", CountOnly)
	_ = d.SetupRepository(context.Background(), repo())
	gram := scenario.FileCommitGram{FilePath: "a.py", FirstCommit: "c1", LastCommit: "c2", Length: 7}
	_ = d.SetupScenario(context.Background(), scenario.KindFileCommitGramRebase, gram)

	verdict, err := d.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if verdict.Passed {
		t.Error("verdict.Passed = true, want false for a zero commit count")
	}
}

func TestEvaluate_MergeComparesAgainstGroundTruth(t *testing.T) {
	exec := newFakeExec()
	exec.on("git status", 0, "On branch main\n")
	exec.on("git diff mc", 0, "")
	d := New(exec, "/work", CountOnly)
	_ = d.SetupRepository(context.Background(), repo())
	merge := scenario.MergeScenario{MergeCommit: "mc", Parents: []string{"p1", "p2"}}
	_ = d.SetupScenario(context.Background(), scenario.KindMerge, merge)

	verdict, err := d.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !verdict.Passed {
		t.Errorf("verdict.Passed = false, want true for an empty diff against ground truth")
	}
}

func TestEvaluate_NonZeroExitIsEnvironmentFailureNotFalseVerdict(t *testing.T) {
	exec := newFakeExec()
	exec.on("git status", 0, "On branch main\n")
	exec.on("git diff c1", 1, "fatal: bad object")
	d := New(exec, "/work", CountOnly)
	_ = d.SetupRepository(context.Background(), repo())
	gram := scenario.FileCommitGram{FilePath: "a.py", FirstCommit: "c1", LastCommit: "c2", Length: 3}
	_ = d.SetupScenario(context.Background(), scenario.KindFileCommitGramChunk, gram)

	verdict, err := d.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !verdict.EnvironmentFailure {
		t.Error("expected EnvironmentFailure=true for a non-zero evaluation command")
	}
	if verdict.Passed {
		t.Error("an environment failure must never read as Passed")
	}
}

func TestTeardownScenario_HappyPathReturnsToReady(t *testing.T) {
	exec := newFakeExec()
	exec.on("git status", 0, "On branch main\n")
	exec.on("git reset --hard", 0, "")
	exec.on("git branch --list", 0, "")
	d := New(exec, "/work", CountOnly)
	_ = d.SetupRepository(context.Background(), repo())
	gram := scenario.FileCommitGram{FilePath: "a.py", FirstCommit: "c1", LastCommit: "c2", Length: 3}
	_ = d.SetupScenario(context.Background(), scenario.KindFileCommitGramChunk, gram)

	if err := d.TeardownScenario(context.Background()); err != nil {
		t.Fatalf("TeardownScenario: %v", err)
	}
	if d.State() != Ready {
		t.Errorf("State() = %v, want Ready", d.State())
	}
}

func TestTeardownScenario_ValidationFailureEscalatesToReclone(t *testing.T) {
	exec := newFakeExec()
	exec.on("git status", 0, "On branch main\n")
	exec.on("git reset --hard", 0, "")
	exec.on("git branch --list", 0, AgentTargetBranchName) // branch still present: validation fails
	exec.on("rm -r", 0, "")
	d := New(exec, "/work", CountOnly)
	_ = d.SetupRepository(context.Background(), repo())
	gram := scenario.FileCommitGram{FilePath: "a.py", FirstCommit: "c1", LastCommit: "c2", Length: 3}
	_ = d.SetupScenario(context.Background(), scenario.KindFileCommitGramChunk, gram)

	if err := d.TeardownScenario(context.Background()); err != nil {
		t.Fatalf("TeardownScenario: %v", err)
	}
	if d.State() != Ready {
		t.Errorf("State() = %v, want Ready after recovery re-clone", d.State())
	}

	var sawRm, sawReclone bool
	for _, c := range exec.calls {
		if strings.Contains(c, "rm -r") {
			sawRm = true
		}
		if strings.Contains(c, "git clone") {
			sawReclone = true
		}
	}
	if !sawRm || !sawReclone {
		t.Errorf("expected a force reset and re-clone, got calls %v", exec.calls)
	}
}
