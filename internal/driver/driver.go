// Package driver implements the per-repository working-tree state machine
// that sits between a sandboxed container and the scenario table: clone,
// arm a scenario, gather context for the agent, tear it down, evaluate its
// result branch.
package driver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/scenario-miner/scenario-miner/internal/scenario"
)

// AgentTargetBranchName is the constant isolation branch every scenario's
// agent work is confined to. A fixed name (rather than one derived per
// scenario) keeps teardown deterministic: the driver always knows exactly
// which branch to delete.
const AgentTargetBranchName = "current-scenario-branch"

// RebaseEvaluationMode selects between the two readings of the
// FileCommitGramRebase success predicate identified as an open question.
type RebaseEvaluationMode int

const (
	// CountOnly checks only that the agent's local branch carries a commit
	// count in (0, scenario.Length]. This is the literal behavior of the
	// original evaluator's test suite, which never inspects diff content
	// for this scenario type.
	CountOnly RebaseEvaluationMode = iota
	// CountAndDiff additionally requires the diff against FirstCommit to be
	// empty, mirroring the chunk scenario's stricter predicate.
	CountAndDiff
)

// State is one of the five ScenarioDriver lifecycle states.
type State int

const (
	Empty State = iota
	Ready
	Armed
	Done
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Ready:
		return "ready"
	case Armed:
		return "armed"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Exec is the subset of sandbox.Runtime the driver needs: run one command
// in one workdir and report its exit code and captured output. Declared
// here, not in sandbox, so the driver depends on the capability it uses.
type Exec interface {
	Exec(ctx context.Context, command, workdir string) (exitCode int, output []byte, err error)
}

// ContextBundle maps a read-only git command's name (punctuation stripped)
// to its captured output, or the literal string "unavailable" if the
// command failed or could not run.
type ContextBundle map[string]string

// Unavailable is substituted for any context-bundle command that fails.
const Unavailable = "unavailable"

// Verdict is the outcome of evaluating one scenario.
type Verdict struct {
	Passed bool
	// EnvironmentFailure is set when an evaluation command itself failed
	// (non-zero exit), distinct from the agent having failed the scenario.
	EnvironmentFailure bool
	Detail             string
}

// Driver owns exactly one (container, repository) pairing and walks it
// through EMPTY -> READY -> ARMED -> DONE -> READY -> EMPTY. Not safe for
// concurrent use.
type Driver struct {
	exec    Exec
	state   State
	workdir string

	repository    scenario.RepositoryRecord
	defaultBranch string

	kind     scenario.Kind
	scenario any

	rebaseMode RebaseEvaluationMode
}

// New constructs a Driver bound to exec, rooted at containerWorkdir (the
// directory repositories are cloned into, e.g. the container's home
// directory). rebaseMode selects which FileCommitGramRebase predicate to
// apply.
func New(exec Exec, containerWorkdir string, rebaseMode RebaseEvaluationMode) *Driver {
	return &Driver{exec: exec, state: Empty, workdir: containerWorkdir, rebaseMode: rebaseMode}
}

// State reports the driver's current lifecycle state.
func (d *Driver) State() State { return d.state }

// repoDir is the deterministic clone subdirectory for the bound repository.
func (d *Driver) repoDir() string {
	parts := strings.Split(d.repository.Name, "/")
	name := parts[len(parts)-1]
	if d.workdir == "" {
		return name
	}
	return d.workdir + "/" + name
}

// SetupRepository clones repo into the container and discovers its default
// branch. Transitions EMPTY -> READY. Idempotent: calling it again while
// already READY for the same repository is a no-op.
func (d *Driver) SetupRepository(ctx context.Context, repo scenario.RepositoryRecord) error {
	if d.state == Ready && d.repository.ID == repo.ID {
		return nil
	}
	if d.state != Empty {
		return &scenario.PreconditionError{Scenario: repo.Name, Reason: fmt.Sprintf("setup_repository called from state %s", d.state)}
	}

	cloneCmd := fmt.Sprintf("git clone %s", repo.CloneURL())
	exitCode, output, err := d.exec.Exec(ctx, cloneCmd, d.workdir)
	if err != nil {
		return &scenario.EnvironmentError{Command: cloneCmd, Err: err}
	}
	if exitCode != 0 {
		return &scenario.EnvironmentError{Command: cloneCmd, ExitCode: exitCode, Err: fmt.Errorf("%s", output)}
	}

	d.repository = repo

	status, err := d.runGitStatus(ctx)
	if err != nil {
		d.repository = scenario.RepositoryRecord{}
		return err
	}
	branch, ok := parseDefaultBranch(status)
	if !ok {
		d.repository = scenario.RepositoryRecord{}
		return &scenario.PreconditionError{Scenario: repo.Name, Reason: "git status did not report a default branch"}
	}

	d.defaultBranch = branch
	d.state = Ready
	return nil
}

// parseDefaultBranch extracts the branch name from the first line of `git
// status`, which begins "On branch <name>".
func parseDefaultBranch(status string) (string, bool) {
	lines := strings.SplitN(status, "\n", 2)
	if len(lines) == 0 {
		return "", false
	}
	const prefix = "On branch "
	if !strings.HasPrefix(lines[0], prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(lines[0], prefix)), true
}

// SetupScenario applies the type-specific precondition for kind/payload and
// checks out the agent isolation branch. Transitions READY -> ARMED.
func (d *Driver) SetupScenario(ctx context.Context, kind scenario.Kind, payload any) error {
	if d.state != Ready {
		return &scenario.PreconditionError{Scenario: string(kind), Reason: fmt.Sprintf("setup_scenario called from state %s", d.state)}
	}

	switch kind {
	case scenario.KindFileCommitGramChunk:
		gram, ok := payload.(scenario.FileCommitGram)
		if !ok {
			return &scenario.ConfigurationError{Field: "payload", Reason: "expected FileCommitGram for file_commit_gram_chunk"}
		}
		if err := d.runOrFail(ctx, fmt.Sprintf("git checkout %s", gram.FirstCommit)); err != nil {
			return err
		}
		if err := d.runOrFail(ctx, fmt.Sprintf("git checkout %s -- %s", gram.LastCommit, gram.FilePath)); err != nil {
			return err
		}
	case scenario.KindFileCommitGramRebase:
		gram, ok := payload.(scenario.FileCommitGram)
		if !ok {
			return &scenario.ConfigurationError{Field: "payload", Reason: "expected FileCommitGram for file_commit_gram_rebase"}
		}
		if err := d.runOrFail(ctx, fmt.Sprintf("git checkout %s", gram.FirstCommit)); err != nil {
			return err
		}
	case scenario.KindMerge:
		merge, ok := payload.(scenario.MergeScenario)
		if !ok {
			return &scenario.ConfigurationError{Field: "payload", Reason: "expected MergeScenario for merge"}
		}
		if len(merge.Parents) == 0 {
			return &scenario.ConfigurationError{Field: "payload", Reason: "merge scenario has no parents to check out"}
		}
		if err := d.runOrFail(ctx, fmt.Sprintf("git checkout %s", merge.Parents[0])); err != nil {
			return err
		}
	case scenario.KindCherryPick:
		cp, ok := payload.(scenario.CherryPickScenario)
		if !ok {
			return &scenario.ConfigurationError{Field: "payload", Reason: "expected CherryPickScenario for cherry_pick"}
		}
		if len(cp.Parents) == 0 {
			return &scenario.ConfigurationError{Field: "payload", Reason: "cherry-pick scenario has no parents to check out"}
		}
		if err := d.runOrFail(ctx, fmt.Sprintf("git checkout %s", cp.Parents[0])); err != nil {
			return err
		}
	default:
		return &scenario.ConfigurationError{Field: "kind", Reason: fmt.Sprintf("unsupported scenario kind %q", kind)}
	}

	if err := d.runOrFail(ctx, fmt.Sprintf("git checkout -b %s", AgentTargetBranchName)); err != nil {
		return err
	}

	d.kind = kind
	d.scenario = payload
	d.state = Armed
	return nil
}

// ContextBundle gathers the read-only commands an agent is shown before it
// starts. For the chunk scenario, `git diff --cached` is added on top of
// the universal `git status`. A failed command degrades to Unavailable
// rather than aborting the bundle.
func (d *Driver) ContextBundle(ctx context.Context) ContextBundle {
	bundle := ContextBundle{
		"gitstatus": d.captureOrUnavailable(ctx, "git status"),
	}
	if d.kind == scenario.KindFileCommitGramChunk {
		bundle["gitdiffcached"] = d.captureOrUnavailable(ctx, "git diff --cached")
	}
	return bundle
}

func (d *Driver) captureOrUnavailable(ctx context.Context, command string) string {
	exitCode, output, err := d.exec.Exec(ctx, command, d.repoDir())
	if err != nil || exitCode != 0 {
		return Unavailable
	}
	return string(output)
}

// MarkDone records that the agent has finished acting and the scenario is
// ready for evaluation. Transitions ARMED -> DONE.
func (d *Driver) MarkDone() error {
	if d.state != Armed {
		return &scenario.PreconditionError{Scenario: string(d.kind), Reason: fmt.Sprintf("mark_done called from state %s", d.state)}
	}
	d.state = Done
	return nil
}

// Evaluate applies the success predicate for the currently armed/done
// scenario against AgentTargetBranchName. Does not change state.
func (d *Driver) Evaluate(ctx context.Context) (Verdict, error) {
	if d.state != Armed && d.state != Done {
		return Verdict{}, &scenario.PreconditionError{Scenario: string(d.kind), Reason: fmt.Sprintf("evaluate called from state %s", d.state)}
	}

	switch d.kind {
	case scenario.KindFileCommitGramChunk:
		gram := d.scenario.(scenario.FileCommitGram)
		return d.evaluateChunk(ctx, gram)
	case scenario.KindFileCommitGramRebase:
		gram := d.scenario.(scenario.FileCommitGram)
		return d.evaluateRebase(ctx, gram)
	case scenario.KindMerge:
		merge := d.scenario.(scenario.MergeScenario)
		return d.evaluateAgainstGroundTruth(ctx, merge.MergeCommit)
	case scenario.KindCherryPick:
		cp := d.scenario.(scenario.CherryPickScenario)
		return d.evaluateAgainstGroundTruth(ctx, cp.CherryPickCommit)
	default:
		return Verdict{}, &scenario.ConfigurationError{Field: "kind", Reason: fmt.Sprintf("unsupported scenario kind %q", d.kind)}
	}
}

func (d *Driver) evaluateChunk(ctx context.Context, gram scenario.FileCommitGram) (Verdict, error) {
	diffEmpty, verdict, err := d.diffIsEmpty(ctx, gram.FirstCommit, gram.FilePath)
	if err != nil || verdict.EnvironmentFailure {
		return verdict, err
	}

	count, verdict, err := d.revListCount(ctx, gram.LastCommit)
	if err != nil || verdict.EnvironmentFailure {
		return verdict, err
	}

	passed := diffEmpty && count > 1
	return Verdict{Passed: passed, Detail: fmt.Sprintf("diff_empty=%v commit_count=%d", diffEmpty, count)}, nil
}

func (d *Driver) evaluateRebase(ctx context.Context, gram scenario.FileCommitGram) (Verdict, error) {
	count, verdict, err := d.revListCount(ctx, gram.LastCommit)
	if err != nil || verdict.EnvironmentFailure {
		return verdict, err
	}

	countOK := count > 0 && count <= gram.Length

	if d.rebaseMode == CountOnly {
		return Verdict{Passed: countOK, Detail: fmt.Sprintf("commit_count=%d length=%d", count, gram.Length)}, nil
	}

	diffEmpty, verdict, err := d.diffIsEmpty(ctx, gram.FirstCommit, gram.FilePath)
	if err != nil || verdict.EnvironmentFailure {
		return verdict, err
	}
	return Verdict{
		Passed: countOK && diffEmpty,
		Detail: fmt.Sprintf("diff_empty=%v commit_count=%d length=%d", diffEmpty, count, gram.Length),
	}, nil
}

func (d *Driver) evaluateAgainstGroundTruth(ctx context.Context, groundTruth string) (Verdict, error) {
	diffCmd := fmt.Sprintf("git diff %s %s", groundTruth, AgentTargetBranchName)
	exitCode, output, err := d.exec.Exec(ctx, diffCmd, d.repoDir())
	if err != nil {
		return Verdict{}, &scenario.EnvironmentError{Command: diffCmd, Err: err}
	}
	if exitCode != 0 {
		return Verdict{EnvironmentFailure: true, Detail: string(output)}, nil
	}
	return Verdict{Passed: len(strings.TrimSpace(string(output))) == 0}, nil
}

// diffIsEmpty runs `git diff <fromCommit> AgentTargetBranchName -- <path>`
// and reports whether it produced no output.
func (d *Driver) diffIsEmpty(ctx context.Context, fromCommit, path string) (bool, Verdict, error) {
	diffCmd := fmt.Sprintf("git diff %s %s -- %s", fromCommit, AgentTargetBranchName, path)
	exitCode, output, err := d.exec.Exec(ctx, diffCmd, d.repoDir())
	if err != nil {
		return false, Verdict{}, &scenario.EnvironmentError{Command: diffCmd, Err: err}
	}
	if exitCode != 0 {
		return false, Verdict{EnvironmentFailure: true, Detail: string(output)}, nil
	}
	return len(strings.TrimSpace(string(output))) == 0, Verdict{}, nil
}

// revListCount runs `git rev-list --count <sinceCommit>..AgentTargetBranchName`.
func (d *Driver) revListCount(ctx context.Context, sinceCommit string) (int, Verdict, error) {
	countCmd := fmt.Sprintf("git rev-list --count %s..%s", sinceCommit, AgentTargetBranchName)
	exitCode, output, err := d.exec.Exec(ctx, countCmd, d.repoDir())
	if err != nil {
		return 0, Verdict{}, &scenario.EnvironmentError{Command: countCmd, Err: err}
	}
	if exitCode != 0 {
		return 0, Verdict{EnvironmentFailure: true, Detail: string(output)}, nil
	}
	count, convErr := strconv.Atoi(strings.TrimSpace(string(output)))
	if convErr != nil {
		return 0, Verdict{EnvironmentFailure: true, Detail: string(output)}, nil
	}
	return count, Verdict{}, nil
}

// TeardownScenario resets the working tree and removes the agent's
// isolation branch. Transitions ARMED|DONE -> READY. If the reset/branch
// removal or its validation fails, it escalates to a full repository
// teardown and re-clone so the next scenario still gets a clean start.
func (d *Driver) TeardownScenario(ctx context.Context) error {
	if d.state != Armed && d.state != Done {
		return &scenario.PreconditionError{Scenario: string(d.kind), Reason: fmt.Sprintf("teardown_scenario called from state %s", d.state)}
	}

	resetCmd := fmt.Sprintf("git reset --hard HEAD && git checkout %s && git branch -D %s && git prune",
		d.defaultBranch, AgentTargetBranchName)
	exitCode, output, err := d.exec.Exec(ctx, resetCmd, d.repoDir())
	teardownOK := err == nil && exitCode == 0

	validateCmd := fmt.Sprintf("git branch --list %s", AgentTargetBranchName)
	validateExit, validateOutput, validateErr := d.exec.Exec(ctx, validateCmd, d.repoDir())
	validateOK := validateErr == nil && validateExit == 0 && len(strings.TrimSpace(string(validateOutput))) == 0

	if teardownOK && validateOK {
		d.kind = ""
		d.scenario = nil
		d.state = Ready
		return nil
	}

	repo := d.repository
	if rmErr := d.forceRepositoryReset(ctx); rmErr != nil {
		return &scenario.EnvironmentError{Command: resetCmd, Err: fmt.Errorf("teardown_scenario failed (%s) and recovery re-clone also failed: %w", output, rmErr)}
	}
	if setupErr := d.SetupRepository(ctx, repo); setupErr != nil {
		return &scenario.EnvironmentError{Command: resetCmd, Err: fmt.Errorf("teardown_scenario failed (%s) and recovery re-clone also failed: %w", output, setupErr)}
	}
	return nil
}

// forceRepositoryReset removes the repository directory and returns the
// driver to EMPTY, bypassing the READY precondition TeardownRepository
// normally enforces. Used only by the teardown_scenario recovery path.
func (d *Driver) forceRepositoryReset(ctx context.Context) error {
	rmCmd := fmt.Sprintf("rm -r %s", d.repoDir())
	exitCode, output, err := d.exec.Exec(ctx, rmCmd, d.workdir)
	if err != nil {
		return &scenario.EnvironmentError{Command: rmCmd, Err: err}
	}
	if exitCode != 0 {
		return &scenario.EnvironmentError{Command: rmCmd, ExitCode: exitCode, Err: fmt.Errorf("%s", output)}
	}
	d.state = Empty
	d.repository = scenario.RepositoryRecord{}
	d.defaultBranch = ""
	return nil
}

// TeardownRepository removes the cloned repository from the container.
// Transitions READY -> EMPTY.
func (d *Driver) TeardownRepository(ctx context.Context) error {
	if d.state != Ready {
		return &scenario.PreconditionError{Scenario: d.repository.Name, Reason: fmt.Sprintf("teardown_repository called from state %s", d.state)}
	}
	return d.forceRepositoryReset(ctx)
}

func (d *Driver) runGitStatus(ctx context.Context) (string, error) {
	const cmd = "git status"
	exitCode, output, err := d.exec.Exec(ctx, cmd, d.repoDir())
	if err != nil {
		return "", &scenario.EnvironmentError{Command: cmd, Err: err}
	}
	if exitCode != 0 {
		return "", &scenario.EnvironmentError{Command: cmd, ExitCode: exitCode, Err: fmt.Errorf("%s", output)}
	}
	return string(output), nil
}

func (d *Driver) runOrFail(ctx context.Context, command string) error {
	exitCode, output, err := d.exec.Exec(ctx, command, d.repoDir())
	if err != nil {
		return &scenario.EnvironmentError{Command: command, Err: err}
	}
	if exitCode != 0 {
		return &scenario.EnvironmentError{Command: command, ExitCode: exitCode, Err: fmt.Errorf("%s", output)}
	}
	return nil
}
