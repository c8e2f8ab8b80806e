// Package miner implements the graph traversal and state machine that
// extracts file-commit-gram, merge, and cherry-pick scenarios from a
// repository's full commit history across all branches.
package miner

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/scenario-miner/scenario-miner/internal/patchid"
	"github.com/scenario-miner/scenario-miner/internal/scenario"
)

// LanguageMatch selects how Config.Language is matched against a change's
// path. Substring is the literal behavior of the original prototype
// (admits e.g. "foo.py.bak"); Suffix is the stricter reading. Both are
// exposed because the two are genuinely different, defensible choices — see
// DESIGN.md.
type LanguageMatch int

const (
	Substring LanguageMatch = iota
	Suffix
)

// MaxCherryPickPairsPerRepository bounds the duplicate-message pass: once
// this many cherry-pick scenarios have been emitted from duplicate
// messages, the pass stops, to keep pathological (e.g. mechanically
// regenerated changelog) histories from making the pairwise comparison
// quadratic in practice.
const MaxCherryPickPairsPerRepository = 50

// Config configures one mining run.
type Config struct {
	Window   int
	Language string
	Match    LanguageMatch
}

// GitView is the subset of gitrepo.View the miner needs. Defined here,
// not in gitrepo, so the miner depends on the capability it uses rather
// than a concrete type.
type GitView interface {
	Resolve(ref string) (plumbing.Hash, error)
	Commit(hash plumbing.Hash) (scenario.Commit, error)
	ChangeList(ctx context.Context, hash string) ([]scenario.Change, error)
	Patch(hash plumbing.Hash) ([]byte, error)
	Branches() ([]string, error)
}

// cherryPickTrailerRegex recognizes the standard `git cherry-pick -x`
// trailer. Go's regexp has no lookbehind, so the source hash is captured
// rather than matched via the lookbehind spec.md describes.
var cherryPickTrailerRegex = regexp.MustCompile(`cherry picked from commit ([0-9a-f]{40})`)

// run tracks one in-progress file-commit-gram on one branch.
type run struct {
	first  string
	last   string
	length int
}

// messageEntry is one commit sharing a message with at least one other
// commit, tracked for the duplicate-message cherry-pick pass.
type messageEntry struct {
	hash      string
	parents   []string
	committer time.Time
}

// Miner mines one repository through a GitView. Not safe for concurrent
// use; callers mining multiple repositories concurrently construct one
// Miner per repository.
type Miner struct {
	view GitView
	cfg  Config

	visited      map[string]bool
	messages     map[string][]messageEntry
	fingerprints map[string]string
}

// New constructs a Miner bound to view with the given configuration.
func New(view GitView, cfg Config) *Miner {
	if cfg.Window < 1 {
		cfg.Window = 1
	}
	return &Miner{
		view:         view,
		cfg:          cfg,
		visited:      make(map[string]bool),
		messages:     make(map[string][]messageEntry),
		fingerprints: make(map[string]string),
	}
}

// Result is the full output of one Mine call.
type Result struct {
	FileCommitGrams []scenario.FileCommitGram
	Merges          []scenario.MergeScenario
	CherryPicks     []scenario.CherryPickScenario
}

// Mine traverses every branch exactly once (modulo keepalive overlap) and
// returns every scenario extracted from the repository's history.
func (m *Miner) Mine(ctx context.Context) (Result, error) {
	branches, err := m.view.Branches()
	if err != nil {
		return Result{}, fmt.Errorf("listing branches: %w", err)
	}

	var result Result
	for _, branch := range branches {
		grams, merges, cherryPicks, err := m.mineBranch(ctx, branch)
		if err != nil {
			return Result{}, fmt.Errorf("mining branch %s: %w", branch, err)
		}
		result.FileCommitGrams = append(result.FileCommitGrams, grams...)
		result.Merges = append(result.Merges, merges...)
		result.CherryPicks = append(result.CherryPicks, cherryPicks...)
	}

	result.CherryPicks = append(result.CherryPicks, m.duplicateMessagePass()...)
	return result, nil
}

func (m *Miner) mineBranch(ctx context.Context, branch string) ([]scenario.FileCommitGram, []scenario.MergeScenario, []scenario.CherryPickScenario, error) {
	tip, err := m.view.Resolve(branch)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolving %s: %w", branch, err)
	}

	var grams []scenario.FileCommitGram
	var merges []scenario.MergeScenario
	var cherryPicks []scenario.CherryPickScenario

	tracked := make(map[string]*run)
	keepalive := m.cfg.Window - 1
	frontier := []plumbing.Hash{tip}
	// pushed dedupes frontier membership within this branch's own traversal
	// so a diamond in b's history never enqueues the same ancestor twice;
	// it is distinct from the global visited set, which instead governs
	// the keepalive decision below.
	pushed := map[string]bool{tip.String(): true}

	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		hash := id.String()

		wasVisited := m.visited[hash]
		if wasVisited {
			if keepalive > 0 {
				keepalive--
			} else {
				break
			}
		} else {
			m.visited[hash] = true
		}

		commit, err := m.view.Commit(id)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading commit %s: %w", hash, err)
		}

		if !wasVisited {
			m.messages[commit.Message] = append(m.messages[commit.Message], messageEntry{
				hash:      commit.Hash,
				parents:   commit.Parents,
				committer: commit.Committer,
			})
		}
		// Parents are enqueued regardless of global visited status: a
		// branch joining previously-covered history must still be able to
		// walk up to keepalive steps into it. The per-branch pushed set is
		// what prevents re-enqueueing (and so double-processing) a commit
		// already pending in this branch's own frontier.
		for _, p := range commit.Parents {
			if !pushed[p] {
				pushed[p] = true
				frontier = append(frontier, plumbing.NewHash(p))
			}
		}

		finalized, merge, cherryPick, err := m.processCommit(ctx, branch, commit, tracked)
		if err != nil {
			return nil, nil, nil, err
		}
		grams = append(grams, finalized...)
		if merge != nil {
			merges = append(merges, *merge)
		}
		if cherryPick != nil {
			cherryPicks = append(cherryPicks, *cherryPick)
		}
	}

	for path, r := range tracked {
		if r.length >= m.cfg.Window {
			grams = append(grams, scenario.FileCommitGram{
				FilePath: path, BranchName: branch, FirstCommit: r.first, LastCommit: r.last, Length: r.length,
			})
		}
	}

	return grams, merges, cherryPicks, nil
}

// processCommit applies spec.md §4.2.1 to one commit, mutating tracked in
// place and returning any grams finalized by this commit, the merge
// scenario (if c was a merge), and a trailer-detected cherry-pick scenario
// (if any).
func (m *Miner) processCommit(ctx context.Context, branch string, commit scenario.Commit, tracked map[string]*run) ([]scenario.FileCommitGram, *scenario.MergeScenario, *scenario.CherryPickScenario, error) {
	isMerge := commit.IsMerge()

	var cherryPick *scenario.CherryPickScenario
	if matches := cherryPickTrailerRegex.FindStringSubmatch(commit.Message); matches != nil {
		cherryPick = &scenario.CherryPickScenario{
			CherryPickCommit: commit.Hash,
			SourceCommit:     matches[1],
			Parents:          commit.Parents,
		}
	}

	changes, err := m.view.ChangeList(ctx, commit.Hash)
	if err != nil {
		return nil, nil, cherryPick, fmt.Errorf("change list for %s: %w", commit.Hash, err)
	}

	hasGramKind := false
	for _, c := range changes {
		if c.Kind.CountsForGram() {
			hasGramKind = true
			break
		}
	}
	if !hasGramKind {
		if isMerge {
			return nil, &scenario.MergeScenario{MergeCommit: commit.Hash, Parents: commit.Parents, HadConflicts: false}, cherryPick, nil
		}
		return nil, nil, cherryPick, nil
	}

	affected := make(map[string]scenario.ChangeKind)
	for _, c := range changes {
		if !c.Kind.CountsForGram() {
			continue
		}
		path := c.EffectivePath()
		if !m.matchesLanguage(path) {
			continue
		}
		affected[path] = c.Kind
	}

	hadConflicts := false
	for path, kind := range affected {
		if kind == scenario.ModifiedMerge && isMerge {
			hadConflicts = true
		}
		if r, ok := tracked[path]; ok {
			r.length++
			if r.length >= m.cfg.Window {
				r.last = commit.Hash
			}
		} else {
			tracked[path] = &run{first: commit.Hash, last: commit.Hash, length: 1}
		}
	}

	var finalized []scenario.FileCommitGram
	for path, r := range tracked {
		if _, ok := affected[path]; ok {
			continue
		}
		if r.length >= m.cfg.Window {
			finalized = append(finalized, scenario.FileCommitGram{
				FilePath: path, BranchName: branch, FirstCommit: r.first, LastCommit: r.last, Length: r.length,
			})
		}
		delete(tracked, path)
	}

	var merge *scenario.MergeScenario
	if isMerge {
		merge = &scenario.MergeScenario{MergeCommit: commit.Hash, Parents: commit.Parents, HadConflicts: hadConflicts}
	}

	return finalized, merge, cherryPick, nil
}

func (m *Miner) matchesLanguage(path string) bool {
	if m.cfg.Language == "" {
		return true
	}
	if m.cfg.Match == Suffix {
		return strings.HasSuffix(path, m.cfg.Language)
	}
	return strings.Contains(path, m.cfg.Language)
}

// duplicateMessagePass implements spec.md §4.2.3: every message seen on
// more than one commit is a candidate bucket; every unordered pair within
// a bucket whose patch fingerprints match and are non-empty is a
// cherry-pick, older commit as source.
func (m *Miner) duplicateMessagePass() []scenario.CherryPickScenario {
	var result []scenario.CherryPickScenario

	keys := make([]string, 0, len(m.messages))
	for msg := range m.messages {
		keys = append(keys, msg)
	}
	sort.Strings(keys)

	for _, msg := range keys {
		entries := m.messages[msg]
		if len(entries) < 2 {
			continue
		}
		for i := 0; i < len(entries); i++ {
			for j := i + 1; j < len(entries); j++ {
				if len(result) >= MaxCherryPickPairsPerRepository {
					return result
				}
				a, b := entries[i], entries[j]
				older, newer := a, b
				if b.committer.Before(a.committer) {
					older, newer = b, a
				}
				if !older.committer.Before(newer.committer) {
					continue
				}
				fa := m.fingerprintOf(older.hash)
				fb := m.fingerprintOf(newer.hash)
				if !patchid.Equal(fa, fb) {
					continue
				}
				result = append(result, scenario.CherryPickScenario{
					CherryPickCommit: newer.hash,
					SourceCommit:     older.hash,
					Parents:          newer.parents,
				})
			}
		}
	}
	return result
}

func (m *Miner) fingerprintOf(hash string) string {
	if f, ok := m.fingerprints[hash]; ok {
		return f
	}
	diff, err := m.view.Patch(plumbing.NewHash(hash))
	var f string
	if err == nil {
		f = patchid.Fingerprint(diff)
	}
	m.fingerprints[hash] = f
	return f
}
