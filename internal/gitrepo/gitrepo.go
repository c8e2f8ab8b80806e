// Package gitrepo is a read-only abstraction over a cloned Git repository:
// commit lookup, branch enumeration, per-commit name-status change lists,
// and patch extraction. It is the one place in the module that talks to
// git directly; the miner drives traversal itself and only asks this
// package to resolve refs and describe individual commits.
package gitrepo

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/scenario-miner/scenario-miner/internal/scenario"
)

// View opens a single cloned repository for read-only inspection.
type View struct {
	repo *git.Repository
	path string
}

// Open opens the repository rooted at path. path must already be a clone
// (cloning is the driver/sandbox's concern, not GitView's).
func Open(path string) (*View, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}
	return &View{repo: repo, path: path}, nil
}

// Resolve resolves a ref to its tip commit hash. ref may be a local branch
// short name ("main"), a remote-tracking short name as returned by
// Branches() ("origin/main" — already carries its remote prefix, so it is
// looked up directly under refs/remotes rather than re-derived via
// NewRemoteReferenceName, which would double the remote name), a tag, or a
// hex hash.
func (v *View) Resolve(ref string) (plumbing.Hash, error) {
	if h := plumbing.NewHash(ref); !h.IsZero() && len(ref) == 40 {
		return h, nil
	}
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(ref),
		plumbing.ReferenceName("refs/remotes/" + ref),
		plumbing.NewTagReferenceName(ref),
	} {
		if r, err := v.repo.Reference(name, true); err == nil {
			return r.Hash(), nil
		}
	}
	return plumbing.ZeroHash, fmt.Errorf("resolving ref %q: %w", ref, plumbing.ErrReferenceNotFound)
}

// Commit returns the GitView's Commit view of the object at hash.
func (v *View) Commit(hash plumbing.Hash) (scenario.Commit, error) {
	c, err := v.repo.CommitObject(hash)
	if err != nil {
		return scenario.Commit{}, fmt.Errorf("loading commit %s: %w", hash, err)
	}
	return commitToScenario(c), nil
}

func commitToScenario(c *object.Commit) scenario.Commit {
	parents := make([]string, len(c.ParentHashes))
	for i, p := range c.ParentHashes {
		parents[i] = p.String()
	}
	return scenario.Commit{
		Hash:      c.Hash.String(),
		Parents:   parents,
		Committer: c.Committer.When,
		Message:   c.Message,
	}
}

// Branches returns every local and remote-tracking branch reference name,
// excluding HEAD and any other non-branch pseudoref.
func (v *View) Branches() ([]string, error) {
	iter, err := v.repo.References()
	if err != nil {
		return nil, fmt.Errorf("listing references: %w", err)
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		if !name.IsBranch() && !name.IsRemote() {
			return nil
		}
		if name.Short() == "HEAD" {
			return nil
		}
		names = append(names, name.Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterating references: %w", err)
	}
	return names, nil
}

// ChangeList parses `git show <hash> --name-status --format=oneline`'s
// output into a change list. go-git's in-memory diff cannot distinguish a
// merge-conflict resolution ("MM") from an ordinary modification, so this
// shells out to native git rather than computing the diff in process — the
// one place this package does not use go-git for the data it returns.
func (v *View) ChangeList(ctx context.Context, hash string) ([]scenario.Change, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", v.path, "show", hash, "--name-status", "--format=oneline")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git show %s --name-status: %w", hash, err)
	}
	return parseNameStatus(out), nil
}

// parseNameStatus tolerates the leading "oneline" summary line, blank
// lines, and both 1- and 2-character change kinds. Rename entries carry
// both a from- and to-path; everything else carries a single path.
func parseNameStatus(out []byte) []scenario.Change {
	var changes []scenario.Change
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			// The --format=oneline summary line looks like "<hash> <subject>"
			// and has no tab-separated fields; skip it.
			if !strings.Contains(line, "\t") {
				continue
			}
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		kind := scenario.ChangeKind(strings.TrimRight(fields[0], "0123456789"))
		switch {
		case strings.HasPrefix(string(kind), "R"):
			if len(fields) < 3 {
				continue
			}
			changes = append(changes, scenario.Change{Kind: scenario.Renamed, FromPath: fields[1], ToPath: fields[2]})
		case strings.HasPrefix(string(kind), "C"):
			if len(fields) < 3 {
				continue
			}
			changes = append(changes, scenario.Change{Kind: scenario.Copied, FromPath: fields[1], ToPath: fields[2]})
		default:
			changes = append(changes, scenario.Change{Kind: kind, Path: fields[1]})
		}
	}
	return changes
}

// Patch returns the textual diff of hash against its first parent, or
// against the empty tree if hash is a root commit. Invalid UTF-8 in the
// resulting diff returns empty bytes rather than an error — the caller
// treats that commit as having no patch identity.
func (v *View) Patch(hash plumbing.Hash) ([]byte, error) {
	c, err := v.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("loading commit %s: %w", hash, err)
	}

	var from *object.Tree
	if len(c.ParentHashes) > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("loading parent of %s: %w", hash, err)
		}
		from, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("loading parent tree of %s: %w", hash, err)
		}
	}

	to, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading tree of %s: %w", hash, err)
	}

	changes, err := from.Diff(to)
	if err != nil {
		return nil, fmt.Errorf("diffing %s: %w", hash, err)
	}

	var sb strings.Builder
	for _, change := range changes {
		patch, err := change.Patch()
		if err != nil {
			continue
		}
		sb.WriteString(patch.String())
	}

	out := sb.String()
	if !utf8.ValidString(out) {
		return nil, nil
	}
	return []byte(out), nil
}

// CloneContext clones url into dir, used by the replay core to materialize
// a fresh working tree for a scenario. Mining operates on repositories the
// external caller has already cloned; replay needs its own copy per
// scenario run, hence the separate, explicit entry point here rather than
// folding it into Open.
func CloneContext(ctx context.Context, url, dir string, timeout time.Duration) (*View, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	repo, err := git.PlainCloneContext(cctx, dir, false, &git.CloneOptions{URL: url})
	if err != nil {
		return nil, fmt.Errorf("cloning %s: %w", url, err)
	}
	return &View{repo: repo, path: dir}, nil
}
