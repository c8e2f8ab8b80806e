// Package testutil provides shared git-fixture helpers for the mining and
// replay test suites. No build tags, so every package can import it.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// InitRepo initializes a git repository in repoDir with test user config and
// GPG signing disabled.
func InitRepo(t *testing.T, repoDir string) *git.Repository {
	t.Helper()

	repo, err := git.PlainInit(repoDir, false)
	if err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}

	cfg, err := repo.Config()
	if err != nil {
		t.Fatalf("failed to get repo config: %v", err)
	}
	cfg.User.Name = "Test User"
	cfg.User.Email = "test@example.com"
	if cfg.Raw == nil {
		cfg.Raw = config.New()
	}
	cfg.Raw.Section("commit").SetOption("gpgsign", "false")

	if err := repo.SetConfig(cfg); err != nil {
		t.Fatalf("failed to set repo config: %v", err)
	}
	return repo
}

// WriteFile creates a file with content under repoDir, creating parent
// directories as needed.
func WriteFile(t *testing.T, repoDir, path, content string) {
	t.Helper()

	fullPath := filepath.Join(repoDir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}

// Commit stages every path and creates a commit, returning its hash.
func Commit(t *testing.T, repo *git.Repository, message string, when time.Time, paths ...string) string {
	t.Helper()

	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	for _, p := range paths {
		if _, err := worktree.Add(p); err != nil {
			t.Fatalf("failed to add %s: %v", p, err)
		}
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: when},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	return hash.String()
}

// CheckoutNewBranch creates and checks out a new branch using the git CLI,
// matching the production code's own preference for CLI checkout over
// go-git's worktree checkout.
func CheckoutNewBranch(t *testing.T, repoDir, branchName string) {
	t.Helper()

	cmd := exec.Command("git", "checkout", "-b", branchName)
	cmd.Dir = repoDir
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to checkout new branch %s: %v\noutput: %s", branchName, err, output)
	}
}

// MergeBranch merges source into the currently checked out branch via the
// CLI, optionally forcing a merge commit (no fast-forward).
func MergeBranch(t *testing.T, repoDir, source, message string) error {
	t.Helper()

	cmd := exec.Command("git", "merge", "--no-ff", "-m", message, source)
	cmd.Dir = repoDir
	cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=Test User", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=Test User", "GIT_COMMITTER_EMAIL=test@example.com")
	if output, err := cmd.CombinedOutput(); err != nil {
		return &mergeError{output: string(output), err: err}
	}
	return nil
}

type mergeError struct {
	output string
	err    error
}

func (e *mergeError) Error() string { return e.output }
func (e *mergeError) Unwrap() error { return e.err }

// HeadHash returns the current HEAD commit hash.
func HeadHash(t *testing.T, repo *git.Repository) string {
	t.Helper()
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("failed to get HEAD: %v", err)
	}
	return head.Hash().String()
}
