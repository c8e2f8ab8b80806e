package gitrepo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/scenario-miner/scenario-miner/internal/testutil"
)

func mustHash(t *testing.T, s string) plumbing.Hash {
	t.Helper()
	return plumbing.NewHash(s)
}

func TestOpenAndResolve(t *testing.T) {
	dir := t.TempDir()
	repo := testutil.InitRepo(t, dir)
	testutil.WriteFile(t, dir, "a.txt", "one")
	hash := testutil.Commit(t, repo, "first", time.Now(), "a.txt")

	view, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	resolved, err := view.Resolve("master")
	if err != nil {
		resolved, err = view.Resolve("main")
	}
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.String() != hash {
		t.Errorf("Resolve() = %s, want %s", resolved, hash)
	}
}

func TestChangeList(t *testing.T) {
	dir := t.TempDir()
	repo := testutil.InitRepo(t, dir)
	testutil.WriteFile(t, dir, "a.txt", "one")
	hash := testutil.Commit(t, repo, "first", time.Now(), "a.txt")

	view, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	changes, err := view.ChangeList(context.Background(), hash)
	if err != nil {
		t.Fatalf("ChangeList() error = %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("ChangeList() returned %d changes, want 1: %+v", len(changes), changes)
	}
	if changes[0].Kind != "A" || changes[0].Path != "a.txt" {
		t.Errorf("ChangeList()[0] = %+v, want {Kind: A, Path: a.txt}", changes[0])
	}
}

func TestChangeList_Rename(t *testing.T) {
	dir := t.TempDir()
	repo := testutil.InitRepo(t, dir)
	testutil.WriteFile(t, dir, "old.txt", strings.Repeat("x", 200))
	testutil.Commit(t, repo, "first", time.Now(), "old.txt")

	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree() error = %v", err)
	}
	testutil.WriteFile(t, dir, "new.txt", strings.Repeat("x", 200))
	if _, err := worktree.Add("new.txt"); err != nil {
		t.Fatalf("Add(new.txt) error = %v", err)
	}
	if _, err := worktree.Remove("old.txt"); err != nil {
		t.Fatalf("Remove(old.txt) error = %v", err)
	}
	renameHash := testutil.Commit(t, repo, "rename", time.Now())

	view, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	changes, err := view.ChangeList(context.Background(), renameHash)
	if err != nil {
		t.Fatalf("ChangeList() error = %v", err)
	}
	foundRename := false
	for _, c := range changes {
		if c.Kind == "R" || strings.HasPrefix(string(c.Kind), "R") {
			foundRename = true
			if c.ToPath != "new.txt" {
				t.Errorf("rename ToPath = %q, want new.txt", c.ToPath)
			}
		}
	}
	if !foundRename {
		t.Errorf("ChangeList() did not detect rename: %+v", changes)
	}
}

func TestPatch_RootCommitAndChild(t *testing.T) {
	dir := t.TempDir()
	repo := testutil.InitRepo(t, dir)
	testutil.WriteFile(t, dir, "a.txt", "one\n")
	firstHash := testutil.Commit(t, repo, "first", time.Now(), "a.txt")

	testutil.WriteFile(t, dir, "a.txt", "one\ntwo\n")
	secondHash := testutil.Commit(t, repo, "second", time.Now(), "a.txt")

	view, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	firstPatch, err := view.Patch(mustHash(t, firstHash))
	if err != nil {
		t.Fatalf("Patch(first) error = %v", err)
	}
	if !strings.Contains(string(firstPatch), "a.txt") {
		t.Errorf("Patch(first) = %q, want mention of a.txt", firstPatch)
	}

	secondPatch, err := view.Patch(mustHash(t, secondHash))
	if err != nil {
		t.Fatalf("Patch(second) error = %v", err)
	}
	if !strings.Contains(string(secondPatch), "two") {
		t.Errorf("Patch(second) = %q, want mention of added line", secondPatch)
	}
}

func TestResolve_RemoteTrackingBranch(t *testing.T) {
	dir := t.TempDir()
	repo := testutil.InitRepo(t, dir)
	testutil.WriteFile(t, dir, "a.txt", "one")
	hash := testutil.Commit(t, repo, "first", time.Now(), "a.txt")

	// Simulate the post-clone state of a non-default branch: a
	// remote-tracking ref with no corresponding local branch, exactly what
	// a plain `git clone` (no --single-branch) leaves behind for every
	// branch other than the one checked out.
	remoteRef := plumbing.NewHashReference(plumbing.ReferenceName("refs/remotes/origin/feature"), mustHash(t, hash))
	if err := repo.Storer.SetReference(remoteRef); err != nil {
		t.Fatalf("SetReference() error = %v", err)
	}

	view, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	branches, err := view.Branches()
	if err != nil {
		t.Fatalf("Branches() error = %v", err)
	}
	foundShortName := ""
	for _, b := range branches {
		if strings.HasSuffix(b, "feature") {
			foundShortName = b
		}
	}
	if foundShortName == "" {
		t.Fatalf("Branches() = %v, want a remote-tracking entry for feature", branches)
	}

	resolved, err := view.Resolve(foundShortName)
	if err != nil {
		t.Fatalf("Resolve(%q) error = %v, want the remote-tracking ref to resolve", foundShortName, err)
	}
	if resolved.String() != hash {
		t.Errorf("Resolve(%q) = %s, want %s", foundShortName, resolved, hash)
	}
}

func TestBranches_ExcludesHEAD(t *testing.T) {
	dir := t.TempDir()
	repo := testutil.InitRepo(t, dir)
	testutil.WriteFile(t, dir, "a.txt", "one")
	testutil.Commit(t, repo, "first", time.Now(), "a.txt")
	testutil.CheckoutNewBranch(t, dir, "feature")

	view, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	branches, err := view.Branches()
	if err != nil {
		t.Fatalf("Branches() error = %v", err)
	}
	for _, b := range branches {
		if b == "HEAD" {
			t.Errorf("Branches() included HEAD: %v", branches)
		}
	}
	found := false
	for _, b := range branches {
		if b == "feature" {
			found = true
		}
	}
	if !found {
		t.Errorf("Branches() = %v, want to include feature", branches)
	}
}
