// Package scenario defines the data model shared by the mining core and the
// replay core: commits and change lists as read from a Git repository, the
// three scenario kinds mined from its history, and the per-repository
// record persisted between the two.
package scenario

import "time"

// ChangeKind is a single-letter (or two-letter, for "MM") git name-status
// code. Only AddedOrModified kinds participate in file-commit-gram
// accounting; everything else is carried through the change list but
// ignored for mining purposes.
type ChangeKind string

const (
	Added         ChangeKind = "A"
	Modified      ChangeKind = "M"
	ModifiedMerge ChangeKind = "MM"
	Renamed       ChangeKind = "R"
	Deleted       ChangeKind = "D"
	Copied        ChangeKind = "C"
	TypeChanged   ChangeKind = "T"
	Unmerged      ChangeKind = "U"
	Unknown       ChangeKind = "X"
)

// CountsForGram reports whether kind participates in file-commit-gram
// accounting, per spec: only A, M and MM do.
func (k ChangeKind) CountsForGram() bool {
	return k == Added || k == Modified || k == ModifiedMerge
}

// Change is one entry in a commit's name-status change list. FromPath and
// ToPath are both set only for renames (kind == Renamed); otherwise Path
// holds the single affected path.
type Change struct {
	Kind     ChangeKind
	Path     string
	FromPath string
	ToPath   string
}

// EffectivePath returns the path this change should be tracked under for
// gram accounting: the plain path for non-renames, the destination path for
// renames (renames never count toward grams, but callers that want "the"
// path for logging use this).
func (c Change) EffectivePath() string {
	if c.Kind == Renamed {
		return c.ToPath
	}
	return c.Path
}

// Commit is a read-only view of one commit as GitView exposes it.
type Commit struct {
	Hash      string // 40-hex object ID
	Parents   []string
	Committer time.Time
	Message   string
}

// IsRoot reports whether this commit has no parents.
func (c Commit) IsRoot() bool { return len(c.Parents) == 0 }

// IsMerge reports whether this commit has two or more parents.
func (c Commit) IsMerge() bool { return len(c.Parents) >= 2 }

// FileCommitGram is a maximal run of consecutive commits on one branch in
// which a specific file is modified (A, M or MM). FirstCommit is
// chronologically newest, LastCommit is chronologically oldest — traversal
// runs child to parent.
type FileCommitGram struct {
	FilePath    string
	BranchName  string
	FirstCommit string
	LastCommit  string
	Length      int
}

// MergeScenario records one merge commit, whether any of its changed files
// carried a conflict-resolution ("MM") marker.
type MergeScenario struct {
	MergeCommit  string
	Parents      []string
	HadConflicts bool
}

// CherryPickScenario records a detected cherry-pick: cherry-pick by trailer
// or by duplicate-message patch-identity match.
type CherryPickScenario struct {
	CherryPickCommit string
	SourceCommit     string
	Parents          []string
}

// Kind identifies which of the three scenario shapes, plus the two replay
// sub-kinds for file-commit grams (spec.md §4.5.2), a record describes.
type Kind string

const (
	KindFileCommitGramChunk  Kind = "file_commit_gram_chunk"
	KindFileCommitGramRebase Kind = "file_commit_gram_rebase"
	KindMerge                Kind = "merge"
	KindCherryPick           Kind = "cherry_pick"
)

// RepositoryRecord is the input describing one repository to mine or
// replay against. Surrounding metadata (stars, size, etc.) is opaque
// pass-through and is not modeled here — only what the core needs.
type RepositoryRecord struct {
	ID       string
	Name     string // "owner/repo"
	Language string
}

// CloneURL derives the canonical clone URL for this repository.
func (r RepositoryRecord) CloneURL() string {
	return "https://github.com/" + r.Name + ".git"
}

// Record is the per-repository mining output: the three scenario lists
// plus an optional error trace, exactly the schema spec.md §6 describes.
type Record struct {
	Repository     RepositoryRecord    `json:"repository"`
	FileCommitGrams []FileCommitGram    `json:"file_commit_grams"`
	Merges          []MergeScenario     `json:"merges"`
	CherryPicks     []CherryPickScenario `json:"cherry_picks"`
	Error           string              `json:"error,omitempty"`
}
