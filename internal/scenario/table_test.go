package scenario

import (
	"errors"
	"strings"
	"testing"
)

func TestMarshalJSONLine_RoundTrip(t *testing.T) {
	rec := Record{
		Repository: RepositoryRecord{ID: "1", Name: "owner/repo", Language: "Python"},
		FileCommitGrams: []FileCommitGram{
			{FilePath: "src/main.py", BranchName: "master", FirstCommit: "abc", LastCommit: "def", Length: 3},
		},
	}

	line, err := MarshalJSONLine(rec)
	if err != nil {
		t.Fatalf("MarshalJSONLine() error = %v", err)
	}
	if !strings.HasSuffix(string(line), "\n") {
		t.Errorf("MarshalJSONLine() does not end in newline: %q", line)
	}

	got, ok, err := UnmarshalTableLine(line)
	if err != nil {
		t.Fatalf("UnmarshalTableLine() error = %v", err)
	}
	if !ok {
		t.Fatal("UnmarshalTableLine() ok = false, want true")
	}
	if got.Repository.Name != rec.Repository.Name {
		t.Errorf("Repository.Name = %q, want %q", got.Repository.Name, rec.Repository.Name)
	}
	if len(got.FileCommitGrams) != 1 || got.FileCommitGrams[0].Length != 3 {
		t.Errorf("FileCommitGrams = %+v, want one gram of length 3", got.FileCommitGrams)
	}
}

func TestUnmarshalTableLine_Blank(t *testing.T) {
	_, ok, err := UnmarshalTableLine([]byte("   \n"))
	if err != nil {
		t.Fatalf("UnmarshalTableLine() error = %v", err)
	}
	if ok {
		t.Error("UnmarshalTableLine() ok = true for blank line, want false")
	}
}

func TestReadTable_MultipleRepositories(t *testing.T) {
	var sb strings.Builder
	t1 := Table{Records: []Record{
		{Repository: RepositoryRecord{ID: "1", Name: "a/a"}},
		{Repository: RepositoryRecord{ID: "2", Name: "b/b"}},
	}}
	if _, err := t1.WriteTo(&sb); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	got, err := ReadTable(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if len(got.Records) != 2 {
		t.Fatalf("ReadTable() returned %d records, want 2", len(got.Records))
	}
	if got.Records[0].Repository.ID != "1" || got.Records[1].Repository.ID != "2" {
		t.Errorf("ReadTable() records out of order: %+v", got.Records)
	}
}

func TestReadTable_MalformedLineReportsLineNumber(t *testing.T) {
	input := "{\"repository\":{\"id\":\"1\"}}\nnot json\n"
	_, err := ReadTable(strings.NewReader(input))
	if err == nil {
		t.Fatal("ReadTable() error = nil, want error on malformed line")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("ReadTable() error = %v, want mention of line 2", err)
	}
}

func TestLoadScenario_MergeByIndex(t *testing.T) {
	table := Table{Records: []Record{
		{
			Repository: RepositoryRecord{ID: "42", Name: "owner/repo"},
			Merges: []MergeScenario{
				{MergeCommit: "aaa", Parents: []string{"bbb", "ccc"}, HadConflicts: true},
			},
		},
	}}

	got, err := LoadScenario(table, "42", KindMerge, 0)
	if err != nil {
		t.Fatalf("LoadScenario() error = %v", err)
	}
	merge, ok := got.(MergeScenario)
	if !ok {
		t.Fatalf("LoadScenario() returned %T, want MergeScenario", got)
	}
	if merge.MergeCommit != "aaa" {
		t.Errorf("MergeCommit = %q, want %q", merge.MergeCommit, "aaa")
	}
}

func TestLoadScenario_UnknownRepository(t *testing.T) {
	table := Table{Records: []Record{{Repository: RepositoryRecord{ID: "1"}}}}
	_, err := LoadScenario(table, "does-not-exist", KindMerge, 0)
	var cfgErr *ConfigurationError
	if err == nil {
		t.Fatal("LoadScenario() error = nil, want ConfigurationError")
	}
	if !errors.As(err, &cfgErr) {
		t.Errorf("LoadScenario() error = %v, want *ConfigurationError", err)
	}
}
