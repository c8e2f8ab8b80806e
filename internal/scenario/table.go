package scenario

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Table is the in-process form of the persisted, per-repository scenario
// schema: one Record per line, encoded as JSON Lines so a consumer can
// stream repositories one at a time rather than load a single document.
type Table struct {
	Records []Record
}

// MarshalJSONLine encodes a single Record as one compact JSON object
// followed by a newline, the unit a Table's on-disk form is built from.
func MarshalJSONLine(r Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, &DataError{Source: "scenario record", Err: err}
	}
	return buf.Bytes(), nil
}

// WriteTo streams every record in t to w, one JSON object per line.
func (t Table) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, r := range t.Records {
		line, err := MarshalJSONLine(r)
		if err != nil {
			return total, err
		}
		n, err := w.Write(line)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// UnmarshalTableLine decodes one line of a scenario table into a Record.
// Blank lines (trailing newline artifacts) decode to the zero Record with
// ok=false rather than an error.
func UnmarshalTableLine(line []byte) (rec Record, ok bool, err error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return Record{}, false, nil
	}
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return Record{}, false, &DataError{Source: "scenario table line", Err: err}
	}
	return rec, true, nil
}

// ReadTable decodes an entire JSON Lines stream into a Table. A line that
// fails to parse is reported as a DataError naming its 1-based line number;
// the caller decides whether to abort the whole table or skip the line.
func ReadTable(r io.Reader) (Table, error) {
	var t Table
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		rec, ok, err := UnmarshalTableLine(scanner.Bytes())
		if err != nil {
			return t, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if !ok {
			continue
		}
		t.Records = append(t.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return t, &DataError{Source: "scenario table", Err: err}
	}
	return t, nil
}

// LoadScenario locates the index-th scenario of the given kind within the
// named repository's record, surfacing the exact shape
// internal/driver.Setup needs to provision a sandbox. index is 0-based in
// encounter order within that kind's slice.
func LoadScenario(t Table, repositoryID string, kind Kind, index int) (any, error) {
	for _, rec := range t.Records {
		if rec.Repository.ID != repositoryID {
			continue
		}
		switch kind {
		case KindFileCommitGramChunk, KindFileCommitGramRebase:
			if index < 0 || index >= len(rec.FileCommitGrams) {
				return nil, &ConfigurationError{Field: "index", Reason: "out of range for file_commit_grams"}
			}
			return rec.FileCommitGrams[index], nil
		case KindMerge:
			if index < 0 || index >= len(rec.Merges) {
				return nil, &ConfigurationError{Field: "index", Reason: "out of range for merges"}
			}
			return rec.Merges[index], nil
		case KindCherryPick:
			if index < 0 || index >= len(rec.CherryPicks) {
				return nil, &ConfigurationError{Field: "index", Reason: "out of range for cherry_picks"}
			}
			return rec.CherryPicks[index], nil
		default:
			return nil, &ConfigurationError{Field: "kind", Reason: fmt.Sprintf("unsupported scenario kind %q", kind)}
		}
	}
	return nil, &ConfigurationError{Field: "repositoryID", Reason: fmt.Sprintf("no record for repository %q", repositoryID)}
}
