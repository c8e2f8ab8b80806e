package summarize

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffPreview renders a compact, line-level +/- preview between before and
// after, the same DiffLinesToChars/DiffMain/DiffCharsToLines pipeline the
// teacher uses for attributing checkpoint content, applied here to preview
// a file-commit-gram scenario's staged diff for CLI output.
func DiffPreview(before, after string) string {
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	text1, text2, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(text1, text2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var b strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffEqual:
			prefix = "  "
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			if line == "" {
				continue
			}
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}
