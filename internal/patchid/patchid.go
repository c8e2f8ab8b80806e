// Package patchid normalizes a commit's textual diff into a stable
// fingerprint, used to detect cherry-picks that carry an identical payload
// but lack (or have a mismatched) "cherry picked from" trailer.
package patchid

import (
	"bufio"
	"crypto/sha1" //nolint:gosec // fingerprinting, not a security boundary
	"encoding/hex"
	"regexp"
	"strings"
)

// noiseLine matches diff header lines that carry only blob hashes or file
// paths, both of which vary across a cherry-pick's source and destination
// even though the actual payload is identical.
var noiseLine = regexp.MustCompile(`^(index|diff|---|\+\+\+) `)

// Fingerprint computes the patch-identity fingerprint of diff: strip noise
// header lines and blank lines, then SHA-1 the remainder. An empty or
// invalid-UTF8 diff (signaled by the caller passing nil) yields an empty
// fingerprint — callers must never treat two empty fingerprints as a match.
func Fingerprint(diff []byte) string {
	if len(diff) == 0 {
		return ""
	}

	var sb strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(string(diff)))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if noiseLine.MatchString(line) {
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	normalized := sb.String()
	if normalized == "" {
		return ""
	}

	sum := sha1.Sum([]byte(normalized)) //nolint:gosec // fingerprinting, not a security boundary
	return hex.EncodeToString(sum[:])
}

// Equal reports whether two fingerprints identify the same patch. Empty
// fingerprints never match, even against each other.
func Equal(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b
}
