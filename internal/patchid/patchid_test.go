package patchid

import "testing"

func TestFingerprint_StripsNoiseLines(t *testing.T) {
	a := []byte("diff --git a/x.py b/x.py\nindex abc123..def456 100644\n--- a/x.py\n+++ b/x.py\n@@ -1 +1 @@\n-old\n+new\n")
	b := []byte("diff --git a/x.py b/x.py\nindex 111111..222222 100644\n--- a/x.py\n+++ b/x.py\n@@ -1 +1 @@\n-old\n+new\n")

	fa := Fingerprint(a)
	fb := Fingerprint(b)
	if fa == "" || fb == "" {
		t.Fatalf("Fingerprint returned empty: fa=%q fb=%q", fa, fb)
	}
	if fa != fb {
		t.Errorf("Fingerprint(a) = %q, Fingerprint(b) = %q, want equal despite differing blob hashes", fa, fb)
	}
}

func TestFingerprint_DifferentPayloadsDiffer(t *testing.T) {
	a := []byte("@@ -1 +1 @@\n-old\n+new\n")
	b := []byte("@@ -1 +1 @@\n-old\n+different\n")

	if Fingerprint(a) == Fingerprint(b) {
		t.Error("Fingerprint() matched for different payloads")
	}
}

func TestFingerprint_EmptyInput(t *testing.T) {
	if got := Fingerprint(nil); got != "" {
		t.Errorf("Fingerprint(nil) = %q, want empty", got)
	}
	if got := Fingerprint([]byte("")); got != "" {
		t.Errorf("Fingerprint(\"\") = %q, want empty", got)
	}
}

func TestEqual_EmptyNeverMatches(t *testing.T) {
	if Equal("", "") {
		t.Error("Equal(\"\", \"\") = true, want false")
	}
	if Equal("", "abc") {
		t.Error("Equal(\"\", \"abc\") = true, want false")
	}
}

func TestEqual_SameFingerprint(t *testing.T) {
	f := Fingerprint([]byte("@@ -1 +1 @@\n-old\n+new\n"))
	if !Equal(f, f) {
		t.Error("Equal(f, f) = false, want true")
	}
}
