package security

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestSanitizeFilename_StripsPathTraversal(t *testing.T) {
	got := SanitizeFilename("../../etc/passwd")
	if strings.Contains(got, "..") || strings.Contains(got, "/") {
		t.Errorf("SanitizeFilename leaked traversal: %q", got)
	}
}

func TestSanitizeFilename_EmptyBecomesUnnamed(t *testing.T) {
	if got := SanitizeFilename(""); got != "unnamed" {
		t.Errorf("SanitizeFilename(\"\") = %q, want unnamed", got)
	}
	if got := SanitizeFilename("."); got != "unnamed" {
		t.Errorf("SanitizeFilename(\".\") = %q, want unnamed", got)
	}
}

func TestSanitizeFilename_StripsNullAndControlBytes(t *testing.T) {
	got := SanitizeFilename("file\x00name\x01.txt")
	if strings.ContainsAny(got, "\x00\x01") {
		t.Errorf("SanitizeFilename left control bytes: %q", got)
	}
}

func TestValidateFilename_RejectsTraversalAndEmpty(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"report.json", true},
		{"", false},
		{"../etc/passwd", false},
		{"a/b.json", false},
		{"file\x00.json", false},
	}
	for _, c := range cases {
		if got := ValidateFilename(c.in); got != c.want {
			t.Errorf("ValidateFilename(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestConstantTimeCompare(t *testing.T) {
	if !ConstantTimeCompare("abc123", "abc123") {
		t.Error("equal strings must compare equal")
	}
	if ConstantTimeCompare("abc123", "abc124") {
		t.Error("different strings must not compare equal")
	}
	if ConstantTimeCompare("short", "muchlonger") {
		t.Error("different-length strings must not compare equal")
	}
}

func TestRedactMap_RedactsSensitiveKeysOnly(t *testing.T) {
	in := map[string]string{
		"purpose":       "fine-tuning",
		"api_key":       "sk-abc123",
		"Authorization": "Bearer xyz",
		"note":          "hello",
	}
	got := RedactMap(in)
	if got["purpose"] != "fine-tuning" || got["note"] != "hello" {
		t.Errorf("RedactMap altered non-sensitive fields: %v", got)
	}
	if got["api_key"] != "[REDACTED]" || got["Authorization"] != "[REDACTED]" {
		t.Errorf("RedactMap did not redact sensitive fields: %v", got)
	}
}

func TestSanitizePath_RemovesTraversalAndDuplicateSlashes(t *testing.T) {
	got := SanitizePath("/a//b/../c/")
	if got != "a/b/c" {
		t.Errorf("SanitizePath = %q, want a/b/c", got)
	}
}

// Property: ValidateFilename never accepts a string SanitizeFilename had
// to change — the two functions must agree on what "safe" means.
func TestProperty_ValidateFilenameAgreesWithSanitize(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[a-zA-Z0-9_./\\%-]{0,30}`).Draw(t, "name")
		if ValidateFilename(name) && name != "" && name != "." && SanitizeFilename(name) != name {
			t.Fatalf("ValidateFilename(%q) = true but SanitizeFilename changed it to %q", name, SanitizeFilename(name))
		}
	})
}

// Property: SanitizePath never leaves a ".." segment in its output,
// regardless of how many traversal attempts or slash runs are supplied.
func TestProperty_SanitizePathNeverLeavesTraversal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		path := rapid.StringMatching(`[a-zA-Z0-9./]{0,40}`).Draw(t, "path")
		got := SanitizePath(path)
		for _, seg := range strings.Split(got, "/") {
			if seg == ".." || seg == "." {
				t.Fatalf("SanitizePath(%q) = %q retained segment %q", path, got, seg)
			}
		}
	})
}
