package storage

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestObjectKeyLayout(t *testing.T) {
	now := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	key := ObjectKey("COMMUNITY", "my photo.png", now)

	pattern := regexp.MustCompile(`^community/2026/03/[0-9a-f]{8}-my_photo\.png$`)
	if !pattern.MatchString(key) {
		t.Fatalf("unexpected key: %q", key)
	}

	other := ObjectKey("COMMUNITY", "my photo.png", now)
	if other == key {
		t.Fatalf("expected unique keys, got %q twice", key)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":          "report.pdf",
		"../../etc/passwd":    "passwd",
		`C:\Users\me\cat.jpg`: "cat.jpg",
		"résumé.doc":          "r__sum__.doc",
		"":                    "file",
		"/":                   "file",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}

	long := strings.Repeat("a", 150) + ".txt"
	got := SanitizeFilename(long)
	if len(got) != maxKeyNameLength || !strings.HasSuffix(got, ".txt") {
		t.Fatalf("unexpected truncation: %q (%d)", got, len(got))
	}
}
