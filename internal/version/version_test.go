package version

import (
	"strings"
	"testing"
)

func TestShortIncludesCommit(t *testing.T) {
	got := Short()
	if !strings.Contains(got, Version) || !strings.Contains(got, Commit) {
		t.Fatalf("Short() = %q, want version and commit", got)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "ffbins/"+Version {
		t.Fatalf("UserAgent() = %q", got)
	}
}
