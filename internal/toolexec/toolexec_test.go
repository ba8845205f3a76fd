package toolexec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestLocatePrefersExplicit(t *testing.T) {
	t.Setenv("FFBINS_DPKG_DEB", "/from/env")

	path, err := Locate(DpkgDeb, "/explicit/dpkg-deb")
	if err != nil {
		t.Fatalf("Locate returned error: %v", err)
	}
	if path != "/explicit/dpkg-deb" {
		t.Fatalf("expected explicit path, got %s", path)
	}
}

func TestLocateUsesEnv(t *testing.T) {
	t.Setenv("FFBINS_7Z", "/from/env/7zz")

	path, err := Locate(SevenZip, "")
	if err != nil {
		t.Fatalf("Locate returned error: %v", err)
	}
	if path != "/from/env/7zz" {
		t.Fatalf("expected env path, got %s", path)
	}
}

func TestLocateNotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := Locate(Tool{Names: []string{"ffbins-no-such-tool"}}, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocateSearchesPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script tools are unix only")
	}
	dir := t.TempDir()
	tool := filepath.Join(dir, "fake-tool")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write tool: %v", err)
	}
	t.Setenv("PATH", dir)

	path, err := Locate(Tool{Names: []string{"missing-tool", "fake-tool"}}, "")
	if err != nil {
		t.Fatalf("Locate returned error: %v", err)
	}
	if path != tool {
		t.Fatalf("expected %s, got %s", tool, path)
	}
}

func TestRunIncludesOutputInError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script tools are unix only")
	}
	tool := filepath.Join(t.TempDir(), "failing-tool")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\necho broken archive >&2\nexit 2\n"), 0o755); err != nil {
		t.Fatalf("write tool: %v", err)
	}

	r, err := New(Tool{}, tool)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	err = r.Run(context.Background(), "x", "y")
	if err == nil {
		t.Fatal("expected error from failing tool")
	}
	if !strings.Contains(err.Error(), "broken archive") {
		t.Fatalf("expected tool output in error, got %v", err)
	}
}
