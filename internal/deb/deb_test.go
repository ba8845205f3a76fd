package deb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/keanucz/ffbins/internal/archive"
	"github.com/keanucz/ffbins/internal/archive/archivetest"
	"github.com/keanucz/ffbins/internal/deb/debtest"
	"github.com/keanucz/ffbins/internal/install"
)

var jellyfinEntries = []archivetest.Entry{
	{Name: "./usr/lib/jellyfin-ffmpeg/ffmpeg", Body: "ffmpeg-binary", Mode: 0o755},
	{Name: "./usr/lib/jellyfin-ffmpeg/ffprobe", Body: "ffprobe-binary", Mode: 0o755},
	{Name: "./usr/share/doc/jellyfin-ffmpeg/copyright", Body: "legal"},
}

// missingTool points the dpkg-deb lookup at a path that cannot run.
func missingTool(t *testing.T) string {
	return filepath.Join(t.TempDir(), "no-dpkg-deb")
}

func TestExtractData(t *testing.T) {
	src := archivetest.WriteFile(t, t.TempDir(), "ffmpeg.deb", debtest.Package(t, jellyfinEntries...))
	dest := t.TempDir()

	if err := ExtractData(src, dest); err != nil {
		t.Fatalf("ExtractData error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "usr/lib/jellyfin-ffmpeg/ffmpeg"))
	if err != nil {
		t.Fatalf("read ffmpeg: %v", err)
	}
	if string(data) != "ffmpeg-binary" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestExtractDataXz(t *testing.T) {
	pkg := debtest.Build(t,
		debtest.Member{Name: "debian-binary", Data: []byte("2.0\n")},
		debtest.Member{Name: "data.tar.xz", Data: archivetest.TarXz(t, jellyfinEntries...)},
	)
	src := archivetest.WriteFile(t, t.TempDir(), "ffmpeg.deb", pkg)
	dest := t.TempDir()

	if err := ExtractData(src, dest); err != nil {
		t.Fatalf("ExtractData error: %v", err)
	}
	if _, err := archive.Find(dest, "ffprobe"); err != nil {
		t.Fatalf("ffprobe missing: %v", err)
	}
}

func TestExtractDataWithoutDataMember(t *testing.T) {
	pkg := debtest.Build(t, debtest.Member{Name: "debian-binary", Data: []byte("2.0\n")})
	src := archivetest.WriteFile(t, t.TempDir(), "broken.deb", pkg)

	if err := ExtractData(src, t.TempDir()); !errors.Is(err, ErrNoDataMember) {
		t.Fatalf("expected ErrNoDataMember, got %v", err)
	}
}

func TestInstallFallsBackToAr(t *testing.T) {
	src := archivetest.WriteFile(t, t.TempDir(), "ffmpeg.deb", debtest.Package(t, jellyfinEntries...))
	scratch := filepath.Join(t.TempDir(), "temp")
	out := t.TempDir()

	installed, err := Install(context.Background(), src, scratch, out, Options{DpkgDeb: missingTool(t), WithFFprobe: true})
	if err != nil {
		t.Fatalf("Install error: %v", err)
	}
	want := []string{filepath.Join(out, "ffmpeg"), filepath.Join(out, "ffprobe")}
	if strings.Join(installed, ",") != strings.Join(want, ",") {
		t.Fatalf("installed = %v, want %v", installed, want)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(want[0])
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != install.ExecMode {
			t.Fatalf("expected mode %v, got %v", install.ExecMode, info.Mode().Perm())
		}
	}
	if _, err := os.Stat(filepath.Join(out, "copyright")); !os.IsNotExist(err) {
		t.Fatalf("only binaries should be installed")
	}
}

func TestInstallSkipsFFprobeWhenUnwanted(t *testing.T) {
	src := archivetest.WriteFile(t, t.TempDir(), "ffmpeg.deb", debtest.Package(t, jellyfinEntries...))
	out := t.TempDir()

	installed, err := Install(context.Background(), src, filepath.Join(t.TempDir(), "temp"), out, Options{DpkgDeb: missingTool(t)})
	if err != nil {
		t.Fatalf("Install error: %v", err)
	}
	if len(installed) != 1 {
		t.Fatalf("expected only ffmpeg, got %v", installed)
	}
	if _, err := os.Stat(filepath.Join(out, "ffprobe")); !os.IsNotExist(err) {
		t.Fatalf("ffprobe should not be installed")
	}
}

func TestInstallUsesDpkgDeb(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script tools are unix only")
	}
	tool := filepath.Join(t.TempDir(), "dpkg-deb")
	script := "#!/bin/sh\nmkdir -p \"$3/opt/ffmpeg\" && printf from-dpkg > \"$3/opt/ffmpeg/ffmpeg\"\n"
	if err := os.WriteFile(tool, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	src := archivetest.WriteFile(t, t.TempDir(), "ffmpeg.deb", []byte("not an ar archive"))
	out := t.TempDir()

	if _, err := Install(context.Background(), src, filepath.Join(t.TempDir(), "temp"), out, Options{DpkgDeb: tool}); err != nil {
		t.Fatalf("Install error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(out, "ffmpeg"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "from-dpkg" {
		t.Fatalf("expected dpkg-deb output, got %q", data)
	}
}

func TestInstallBothMethodsFail(t *testing.T) {
	src := archivetest.WriteFile(t, t.TempDir(), "ffmpeg.deb", []byte("garbage"))

	_, err := Install(context.Background(), src, filepath.Join(t.TempDir(), "temp"), t.TempDir(), Options{DpkgDeb: missingTool(t)})
	var extErr *archive.ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected *ExtractionError, got %v", err)
	}
	if len(extErr.Attempts) != 2 {
		t.Fatalf("expected both methods to be attempted, got %+v", extErr.Attempts)
	}
	if !strings.Contains(err.Error(), "dpkg-deb") || !strings.Contains(err.Error(), "ar:") {
		t.Fatalf("message should name both methods: %v", err)
	}
}

func TestInstallMissingBinary(t *testing.T) {
	pkg := debtest.Package(t, archivetest.Entry{Name: "./usr/share/doc/readme", Body: "nothing here"})
	src := archivetest.WriteFile(t, t.TempDir(), "empty.deb", pkg)
	out := t.TempDir()

	_, err := Install(context.Background(), src, filepath.Join(t.TempDir(), "temp"), out, Options{DpkgDeb: missingTool(t)})
	if !errors.Is(err, install.ErrBinaryNotFound) {
		t.Fatalf("expected ErrBinaryNotFound, got %v", err)
	}
	if !errors.Is(err, archive.ErrExtraction) {
		t.Fatalf("cause should still be inspectable: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "ffmpeg")); !os.IsNotExist(err) {
		t.Fatalf("no ffmpeg should be written")
	}
}
