package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func archiveBody() []byte {
	// gzip magic followed by filler, large enough to span several reads
	body := append([]byte{0x1f, 0x8b, 0x08, 0x00}, bytes.Repeat([]byte{0xAB}, 200*1024)...)
	return body
}

func TestFetchWritesFile(t *testing.T) {
	body := archiveBody()
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/gzip")
		w.Write(body)
	}))
	defer server.Close()

	var last, total int64
	calls := 0
	f := New(server.Client(),
		WithUserAgent("ffbins/test"),
		WithProgress(func(downloaded, t int64) {
			calls++
			last, total = downloaded, t
		}),
	)

	dest := filepath.Join(t.TempDir(), "out", "ffmpeg.tar.gz")
	n, err := f.Fetch(context.Background(), server.URL+"/ffmpeg.tar.gz", dest)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if n != int64(len(body)) {
		t.Fatalf("wrote %d bytes, want %d", n, len(body))
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, body) {
		t.Fatal("downloaded content differs")
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Fatal("temporary .part file left behind")
	}
	if gotUA != "ffbins/test" {
		t.Fatalf("User-Agent = %q", gotUA)
	}
	if calls < 2 || last != int64(len(body)) || total != int64(len(body)) {
		t.Fatalf("progress calls=%d last=%d total=%d", calls, last, total)
	}
}

func TestFetchStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "ffmpeg.zip")
	_, err := New(server.Client()).Fetch(context.Background(), server.URL+"/missing.zip", dest)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %v", err)
	}
	if netErr.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", netErr.StatusCode)
	}
	if !errors.Is(err, ErrNetwork) {
		t.Fatal("error should match ErrNetwork")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("no file should be written on failure")
	}
}

func TestFetchHTMLPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("<!DOCTYPE html><html><head><title> Rate limit exceeded </title></head><body></body></html>"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "ffmpeg.zip")
	_, err := New(server.Client()).Fetch(context.Background(), server.URL, dest)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %v", err)
	}
	if netErr.Title != "Rate limit exceeded" {
		t.Fatalf("title = %q", netErr.Title)
	}
	if !strings.Contains(err.Error(), "Rate limit exceeded") {
		t.Fatalf("message should carry the page title: %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("no file should be written for HTML responses")
	}
}

func TestFetchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(nil).Fetch(context.Background(), url, filepath.Join(t.TempDir(), "ffmpeg"))
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestFetchTruncatedBodyLeavesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")
		w.Write([]byte{0x1f, 0x8b, 0x08, 0x00, 0x01, 0x02})
	}))
	defer server.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "ffmpeg.tar.gz")
	if _, err := New(server.Client()).Fetch(context.Background(), server.URL, dest); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork for truncated body, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, found %d entries", len(entries))
	}
}

func TestFetchLocalWriteErrorIsNotNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/gzip")
		w.Write(archiveBody())
	}))
	defer server.Close()

	t.Run("parent is a file", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "blocker")
		if err := os.WriteFile(blocker, nil, 0o644); err != nil {
			t.Fatal(err)
		}

		_, err := New(server.Client()).Fetch(context.Background(), server.URL, filepath.Join(blocker, "ffmpeg.tar.gz"))
		if err == nil || errors.Is(err, ErrNetwork) {
			t.Fatalf("expected a local error, got %v", err)
		}
	})

	t.Run("disk full", func(t *testing.T) {
		if runtime.GOOS != "linux" {
			t.Skip("needs /dev/full")
		}
		if _, err := os.Stat("/dev/full"); err != nil {
			t.Skip("no /dev/full")
		}
		dir := t.TempDir()
		dest := filepath.Join(dir, "ffmpeg.tar.gz")
		if err := os.Symlink("/dev/full", dest+".part"); err != nil {
			t.Skip("cannot create symlink:", err)
		}

		_, err := New(server.Client()).Fetch(context.Background(), server.URL, dest)
		if err == nil {
			t.Fatal("expected write error")
		}
		var netErr *NetworkError
		if errors.As(err, &netErr) || errors.Is(err, ErrNetwork) {
			t.Fatalf("write failure reported as network error: %v", err)
		}
		if _, err := os.Lstat(dest); !os.IsNotExist(err) {
			t.Fatal("dest should not exist after a failed write")
		}
	})
}

func TestFetchCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archiveBody())
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(server.Client()).Fetch(ctx, server.URL, filepath.Join(t.TempDir(), "ffmpeg"))
	if !errors.Is(err, ErrNetwork) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled network error, got %v", err)
	}
}

func TestParseHTMLTitle(t *testing.T) {
	title, err := parseHTMLTitle(strings.NewReader("<html><head><title>404 Not Found</title></head></html>"))
	if err != nil {
		t.Fatalf("parseHTMLTitle error: %v", err)
	}
	if title != "404 Not Found" {
		t.Fatalf("title = %q", title)
	}
}
