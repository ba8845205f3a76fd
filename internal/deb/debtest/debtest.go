// Package debtest builds minimal Debian packages for tests.
package debtest

import (
	"bytes"
	"testing"
	"time"

	"github.com/blakesmith/ar"

	"github.com/keanucz/ffbins/internal/archive/archivetest"
)

// Member is one file of the ar container.
type Member struct {
	Name string
	Data []byte
}

// Package returns a .deb whose data.tar.gz holds entries.
func Package(t *testing.T, entries ...archivetest.Entry) []byte {
	t.Helper()
	return Build(t,
		Member{Name: "debian-binary", Data: []byte("2.0\n")},
		Member{Name: "control.tar.gz", Data: archivetest.TarGz(t, archivetest.Entry{Name: "./control", Body: "Package: ffmpeg\n"})},
		Member{Name: "data.tar.gz", Data: archivetest.TarGz(t, entries...)},
	)
}

// Build writes members into an ar container in order.
func Build(t *testing.T, members ...Member) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := ar.NewWriter(&buf)
	if err := w.WriteGlobalHeader(); err != nil {
		t.Fatalf("write ar header: %v", err)
	}
	for _, m := range members {
		header := &ar.Header{
			Name:    m.Name,
			ModTime: time.Unix(1700000000, 0),
			Mode:    0o644,
			Size:    int64(len(m.Data)),
		}
		if err := w.WriteHeader(header); err != nil {
			t.Fatalf("write ar member header %s: %v", m.Name, err)
		}
		if _, err := w.Write(m.Data); err != nil {
			t.Fatalf("write ar member %s: %v", m.Name, err)
		}
	}
	return buf.Bytes()
}
