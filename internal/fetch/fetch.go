// Package fetch streams a remote FFmpeg distribution to a local file.
package fetch

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/html"

	"github.com/keanucz/ffbins/internal/archive"
)

// HTTPClient describes the subset of http.Client used by the fetcher.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProgressCallback is called while the body is written.
// total is -1 when the server did not send a length.
type ProgressCallback func(downloaded, total int64)

// ErrNetwork is matched by every NetworkError.
var ErrNetwork = errors.New("network error")

// NetworkError reports a download that did not produce an archive.
type NetworkError struct {
	URL        string
	StatusCode int
	// Title is the <title> of an HTML page served in place of the file.
	Title string
	Err   error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Title != "":
		return fmt.Sprintf("download %s: got HTML page %q instead of a file", e.URL, e.Title)
	case e.StatusCode != 0 && e.Err == nil:
		return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("download %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("download %s failed", e.URL)
	}
}

func (e *NetworkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNetwork}
	}
	return []error{ErrNetwork, e.Err}
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithProgress registers a progress callback.
func WithProgress(cb ProgressCallback) Option {
	return func(f *Fetcher) { f.onProgress = cb }
}

// WithLogger sets the logger.
func WithLogger(l archive.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

// Fetcher downloads URLs to files.
type Fetcher struct {
	client     HTTPClient
	userAgent  string
	onProgress ProgressCallback
	log        archive.Logger
}

// New creates a Fetcher. A nil client means http.DefaultClient.
func New(client HTTPClient, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{client: client}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// progressReader wraps an io.Reader and reports progress.
type progressReader struct {
	reader     io.Reader
	total      int64
	downloaded int64
	onProgress ProgressCallback
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.downloaded += int64(n)
		pr.onProgress(pr.downloaded, pr.total)
	}
	return n, err
}

// bodyReader remembers the last read error so copy failures can be told
// apart from local write failures.
type bodyReader struct {
	reader io.Reader
	err    error
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.reader.Read(p)
	if err != nil && err != io.EOF {
		b.err = err
	}
	return n, err
}

// Fetch downloads url into dest and returns the number of bytes written.
// The body is written to dest+".part" and renamed into place once complete,
// so dest only ever holds a full download.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &NetworkError{URL: url, Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	f.debug("downloading file", "url", url)
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	f.debug("download response", "url", url, "status", resp.StatusCode, "content-type", resp.Header.Get("Content-Type"))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	// Read initial bytes for validation
	var head [4096]byte
	n, readErr := io.ReadFull(resp.Body, head[:])
	if readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF) && !errors.Is(readErr, io.EOF) {
		return 0, &NetworkError{URL: url, StatusCode: resp.StatusCode, Err: readErr}
	}
	if isHTMLResponse(resp.Header, head[:n]) {
		title, _ := parseHTMLTitle(io.MultiReader(bytes.NewReader(head[:n]), io.LimitReader(resp.Body, 64*1024)))
		if title == "" {
			title = "untitled"
		}
		return 0, &NetworkError{URL: url, StatusCode: resp.StatusCode, Title: title}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	part := dest + ".part"
	written, err := f.writePart(url, part, head[:n], resp)
	if err != nil {
		os.Remove(part)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, &NetworkError{URL: url, StatusCode: resp.StatusCode, Err: ctxErr}
		}
		return 0, err
	}
	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return 0, fmt.Errorf("move download into place: %w", err)
	}

	f.debug("downloaded", "path", filepath.Base(dest), "bytes", written)
	return written, nil
}

func (f *Fetcher) writePart(url, part string, head []byte, resp *http.Response) (int64, error) {
	file, err := os.Create(part)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	// 64KB buffer keeps syscalls down on large archives
	bufferedFile := bufio.NewWriterSize(file, 64*1024)

	if _, err := bufferedFile.Write(head); err != nil {
		return 0, err
	}

	var reader io.Reader = resp.Body
	if f.onProgress != nil {
		total := resp.ContentLength
		if total <= 0 {
			total = -1
		}
		reader = &progressReader{
			reader:     resp.Body,
			total:      total,
			downloaded: int64(len(head)),
			onProgress: f.onProgress,
		}
		f.onProgress(int64(len(head)), total)
	}

	body := &bodyReader{reader: reader}
	written, err := io.Copy(bufferedFile, body)
	if err != nil {
		if body.err != nil {
			return 0, &NetworkError{URL: url, StatusCode: resp.StatusCode, Err: body.err}
		}
		return 0, fmt.Errorf("write %s: %w", filepath.Base(part), err)
	}
	total := int64(len(head)) + written
	if resp.ContentLength > 0 && total != resp.ContentLength {
		return 0, &NetworkError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("short body: got %d of %d bytes", total, resp.ContentLength)}
	}
	if err := bufferedFile.Flush(); err != nil {
		return 0, fmt.Errorf("flush buffer: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, err
	}
	return total, nil
}

func isHTMLResponse(headers http.Header, chunk []byte) bool {
	ct := headers.Get("Content-Type")
	if strings.Contains(strings.ToLower(ct), "text/html") {
		return true
	}
	if len(chunk) == 0 {
		return false
	}
	return mimetype.Detect(chunk).Is("text/html")
}

func parseHTMLTitle(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return "", nil
			}
			return "", z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			t := z.Token()
			if t.Data == "title" {
				tt = z.Next()
				if tt == html.TextToken {
					return strings.TrimSpace(z.Token().Data), nil
				}
			}
		default:
			// Ignore other token types (text, end tag, comment, doctype)
		}
	}
}

func (f *Fetcher) debug(msg string, keyvals ...any) {
	if f.log != nil {
		f.log.Debug(msg, keyvals...)
	}
}
