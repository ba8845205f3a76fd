// Package archive unpacks downloaded FFmpeg distributions into a scratch
// directory and enumerates what came out.
//
// Generic archives (zip and tar with gzip, xz, bzip2 or zstd compression)
// are decoded natively. 7z archives are read with bodgit/sevenzip and can
// fall back to an external 7z binary. Every writer refuses entries that would
// land outside the destination directory.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Logger interface for logging operations.
// Compatible with github.com/charmbracelet/log.Logger.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// ErrExtraction is matched by every ExtractionError.
var ErrExtraction = errors.New("extraction failed")

// Attempt records the outcome of one extraction method.
type Attempt struct {
	Method string
	Err    error
}

// ExtractionError reports that every attempted method failed. It carries each
// method's error for the final diagnostic.
type ExtractionError struct {
	Archive  string
	Attempts []Attempt
}

func (e *ExtractionError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Method, a.Err))
	}
	return fmt.Sprintf("extract %s: %s", e.Archive, strings.Join(parts, "; "))
}

// Unwrap exposes ErrExtraction and every attempt's error to errors.Is/As.
func (e *ExtractionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	errs = append(errs, ErrExtraction)
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Method is one way of unpacking an archive into a directory.
type Method struct {
	Name    string
	Extract func(ctx context.Context, archivePath, dest string) error
}

// Chain tries each method in order until one succeeds and accept (if
// non-nil) approves the result. dest is emptied before every attempt so a
// failed method never leaks files into the next one. When all methods fail
// the returned error is an *ExtractionError listing every attempt.
func Chain(ctx context.Context, archivePath, dest string, methods []Method, accept func(dest string) error, logger Logger) error {
	extErr := &ExtractionError{Archive: archivePath}

	for i, m := range methods {
		if err := ctx.Err(); err != nil {
			extErr.Attempts = append(extErr.Attempts, Attempt{Method: m.Name, Err: err})
			break
		}
		if err := resetDir(dest); err != nil {
			return fmt.Errorf("prepare %s: %w", dest, err)
		}

		logDebug(logger, "extracting", "method", m.Name, "archive", archivePath)
		err := m.Extract(ctx, archivePath, dest)
		if err == nil && accept != nil {
			err = accept(dest)
		}
		if err == nil {
			return nil
		}

		extErr.Attempts = append(extErr.Attempts, Attempt{Method: m.Name, Err: err})
		if i < len(methods)-1 {
			logWarn(logger, "extraction method failed, falling back", "method", m.Name, "next", methods[i+1].Name, "error", err)
		}
	}

	return extErr
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

func logDebug(logger Logger, msg string, keyvals ...any) {
	if logger != nil {
		logger.Debug(msg, keyvals...)
	}
}

func logWarn(logger Logger, msg string, keyvals ...any) {
	if logger != nil {
		logger.Warn(msg, keyvals...)
	}
}
