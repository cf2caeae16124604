package translatorlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

const (
	rotateMaxBytes   = 5 * 1024 * 1024
	rotateMaxBackups = 3
)

// secretKeyPattern matches "Key: value" or "Key=value" pairs whose key
// looks like a credential (API_* or X-Api-* per).
var secretKeyPattern = regexp.MustCompile(`(?i)((?:API|X-Api)[A-Za-z0-9_-]*\s*[:=]\s*)([^\s,}]+)`)

// RedactingWriter wraps an io.WriteCloser, replacing the value half of any
// API_*/X-Api-* key-value pair with <REDACTED> before forwarding the
// write. It is typically composed with RotatingFile.
type RedactingWriter struct {
	dst io.WriteCloser
}

func NewRedactingWriter(dst io.WriteCloser) *RedactingWriter {
	return &RedactingWriter{dst: dst}
}

func (r *RedactingWriter) Write(p []byte) (int, error) {
	redacted := secretKeyPattern.ReplaceAll(p, []byte("${1}<REDACTED>"))
	if _, err := r.dst.Write(redacted); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (r *RedactingWriter) Close() error { return r.dst.Close() }

// RotatingFile is a hand-rolled size-triggered log rotator: when the
// current file would exceed rotateMaxBytes, it is renamed with a numeric
// suffix (keeping up to rotateMaxBackups) and a fresh file is opened. No
// log-rotation library appears anywhere in the retrieved example pack, so
// this stays on the standard library (os, path/filepath) rather than
// introducing one for a single call site.
type RotatingFile struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	written int64
}

func OpenRotatingFile(path string) (*RotatingFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &RotatingFile{path: path, file: f, written: info.Size()}, nil
}

func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.written+int64(len(p)) > rotateMaxBytes {
		if err := r.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := r.file.Write(p)
	r.written += int64(n)
	return n, err
}

func (r *RotatingFile) rotateLocked() error {
	if err := r.file.Close(); err != nil {
		return err
	}

	for i := rotateMaxBackups - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", r.path, i)
		dst := fmt.Sprintf("%s.%d", r.path, i+1)
		if _, err := os.Stat(src); err == nil {
			_ = os.Rename(src, dst)
		}
	}
	if _, err := os.Stat(r.path); err == nil {
		_ = os.Rename(r.path, r.path+".1")
	}

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reopen log file %s after rotation: %w", r.path, err)
	}
	r.file = f
	r.written = 0
	return nil
}

func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
