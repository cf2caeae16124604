package translatorlog

import (
	"bytes"
	"io"
	"testing"
)

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func TestRedactingWriterMasksAPIKeys(t *testing.T) {
	var buf bytes.Buffer
	w := NewRedactingWriter(nopCloser{&buf})

	var _ io.WriteCloser = w

	line := "dial failed X-Api-App-Key: sk-12345 X-Api-Access-Key=secret-abc other=fine\n"
	if _, err := w.Write([]byte(line)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := buf.String()
	if bytes.Contains(buf.Bytes(), []byte("sk-12345")) {
		t.Errorf("app key leaked into log line: %q", got)
	}
	if bytes.Contains(buf.Bytes(), []byte("secret-abc")) {
		t.Errorf("access key leaked into log line: %q", got)
	}
	if !bytes.Contains(buf.Bytes(), []byte("<REDACTED>")) {
		t.Errorf("expected redaction marker in output: %q", got)
	}
	if !bytes.Contains(buf.Bytes(), []byte("other=fine")) {
		t.Errorf("non-secret field should survive untouched: %q", got)
	}
}
