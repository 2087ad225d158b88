package logging

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveOutputStdout(t *testing.T) {
	w, c := resolveOutput("stdout")
	if w != os.Stdout {
		t.Fatalf("expected stdout writer")
	}
	if c != nil {
		t.Fatalf("expected nil closer for stdout")
	}
}

func TestResolveOutputStderr(t *testing.T) {
	w, c := resolveOutput("stderr")
	if w != os.Stderr {
		t.Fatalf("expected stderr writer")
	}
	if c != nil {
		t.Fatalf("expected nil closer for stderr")
	}
}

func TestResolveOutputFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "classicd.log")

	w, c := resolveOutput(logPath)
	if w == nil {
		t.Fatalf("expected writer for file output")
	}
	if c == nil {
		t.Fatalf("expected closer for file output")
	}
	defer c.Close()

	f, ok := w.(*os.File)
	if !ok {
		t.Fatalf("expected *os.File writer, got %T", w)
	}

	if _, err := io.WriteString(f, "test log\n"); err != nil {
		t.Fatalf("write log file: %v", err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if string(data) == "" {
		t.Fatalf("expected log file content")
	}
}

func TestResolveLevel(t *testing.T) {
	cases := map[string]bool{"debug": true, "warn": true, "error": true, "info": true, "": true, "bogus": true}
	for level := range cases {
		// resolveLevel must never panic on any input; it falls back to Info.
		_ = resolveLevel(level)
	}
}
