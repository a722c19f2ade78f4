package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONToOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(Component("engine")).Debug(context.Background(), "tick",
		Int("index", 3),
		Float("dt", 0.5),
		Bool("animated", true),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	checks := map[string]any{
		"msg":       "tick",
		"component": "engine",
		"index":     float64(3),
		"dt":        0.5,
		"animated":  true,
		"error":     "boom",
	}
	for k, want := range checks {
		if rec[k] != want {
			t.Fatalf("%s = %v, want %v", k, rec[k], want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestNewFileFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orrery.log")
	t.Setenv("LOG_FILE", path)
	t.Setenv("LOG_FORMAT", "text")

	log, closeFn, err := NewFileFromEnv()
	if err != nil {
		t.Fatalf("NewFileFromEnv: %v", err)
	}
	log.Info(context.Background(), "to file")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Fatalf("log file = %q, want the message", data)
	}

	t.Setenv("LOG_FILE", "")
	if log, closeFn, err := NewFileFromEnv(); err != nil || log == nil || closeFn() != nil {
		t.Fatalf("NewFileFromEnv without LOG_FILE = %v, %v", log, err)
	}
}

func TestRequestIDHelpers(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if id == "" || RequestIDFromContext(ctx) != id {
		t.Fatalf("request id = %q, from context %q", id, RequestIDFromContext(ctx))
	}
	ctx2, id2 := EnsureRequestID(ctx)
	if id2 != id || ctx2 != ctx {
		t.Fatalf("EnsureRequestID replaced an existing id")
	}

	ctx = ContextWithLogger(ctx, nil)
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("LoggerFromContext returned nil after ContextWithLogger")
	}
	if LoggerFromContext(context.Background()) != nil {
		t.Fatalf("LoggerFromContext on empty context should be nil")
	}
}

func TestLevelOf(t *testing.T) {
	cases := map[string]string{
		"":        "INFO",
		"DEBUG":   "DEBUG",
		"warning": "WARN",
		" error ": "ERROR",
		"verbose": "INFO",
	}
	for in, want := range cases {
		if got := levelOf(in).String(); got != want {
			t.Fatalf("levelOf(%q) = %s, want %s", in, got, want)
		}
	}
}
