package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestNewTeeHandlerWithoutFile(t *testing.T) {
	if _, ok := newTeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler without sinks")
	}
	var buf bytes.Buffer
	console := slog.NewJSONHandler(&buf, nil)
	if h := newTeeHandler(console, nil); h != console {
		t.Fatal("expected the console handler to be returned unwrapped")
	}
}

func TestTeeHandlerRespectsEachLevel(t *testing.T) {
	var console, file bytes.Buffer
	h := newTeeHandler(
		slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h)

	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected tee enabled when the file accepts the level")
	}
	logger.Debug("poll tick")
	logger.Warn("poll failed")

	if strings.Contains(console.String(), "poll tick") {
		t.Fatalf("console received a debug record: %q", console.String())
	}
	if !strings.Contains(console.String(), "poll failed") {
		t.Fatalf("console missed the warning: %q", console.String())
	}
	if !strings.Contains(file.String(), "poll tick") || !strings.Contains(file.String(), "poll failed") {
		t.Fatalf("log file missed records: %q", file.String())
	}
}

func TestTeeHandlerFileFailureKeepsConsole(t *testing.T) {
	var console bytes.Buffer
	h := newTeeHandler(slog.NewTextHandler(&console, nil), failingHandler{slog.NewTextHandler(&bytes.Buffer{}, nil)})

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "job submitted", 0)
	err := h.Handle(context.Background(), record)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected file error, got %v", err)
	}
	if !strings.Contains(console.String(), "job submitted") {
		t.Fatalf("console missed the record: %q", console.String())
	}
}

func TestTeeHandlerWithAttrsAndGroup(t *testing.T) {
	var console, file bytes.Buffer
	h := newTeeHandler(slog.NewJSONHandler(&console, nil), slog.NewJSONHandler(&file, nil))
	logger := slog.New(h).With(FieldJobID, "a1b2c3d4").WithGroup("request")
	logger.Info("sent", "attempt", 2)

	for name, buf := range map[string]*bytes.Buffer{"console": &console, "file": &file} {
		out := buf.String()
		if !strings.Contains(out, `"job_id":"a1b2c3d4"`) {
			t.Fatalf("%s handler missing attr: %s", name, out)
		}
		if !strings.Contains(out, `"request":{"attempt":2}`) {
			t.Fatalf("%s handler missing group: %s", name, out)
		}
	}
}
