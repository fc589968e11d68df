package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"harvest/internal/config"
	"harvest/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleHandlerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))
	logger = NewComponentLogger(logger, "finalize")
	logger.Info("release skipped", String("reason", "transfer incomplete"), Float64("progress", 0.7))

	line := buf.String()
	for _, fragment := range []string{"INFO", "finalize: release skipped", `reason="transfer incomplete"`, "progress=0.7"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be rendered as prefix, got %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info line should be filtered: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}

func TestJSONHandlerUsesShortKeys(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl, false))
	logger.Warn("copy failed", Error(errors.New("disk full")))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
	if payload["error"] != "disk full" {
		t.Fatalf("unexpected error field %v", payload["error"])
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newJSONHandler(&buf, new(slog.LevelVar), false))
	WarnWithContext(logger, "transport failed", "transport_failed", String(FieldImpact, "falling back"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if payload[FieldEventType] != "transport_failed" {
		t.Fatalf("missing event type: %v", payload)
	}
	if payload[FieldErrorHint] == nil {
		t.Fatalf("missing error hint: %v", payload)
	}
	if payload[FieldImpact] != "falling back" {
		t.Fatalf("impact should not be overwritten: %v", payload[FieldImpact])
	}
}

func TestWithContextAddsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(newJSONHandler(&buf, new(slog.LevelVar), false))
	ctx := services.WithRequestID(context.Background(), "abc")
	ctx = services.WithReleaseKey(ctx, "3/Album")
	WithContext(ctx, base).Info("hello")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"abc"`) || !strings.Contains(out, `"release_key":"3/Album"`) {
		t.Fatalf("expected context fields in %q", out)
	}
}

func TestNewFromConfigCreatesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Format = "json"

	logger, path, err := NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Info("started")
	if !strings.HasPrefix(filepath.Base(path), "harvest-") {
		t.Fatalf("unexpected log path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "started") {
		t.Fatalf("expected log line in file, got %q", data)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "harvest-old.log")
	fresh := filepath.Join(dir, "harvest-new.log")
	keep := filepath.Join(dir, "other.txt")
	for _, p := range []string{old, fresh, keep} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, p := range []string{old, keep} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}

	removed := CleanupOldLogs(NewNop(), 7, RetentionTarget{Dir: dir, Pattern: "harvest-*.log"})
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, err=%v", err)
	}
	for _, p := range []string{fresh, keep} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s to remain: %v", p, err)
		}
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	if n := CleanupOldLogs(nil, 0, RetentionTarget{Dir: t.TempDir()}); n != 0 {
		t.Fatalf("expected no removals, got %d", n)
	}
}

func TestCleanupOldLogsHonoursExclude(t *testing.T) {
	dir := t.TempDir()
	active := filepath.Join(dir, "harvestd-current.log")
	if err := os.WriteFile(active, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(active, past, past); err != nil {
		t.Fatal(err)
	}

	removed := CleanupOldLogs(nil, 1, RetentionTarget{Dir: dir, Pattern: "harvestd-*.log", Exclude: []string{active}})
	if removed != 0 {
		t.Fatalf("expected excluded log to survive, removed %d", removed)
	}
}
