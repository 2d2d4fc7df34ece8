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

	"timedtext/internal/config"
)

func TestConsoleHandlerFormatsHeaderAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	NewComponentLogger(logger, "compiler").Info("timeline compiled",
		String(FieldSegmentID, "intro"),
		Int("items", 3),
		String(FieldErrorHint, "none"),
	)

	out := buf.String()
	for _, want := range []string{"INFO  compiler intro | timeline compiled", "  items=3", " error_hint=none"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected a single line, got %q", out)
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", out)
	}
}

func TestConsoleHandlerDebugShowsSourceAndQuotes(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "console", Writer: &buf, SessionID: "s-9"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("tick", Group("window", Seconds("start", 1.23456)), String("text", "two words"))

	out := buf.String()
	for _, want := range []string{"window.start=1.235", `text="two words"`, "session_id=s-9"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if !strings.Contains(out, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", out)
	}
}

func TestConsoleHandlerLastValueWins(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Writer: &buf, SessionID: "hidden"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.With(String("state", "paused")).Info("changed", String("state", "playing"))

	out := buf.String()
	if !strings.Contains(out, "state=playing") || strings.Contains(out, "state=paused") {
		t.Fatalf("expected the later value only, got %q", out)
	}
	if strings.Contains(out, "session_id") {
		t.Fatalf("session id should stay out of info console lines, got %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewMirrorsIntoJSONLogFile(t *testing.T) {
	var buf bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "logs", LogFileName)
	logger, err := New(Options{Level: "info", Writer: &buf, LogFile: logPath, SessionID: "run-1"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("written twice", String("k", "v"))

	if !strings.Contains(buf.String(), "written twice") {
		t.Fatalf("console output missing record: %q", buf.String())
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("decode log line %q: %v", data, err)
	}
	if record["msg"] != "written twice" || record["k"] != "v" || record[FieldSessionID] != "run-1" {
		t.Fatalf("unexpected record: %v", record)
	}
	if record["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", record["level"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestNewFromConfigUsesLogDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Format = "json"

	var buf bytes.Buffer
	logger, err := NewFromConfig(&cfg, &buf, "")
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Debug("hidden at info")
	logger.Warn("visible")

	if strings.Contains(buf.String(), "hidden at info") {
		t.Fatal("debug record leaked at info level")
	}
	if !strings.Contains(buf.String(), `"msg":"visible"`) {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, LogFileName)); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WarnWithContext(logger, "token dropped", "compile_malformed_timing",
		String(FieldImpact, "token is shown for zero seconds"),
	)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[FieldEventType] != "compile_malformed_timing" {
		t.Fatalf("event_type: %v", record[FieldEventType])
	}
	if record[FieldImpact] != "token is shown for zero seconds" {
		t.Fatalf("impact overridden: %v", record[FieldImpact])
	}
	if record[FieldErrorHint] == "" || record[FieldErrorHint] == nil {
		t.Fatal("expected default error hint")
	}
	WarnWithContext(nil, "ignored", "noop")
}

func TestWithContextAddsSegment(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := ContextWithSegment(context.Background(), "seg-7")

	WithContext(ctx, base).Info("contextual log")

	if !strings.Contains(buf.String(), `"segment_id":"seg-7"`) {
		t.Fatalf("expected segment_id, got %q", buf.String())
	}
	if got := WithContext(context.Background(), base); got != base {
		t.Fatal("expected the same logger when the context has no fields")
	}
	if _, ok := SegmentFromContext(ContextWithSegment(context.Background(), "")); ok {
		t.Fatal("empty segment id should not be reported")
	}
}

func TestErrorAttrHandlesNil(t *testing.T) {
	if got := Error(nil).Value.String(); got != "<nil>" {
		t.Fatalf("got %q want <nil>", got)
	}
	if got := attrString(Error(errors.New("boom")).Value); got != "boom" {
		t.Fatalf("got %q want boom", got)
	}
}

func TestSpanGroupsStartAndEnd(t *testing.T) {
	var kvs []kv
	flattenAttr(&kvs, nil, Span("range", 1.0004, 2.5))
	if len(kvs) != 2 || kvs[0].key != "range.start" || kvs[1].key != "range.end" {
		t.Fatalf("unexpected flatten result: %+v", kvs)
	}
	if kvs[0].value.Float64() != 1 {
		t.Fatalf("expected millisecond rounding, got %v", kvs[0].value.Float64())
	}
}
