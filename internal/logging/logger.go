package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"timedtext/internal/config"
)

// LogFileName is the JSON log written inside the configured log directory.
const LogFileName = "timedtext.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Writer receives console or JSON output. Nil means stderr.
	Writer io.Writer
	// LogFile, when set, also receives every record as JSON.
	LogFile string
	// SessionID is attached to every record when set.
	SessionID   string
	Development bool
}

// New constructs a slog logger using the provided options. The output
// handlers admit every level; the configured level is enforced by a scope
// in front of them, so WithLevelOverride can raise verbosity later.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)

	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}
	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var primary slog.Handler
	switch format {
	case "json":
		primary = newJSONHandler(out, slog.LevelDebug, addSource)
	case "console":
		primary = newConsoleHandler(out, slog.LevelDebug, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	var fileHandler slog.Handler
	if path := strings.TrimSpace(opts.LogFile); path != "" {
		file, err := openLogFile(path)
		if err != nil {
			return nil, err
		}
		fileHandler = newJSONHandler(file, slog.LevelDebug, addSource)
	}

	return slog.New(newScopeHandler(newTeeHandler(primary, fileHandler), level, opts.SessionID)), nil
}

// NewFromConfig creates a logger using application config defaults. Output
// goes to w; the log directory, when configured, receives a JSON copy.
func NewFromConfig(cfg *config.Config, w io.Writer, sessionID string) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console", Writer: w, SessionID: sessionID})
	}

	var logFile string
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		logFile = filepath.Join(cfg.Paths.LogDir, LogFileName)
	}

	return New(Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Writer:    w,
		LogFile:   logFile,
		SessionID: sessionID,
	})
}

// ParseLevel maps a configured level name onto slog.
func ParseLevel(level string) slog.Level {
	return parseLevel(level)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}
