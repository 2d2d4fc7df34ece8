package logging

import (
	"context"
	"log/slog"
	"math"

	"github.com/samber/lo"
)

type Attr = slog.Attr

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Seconds logs a media time rounded to the millisecond.
func Seconds(key string, value float64) Attr {
	return slog.Float64(key, math.Round(value*1000)/1000)
}

// Span logs a [start, end) time range as a group.
func Span(key string, start, end float64) Attr {
	return Group(key, Seconds("start", start), Seconds("end", end))
}

func Group(key string, attrs ...Attr) Attr {
	return slog.Group(key, toArgs(attrs)...)
}

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func toArgs(attrs []Attr) []any {
	return lo.Map(attrs, func(a Attr, _ int) any { return a })
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger tags logger with the component field. A nil logger
// yields a no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// FieldImpact states what the operator loses because of a warning.
const FieldImpact = "impact"

var warnDefaults = []Attr{
	slog.String(FieldErrorHint, "check the source document and logs"),
	slog.String(FieldImpact, "operation completed with warnings"),
}

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact. Fields missing from attrs get defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	defaults := append([]Attr{slog.String(FieldEventType, eventType)}, warnDefaults...)
	for _, d := range defaults {
		if !lo.ContainsBy(attrs, func(a Attr) bool { return a.Key == d.Key }) {
			attrs = append(attrs, d)
		}
	}
	logger.Warn(msg, toArgs(attrs)...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
