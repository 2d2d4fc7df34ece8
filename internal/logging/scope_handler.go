package logging

import (
	"context"
	"log/slog"
)

// FieldSessionID identifies one CLI invocation across console and file output.
const FieldSessionID = "session_id"

// scopeHandler narrows what reaches next. Records under floor are dropped and
// the stamp attributes are appended to every record that passes.
type scopeHandler struct {
	next  slog.Handler
	floor slog.Leveler
	stamp []slog.Attr
}

// newScopeHandler fronts next with a level floor and, when sessionID is set,
// a session_id stamp. A nil floor defers entirely to next.
func newScopeHandler(next slog.Handler, floor slog.Leveler, sessionID string) slog.Handler {
	if next == nil {
		return NoopHandler{}
	}
	h := &scopeHandler{next: next, floor: floor}
	if sessionID != "" {
		h.stamp = []slog.Attr{slog.String(FieldSessionID, sessionID)}
	}
	return h
}

func (h *scopeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.floor != nil && level < h.floor.Level() {
		return false
	}
	return h.next.Enabled(ctx, level)
}

func (h *scopeHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.floor != nil && record.Level < h.floor.Level() {
		return nil
	}
	if len(h.stamp) > 0 {
		record.AddAttrs(h.stamp...)
	}
	return h.next.Handle(ctx, record)
}

func (h *scopeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	return &c
}

func (h *scopeHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.next = h.next.WithGroup(name)
	return &c
}

// WithLevelOverride returns a logger that drops records below level. A
// logger already carrying an override has it replaced, so the result can be
// louder than its parent, but never louder than the handlers New built.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return slog.New(NoopHandler{})
	}
	if h, ok := logger.Handler().(*scopeHandler); ok {
		c := *h
		c.floor = level
		return slog.New(&c)
	}
	return slog.New(&scopeHandler{next: logger.Handler(), floor: level})
}
