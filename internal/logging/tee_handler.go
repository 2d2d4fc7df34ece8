package logging

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/lo"
)

// teeHandler copies every record to each branch whose level admits it.
type teeHandler struct {
	branches []slog.Handler
}

func newTeeHandler(branches ...slog.Handler) slog.Handler {
	live := lo.Compact(branches)
	switch len(live) {
	case 0:
		return NoopHandler{}
	case 1:
		return live[0]
	}
	return &teeHandler{branches: live}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return lo.SomeBy(h.branches, func(b slog.Handler) bool { return b.Enabled(ctx, level) })
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, b := range h.branches {
		if b.Enabled(ctx, record.Level) {
			errs = append(errs, b.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{branches: lo.Map(h.branches, func(b slog.Handler, _ int) slog.Handler { return b.WithAttrs(attrs) })}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{branches: lo.Map(h.branches, func(b slog.Handler, _ int) slog.Handler { return b.WithGroup(name) })}
}
