package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

const consoleTimeLayout = "15:04:05.000"

// consoleHandler writes one line per record:
//
//	15:04:05.000 WARN  compiler intro | overlapping native ranges  impact="..."
//
// The component and segment lead the line; other fields follow as key=value.
// Info and above hide the session ID, which is mirrored to the JSON log file.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newConsoleHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}

	var fields []kv
	flattenAttrs(&fields, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&fields, h.groups, attr)
		return true
	})
	fields = lastWins(fields)

	lead := make([]string, 0, 2)
	for _, key := range []string{FieldComponent, FieldSegmentID} {
		if f, ok := lo.Find(fields, func(f kv) bool { return f.key == key }); ok {
			lead = append(lead, attrString(f.value))
		}
	}
	fields = lo.Reject(fields, func(f kv, _ int) bool {
		switch f.key {
		case "", FieldComponent, FieldSegmentID:
			return true
		case FieldSessionID:
			return record.Level >= slog.LevelInfo
		}
		return false
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(ts.Local().Format(consoleTimeLayout))
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%-5s ", levelLabel(record.Level))
	if len(lead) > 0 {
		b.WriteString(strings.Join(lead, " "))
		b.WriteString(" | ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(msg)
	for i, f := range fields {
		if i == 0 {
			b.WriteString("  ")
		} else {
			b.WriteByte(' ')
		}
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(formatValue(f.value))
	}
	if src := record.Source(); h.addSource && src != nil && src.File != "" {
		fmt.Fprintf(&b, " (%s:%d)", filepath.Base(src.File), src.Line)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(slices.Clip(h.attrs), attrs...)
	return &c
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.groups = append(slices.Clip(h.groups), name)
	return &c
}

type kv struct {
	key   string
	value slog.Value
}

// lastWins drops earlier duplicates of a key, keeping first-seen order.
func lastWins(fields []kv) []kv {
	last := make(map[string]slog.Value, len(fields))
	for _, f := range fields {
		last[f.key] = f.value
	}
	return lo.Map(lo.UniqBy(fields, func(f kv) string { return f.key }), func(f kv, _ int) kv {
		return kv{key: f.key, value: last[f.key]}
	})
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	v := attr.Value.Resolve()
	path := prefix
	if attr.Key != "" {
		path = append(slices.Clip(prefix), attr.Key)
	}
	if v.Kind() == slog.KindGroup {
		flattenAttrs(dst, path, v.Group())
		return
	}
	*dst = append(*dst, kv{key: strings.Join(path, "."), value: v})
}

// attrString renders v without quoting.
func attrString(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	return v.String()
}

func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindBool, slog.KindInt64, slog.KindUint64, slog.KindDuration:
		return v.String()
	}
	s := attrString(v)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '"' || r == '=' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
