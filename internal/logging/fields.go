package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSegmentID identifies the top-level segment a line is about.
	FieldSegmentID = "segment_id"
	// FieldSegmentIndex is the segment's position in the compiled Track.
	FieldSegmentIndex = "segment_index"
	// FieldArtifactID identifies a stored caption artifact.
	FieldArtifactID = "artifact_id"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
)

type segmentKey struct{}

// ContextWithSegment returns a child context carrying the segment ID.
func ContextWithSegment(ctx context.Context, segmentID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, segmentKey{}, segmentID)
}

// SegmentFromContext returns the segment ID stored by ContextWithSegment.
func SegmentFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(segmentKey{}).(string)
	return id, ok && id != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	var fields []slog.Attr
	if id, ok := SegmentFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSegmentID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(toArgs(fields)...)
}
