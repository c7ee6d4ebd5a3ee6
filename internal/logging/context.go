package logging

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	sessionIDKey contextKey = iota
	trackKey
)

type trackRef struct {
	cylinder int
	head     int
	physical uint32
}

// ContextWithSessionID tags ctx with a capture session identifier.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext returns the session identifier stored in ctx.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// ContextWithTrack tags ctx with the track being captured.
func ContextWithTrack(ctx context.Context, cylinder, head int, physical uint32) context.Context {
	return context.WithValue(ctx, trackKey, trackRef{cylinder: cylinder, head: head, physical: physical})
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := SessionIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSessionID, id))
	}
	if ref, ok := ctx.Value(trackKey).(trackRef); ok {
		fields = append(fields, TrackAttrs(ref.cylinder, ref.head, ref.physical)...)
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
	return logger.With(attrsToArgs(fields)...)
}
