package logging

import (
	"context"
	"log/slog"
)

// FieldSessionID is the standardized structured logging key for capture session identifiers.
const FieldSessionID = "session_id"

// sessionIDHandler stamps session_id on records that do not already carry
// one, so loggers that also pull the id from the context log it once.
type sessionIDHandler struct {
	base slog.Handler
	attr slog.Attr
}

func newSessionIDHandler(base slog.Handler, sessionID string) slog.Handler {
	if base == nil {
		return NoopHandler{}
	}
	return &sessionIDHandler{
		base: base,
		attr: slog.String(FieldSessionID, sessionID),
	}
}

// WithSession returns a logger that stamps every record with sessionID.
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	if sessionID == "" {
		return logger
	}
	return slog.New(newSessionIDHandler(logger.Handler(), sessionID))
}

func (h *sessionIDHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *sessionIDHandler) Handle(ctx context.Context, record slog.Record) error {
	if !recordHasKey(record, FieldSessionID) {
		record.AddAttrs(h.attr)
	}
	return h.base.Handle(ctx, record)
}

func (h *sessionIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if HasAttrKey(attrs, FieldSessionID) {
		// The base now carries a session id of its own.
		return h.base.WithAttrs(attrs)
	}
	return &sessionIDHandler{base: h.base.WithAttrs(attrs), attr: h.attr}
}

func (h *sessionIDHandler) WithGroup(name string) slog.Handler {
	return &sessionIDHandler{base: h.base.WithGroup(name), attr: h.attr}
}

func recordHasKey(record slog.Record, key string) bool {
	found := false
	record.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			found = true
			return false
		}
		return true
	})
	return found
}
