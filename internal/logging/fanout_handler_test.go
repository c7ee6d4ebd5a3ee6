package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner); h != inner {
		t.Fatal("expected single handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsEachLevel(t *testing.T) {
	var info, debug bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout enabled when any handler accepts debug")
	}

	logger := slog.New(h).With("track", 7)
	logger.Debug("edges counted")
	logger.Info("track captured")

	if strings.Contains(info.String(), "edges counted") {
		t.Fatalf("info handler received debug record: %s", info.String())
	}
	if !strings.Contains(debug.String(), "edges counted") || !strings.Contains(debug.String(), "track captured") {
		t.Fatalf("debug handler missing records: %s", debug.String())
	}
	if !strings.Contains(info.String(), `"track":7`) {
		t.Fatalf("expected attrs propagated to every handler: %s", info.String())
	}
}
