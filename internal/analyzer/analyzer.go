package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fluxscp/internal/config"
)

// ErrNoCapture reports that the analyzer produced no data for a track.
var ErrNoCapture = errors.New("no capture data")

// Track identifies one capture. Side is the drive side being read; on a
// single-sided image it can differ from the head Physical was computed with.
type Track struct {
	Cylinder int
	Side     int
	Physical uint32
}

// Capturer returns the raw capture buffer of one track.
type Capturer interface {
	Capture(ctx context.Context, track Track) ([]byte, error)
}

// FromConfig selects the capturer described by cfg: the export command when
// analyzer.command is set, otherwise the capture directory.
func FromConfig(cfg *config.Config, logger *slog.Logger) (Capturer, error) {
	if cfg == nil {
		return nil, errors.New("analyzer: config required")
	}
	if strings.TrimSpace(cfg.Analyzer.Command) != "" {
		return NewExec(cfg, logger)
	}
	if strings.TrimSpace(cfg.Analyzer.CaptureDir) != "" {
		return NewDir(cfg.Analyzer.CaptureDir, cfg.Analyzer.FilePattern)
	}
	return nil, errors.New("analyzer: set analyzer.command or analyzer.capture_dir")
}

// FileName renders pattern for a cylinder/head pair.
func FileName(pattern string, cylinder, head int) string {
	return fmt.Sprintf(pattern, cylinder, head)
}
