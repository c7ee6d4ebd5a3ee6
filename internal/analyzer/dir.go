package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir replays captures exported earlier into a single directory.
type Dir struct {
	root    string
	pattern string
}

// NewDir returns a capturer reading pattern-named files below root.
func NewDir(root, pattern string) (*Dir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("capture directory required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("analyzer: capture directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("analyzer: %s is not a directory", root)
	}
	if !strings.Contains(pattern, "%") {
		return nil, fmt.Errorf("analyzer: file pattern %q has no cylinder/head verbs", pattern)
	}
	return &Dir{root: root, pattern: pattern}, nil
}

// Root returns the capture directory.
func (d *Dir) Root() string { return d.root }

// Path returns the file a track is read from.
func (d *Dir) Path(cylinder, head int) string {
	return filepath.Join(d.root, FileName(d.pattern, cylinder, head))
}

// Capture reads the exported file of one track. A missing file wraps
// ErrNoCapture so callers can record the track as absent.
func (d *Dir) Capture(ctx context.Context, track Track) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := d.Path(track.Cylinder, track.Side)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoCapture, filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("analyzer: read capture: %w", err)
	}
	return data, nil
}
