package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"fluxscp/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Geometry defaults to a small two-head, four-cylinder disk sampled at 8 MHz
// so synthetic captures stay short.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SessionDir = filepath.Join(base, "sessions")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.OutputDir = filepath.Join(base, "out")
	cfgVal.Geometry.Cylinders = 4
	cfgVal.Decode.Workers = 2
	cfgVal.Drive.SettleMS = 0
	cfgVal.Drive.StepMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithGeometry overrides heads and cylinders.
func WithGeometry(heads, cylinders int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Geometry.Heads = heads
		b.cfg.Geometry.Cylinders = cylinders
	}
}

// WithRevolutions overrides the revolution count.
func WithRevolutions(revs int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Decode.Revolutions = revs
	}
}

// WithCaptureDir points the analyzer at a directory of pre-exported captures.
func WithCaptureDir(dir string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analyzer.CaptureDir = dir
	}
}

// WithStubbedAnalyzer writes an executable shell script named name into a
// temp bin directory and configures it as the analyzer export command.
func WithStubbedAnalyzer(name, script string, args ...string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, name)
		if err := os.WriteFile(target, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
			b.t.Fatalf("write stub %s: %v", name, err)
		}
		b.cfg.Analyzer.Command = target
		b.cfg.Analyzer.Args = args
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.SessionDir)
}
