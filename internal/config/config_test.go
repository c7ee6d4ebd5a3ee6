package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"fluxscp/internal/config"
	"fluxscp/internal/flux"
	"fluxscp/internal/scp"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("FLUXSCP_SERIAL_PORT", "")
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantSessions := filepath.Join(tempHome, ".local", "share", "fluxscp")
	if cfg.Paths.SessionDir != wantSessions {
		t.Fatalf("unexpected session dir: got %q want %q", cfg.Paths.SessionDir, wantSessions)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "floppies") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Paths.CacheDir != filepath.Join(tempHome, ".cache", "fluxscp", "captures") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if cfg.Geometry.Heads != 2 || cfg.Geometry.Cylinders != 83 {
		t.Fatalf("unexpected geometry: %+v", cfg.Geometry)
	}
	if cfg.Decode.Workers <= 0 {
		t.Fatalf("expected workers to default to CPU count, got %d", cfg.Decode.Workers)
	}
	if cfg.Decode.OverlapPolicy != "first" {
		t.Fatalf("expected first overlap policy, got %q", cfg.Decode.OverlapPolicy)
	}
	if cfg.SessionDBPath() != filepath.Join(wantSessions, "sessions.db") {
		t.Fatalf("unexpected session db path: %q", cfg.SessionDBPath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.SessionDir, cfg.Paths.LogDir, cfg.Paths.OutputDir, cfg.Paths.CacheDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "fluxscp.toml")

	type payload struct {
		Geometry struct {
			Heads     int `toml:"heads"`
			Cylinders int `toml:"cylinders"`
			Side      int `toml:"side"`
		} `toml:"geometry"`
		Format struct {
			Preset       string `toml:"preset"`
			Manufacturer int    `toml:"manufacturer"`
		} `toml:"format"`
		Decode struct {
			FluxOffset    int    `toml:"flux_offset"`
			OverlapPolicy string `toml:"overlap_policy"`
		} `toml:"decode"`
	}
	custom := payload{}
	custom.Geometry.Heads = 1
	custom.Geometry.Cylinders = 40
	custom.Geometry.Side = 1
	custom.Format.Preset = "PC360"
	custom.Format.Manufacturer = int(scp.ManufacturerOther)
	custom.Decode.FluxOffset = -3
	custom.Decode.OverlapPolicy = " None "
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Format.Preset != "pc360" {
		t.Fatalf("expected normalized preset, got %q", cfg.Format.Preset)
	}

	params, err := cfg.ImageParams()
	if err != nil {
		t.Fatalf("ImageParams returned error: %v", err)
	}
	if params.Manufacturer != scp.ManufacturerOther {
		t.Fatalf("expected explicit manufacturer to override preset, got %#x", params.Manufacturer)
	}
	if params.DiskSubtype != 0x00 || params.HeadCode() != 2 {
		t.Fatalf("unexpected params: %+v", params)
	}

	opts, err := cfg.DecodeOptions()
	if err != nil {
		t.Fatalf("DecodeOptions returned error: %v", err)
	}
	if opts.FluxOffset != -3 || opts.Overlap.Policy != flux.OverlapNone {
		t.Fatalf("unexpected decode options: %+v", opts)
	}
	if opts.Format.IndexBit != 1 || opts.Format.DataBit != 3 || opts.Format.Rate != 8e6 {
		t.Fatalf("unexpected sample format: %+v", opts.Format)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "fluxscp.toml")
	if err := os.WriteFile(configPath, []byte("[decode]\nrevolutionz = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSerialPortEnvFallback(t *testing.T) {
	t.Setenv("FLUXSCP_SERIAL_PORT", "/dev/ttyUSB7")
	configPath := filepath.Join(t.TempDir(), "fluxscp.toml")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Drive.SerialPort != "/dev/ttyUSB7" {
		t.Fatalf("expected serial port from env, got %q", cfg.Drive.SerialPort)
	}

	if err := os.WriteFile(configPath, []byte("[drive]\nserial_port = \"/dev/ttyACM0\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err = config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Drive.SerialPort != "/dev/ttyACM0" {
		t.Fatalf("expected file value to win, got %q", cfg.Drive.SerialPort)
	}
}

func TestCreateSampleWithPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSampleWithPreset(path, " PC720 "); err != nil {
		t.Fatalf("CreateSampleWithPreset failed: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if cfg.Format.Preset != "pc720" {
		t.Fatalf("expected pc720 preset, got %q", cfg.Format.Preset)
	}

	if _, err := config.SampleConfig("zx81"); err == nil {
		t.Fatal("expected unknown preset to fail")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "overlap_policy") {
		t.Fatalf("sample config missing decode settings: %s", contents)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if !strings.Contains(cfg.Paths.SessionDir, "fluxscp") {
		t.Fatalf("expected session dir to contain fluxscp, got %q", cfg.Paths.SessionDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"three heads":          func(c *config.Config) { c.Geometry.Heads = 3 },
		"too many tracks":      func(c *config.Config) { c.Geometry.Cylinders = 200 },
		"start past end":       func(c *config.Config) { c.Geometry.StartingCylinder = c.Geometry.Cylinders },
		"negative track skip":  func(c *config.Config) { c.Geometry.TrackSkip = -1 },
		"unknown preset":       func(c *config.Config) { c.Format.Preset = "zx81" },
		"bare format":          func(c *config.Config) { c.Format.Preset = "" },
		"odd sample rate":      func(c *config.Config) { c.Analyzer.SampleRateHz = 3e6 },
		"shared channel":       func(c *config.Config) { c.Analyzer.DataBit = c.Analyzer.IndexBit },
		"channel out of range": func(c *config.Config) { c.Analyzer.IndexBit = 64 },
		"zero revolutions":     func(c *config.Config) { c.Decode.Revolutions = 0 },
		"bad overlap policy":   func(c *config.Config) { c.Decode.OverlapPolicy = "sometimes" },
		"negative retries":     func(c *config.Config) { c.Capture.Retries = -1 },
		"bad log level":        func(c *config.Config) { c.Logging.Level = "chatty" },
		"manufacturer nibble": func(c *config.Config) {
			v := 16
			c.Format.Manufacturer = &v
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	man, disk := int(scp.ManufacturerPC), 3
	cfg.Format.Preset = ""
	cfg.Format.Manufacturer = &man
	cfg.Format.DiskType = &disk
	if err := cfg.Validate(); err != nil {
		t.Fatalf("explicit format should validate: %v", err)
	}
}

func TestCylinderStride(t *testing.T) {
	cfg := config.Default()
	cfg.Geometry.TrackSkip = 1
	if cfg.CylinderStride() != 2 {
		t.Fatalf("expected stride 2, got %d", cfg.CylinderStride())
	}
}
