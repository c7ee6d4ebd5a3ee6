package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"fluxscp/internal/scp"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	SessionDir string `toml:"session_dir"`
	LogDir     string `toml:"log_dir"`
	CacheDir   string `toml:"cache_dir"`
	OutputDir  string `toml:"output_dir"`
}

// Geometry describes which tracks of the disk are captured.
type Geometry struct {
	Heads            int `toml:"heads"`
	Cylinders        int `toml:"cylinders"`
	StartingCylinder int `toml:"starting_cylinder"`
	// TrackSkip is the number of extra steps between captured cylinders
	// (1 reads a 40-track disk in an 80-track drive).
	TrackSkip int `toml:"track_skip"`
	// Side selects the head for single-sided captures.
	Side int `toml:"side"`
}

// Format contains the image header settings. Explicit manufacturer,
// disk_type, tpi96 and rpm360 values override the preset.
type Format struct {
	Preset           string  `toml:"preset"`
	Manufacturer     *int    `toml:"manufacturer"`
	DiskType         *int    `toml:"disk_type"`
	TPI96            *bool   `toml:"tpi96"`
	RPM360           *bool   `toml:"rpm360"`
	Version          int     `toml:"version"`
	ReferenceClockHz float64 `toml:"reference_clock_hz"`
	Trailer          bool    `toml:"trailer"`
}

// Analyzer contains logic analyzer capture settings.
type Analyzer struct {
	SampleRateHz   float64  `toml:"sample_rate_hz"`
	IndexBit       int      `toml:"index_bit"`
	DataBit        int      `toml:"data_bit"`
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	CaptureDir     string   `toml:"capture_dir"`
	FilePattern    string   `toml:"file_pattern"`
}

// Decode contains flux decoding settings.
type Decode struct {
	Revolutions   int    `toml:"revolutions"`
	FluxOffset    int    `toml:"flux_offset"`
	OverlapPolicy string `toml:"overlap_policy"`
	OverlapCount  int    `toml:"overlap_count"`
	BestEffort    bool   `toml:"best_effort"`
	Workers       int    `toml:"workers"`
}

// Drive contains floppy drive control settings.
type Drive struct {
	SerialPort           string `toml:"serial_port"`
	SettleMS             int    `toml:"settle_ms"`
	StepMS               int    `toml:"step_ms"`
	WaitForDeviceSeconds int    `toml:"wait_for_device_seconds"`
}

// Capture contains acquisition loop settings.
type Capture struct {
	Retries int `toml:"retries"`
}

// Cache contains configuration for the raw capture cache.
type Cache struct {
	Enabled bool `toml:"enabled"`
	MaxMiB  int  `toml:"max_mib"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for fluxscp.
//
// Configuration sections by subsystem:
//   - Paths: session database, logs, capture cache, and image output
//   - Geometry: heads, cylinders, and stepping
//   - Format: SCP header disk type and flags
//   - Analyzer: sample format and capture acquisition
//   - Decode: revolutions, flux offset, and overlap correction
//   - Drive: serial drive control
//   - Capture: retry policy
//   - Cache: raw capture archive
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Geometry Geometry `toml:"geometry"`
	Format   Format   `toml:"format"`
	Analyzer Analyzer `toml:"analyzer"`
	Decode   Decode   `toml:"decode"`
	Drive    Drive    `toml:"drive"`
	Capture  Capture  `toml:"capture"`
	Cache    Cache    `toml:"cache"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("fluxscp.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the session, log, and output directories, plus
// the cache directory when the capture cache is enabled.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.SessionDir, c.Paths.LogDir, c.Paths.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Cache.Enabled && strings.TrimSpace(c.Paths.CacheDir) != "" {
		if err := os.MkdirAll(c.Paths.CacheDir, 0o755); err != nil {
			return fmt.Errorf("create cache directory %q: %w", c.Paths.CacheDir, err)
		}
	}
	return nil
}

// SessionDBPath is the SQLite file holding capture sessions.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.Paths.SessionDir, "sessions.db")
}

// LogFilePath is the log file written alongside console output.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "fluxscp.log")
}

// DriveLockPath guards the drive against concurrent capture runs.
func (c *Config) DriveLockPath() string {
	return filepath.Join(c.Paths.SessionDir, "drive.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "fluxscp", "captures")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/fluxscp/captures"
	}
	return filepath.Join(home, ".cache", "fluxscp", "captures")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	return CreateSampleWithPreset(path, "")
}

// CreateSampleWithPreset writes the sample configuration with format.preset
// set to preset. An empty preset keeps the sample's default.
func CreateSampleWithPreset(path, preset string) error {
	content, err := SampleConfig(preset)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration, optionally with a
// different disk preset.
func SampleConfig(preset string) (string, error) {
	preset = strings.ToLower(strings.TrimSpace(preset))
	if preset == "" {
		return sampleConfig, nil
	}
	if _, ok := scp.LookupPreset(preset); !ok {
		return "", fmt.Errorf("unknown preset %q", preset)
	}
	line := fmt.Sprintf("preset = %q", defaultPreset)
	if !strings.Contains(sampleConfig, line) {
		return "", errors.New("sample config has no preset line")
	}
	return strings.Replace(sampleConfig, line, fmt.Sprintf("preset = %q", preset), 1), nil
}
