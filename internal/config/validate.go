package config

import (
	"errors"
	"fmt"

	"fluxscp/internal/flux"
	"fluxscp/internal/scp"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGeometry(); err != nil {
		return err
	}
	if err := c.validateAnalyzer(); err != nil {
		return err
	}
	if err := c.validateDecode(); err != nil {
		return err
	}
	if err := c.validateFormat(); err != nil {
		return err
	}
	if err := c.validateDrive(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGeometry() error {
	g := c.Geometry
	if g.Heads != 1 && g.Heads != 2 {
		return fmt.Errorf("geometry.heads must be 1 or 2, got %d", g.Heads)
	}
	if g.Cylinders <= 0 {
		return errors.New("geometry.cylinders must be positive")
	}
	if last := g.Heads*g.Cylinders - 1; last > maxTrackIndex {
		return fmt.Errorf("geometry.heads * geometry.cylinders must not exceed %d tracks, got %d", maxTrackIndex+1, last+1)
	}
	if g.StartingCylinder < 0 || g.StartingCylinder >= g.Cylinders {
		return fmt.Errorf("geometry.starting_cylinder must be between 0 and %d", g.Cylinders-1)
	}
	if g.TrackSkip < 0 {
		return errors.New("geometry.track_skip must be >= 0")
	}
	if g.Side < 0 || g.Side > 1 {
		return errors.New("geometry.side must be 0 or 1")
	}
	return nil
}

func (c *Config) validateFormat() error {
	f := c.Format
	if f.Preset != "" {
		if _, ok := scp.LookupPreset(f.Preset); !ok {
			return fmt.Errorf("format.preset %q is not a known preset (see 'fluxscp presets')", f.Preset)
		}
	} else if f.Manufacturer == nil || f.DiskType == nil {
		return errors.New("format.manufacturer and format.disk_type must be set when format.preset is empty")
	}
	if f.Manufacturer != nil && (*f.Manufacturer < 0 || *f.Manufacturer > 0x0F) {
		return errors.New("format.manufacturer must be between 0 and 15")
	}
	if f.DiskType != nil && (*f.DiskType < 0 || *f.DiskType > 0x0F) {
		return errors.New("format.disk_type must be between 0 and 15")
	}
	if f.Version < 0 || f.Version > 0xFF {
		return errors.New("format.version must be between 0 and 255")
	}
	if f.ReferenceClockHz < 0 {
		return errors.New("format.reference_clock_hz must be >= 0")
	}
	if _, err := c.ImageParams(); err != nil {
		return fmt.Errorf("format: %w", err)
	}
	return nil
}

func (c *Config) validateAnalyzer() error {
	a := c.Analyzer
	if a.SampleRateHz <= 0 {
		return errors.New("analyzer.sample_rate_hz must be positive")
	}
	if a.IndexBit < 0 || a.IndexBit > maxAnalyzerChannelIndex {
		return fmt.Errorf("analyzer.index_bit must be between 0 and %d", maxAnalyzerChannelIndex)
	}
	if a.DataBit < 0 || a.DataBit > maxAnalyzerChannelIndex {
		return fmt.Errorf("analyzer.data_bit must be between 0 and %d", maxAnalyzerChannelIndex)
	}
	if a.IndexBit == a.DataBit {
		return errors.New("analyzer.index_bit and analyzer.data_bit must differ")
	}
	if a.TimeoutSeconds <= 0 {
		return errors.New("analyzer.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateDecode() error {
	d := c.Decode
	if d.Revolutions <= 0 || d.Revolutions > maxRevolutions {
		return fmt.Errorf("decode.revolutions must be between 1 and %d", maxRevolutions)
	}
	if _, err := flux.ParseOverlapPolicy(d.OverlapPolicy); err != nil {
		return fmt.Errorf("decode.overlap_policy: %w", err)
	}
	if d.OverlapCount < 0 {
		return errors.New("decode.overlap_count must be >= 0")
	}
	if d.Workers < 0 {
		return errors.New("decode.workers must be >= 0")
	}
	if c.Capture.Retries < 0 {
		return errors.New("capture.retries must be >= 0")
	}
	return nil
}

func (c *Config) validateDrive() error {
	if c.Drive.SettleMS < 0 {
		return errors.New("drive.settle_ms must be >= 0")
	}
	if c.Drive.StepMS < 0 {
		return errors.New("drive.step_ms must be >= 0")
	}
	if c.Drive.WaitForDeviceSeconds < 0 {
		return errors.New("drive.wait_for_device_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.Enabled && c.Cache.MaxMiB <= 0 {
		return errors.New("cache.max_mib must be positive when cache.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}
