package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFormat()
	if err := c.normalizeAnalyzer(); err != nil {
		return err
	}
	c.normalizeDecode()
	c.normalizeDrive()
	c.normalizeCache()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.SessionDir) == "" {
		c.Paths.SessionDir = defaultSessionDir
	}
	if c.Paths.SessionDir, err = expandPath(c.Paths.SessionDir); err != nil {
		return fmt.Errorf("paths.session_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFormat() {
	c.Format.Preset = strings.ToLower(strings.TrimSpace(c.Format.Preset))
}

func (c *Config) normalizeAnalyzer() error {
	c.Analyzer.Command = strings.TrimSpace(c.Analyzer.Command)
	if strings.TrimSpace(c.Analyzer.CaptureDir) != "" {
		var err error
		if c.Analyzer.CaptureDir, err = expandPath(c.Analyzer.CaptureDir); err != nil {
			return fmt.Errorf("analyzer.capture_dir: %w", err)
		}
	}
	c.Analyzer.FilePattern = strings.TrimSpace(c.Analyzer.FilePattern)
	if c.Analyzer.FilePattern == "" {
		c.Analyzer.FilePattern = defaultFilePattern
	}
	return nil
}

func (c *Config) normalizeDecode() {
	c.Decode.OverlapPolicy = strings.ToLower(strings.TrimSpace(c.Decode.OverlapPolicy))
	if c.Decode.OverlapPolicy == "" {
		c.Decode.OverlapPolicy = defaultOverlapPolicy
	}
	if c.Decode.Workers <= 0 {
		c.Decode.Workers = runtime.NumCPU()
	}
}

func (c *Config) normalizeDrive() {
	c.Drive.SerialPort = strings.TrimSpace(c.Drive.SerialPort)
	if c.Drive.SerialPort == "" {
		if value, ok := os.LookupEnv(serialPortEnv); ok {
			c.Drive.SerialPort = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeCache() {
	if c.Cache.MaxMiB <= 0 {
		c.Cache.MaxMiB = defaultCacheMaxMiB
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
