package config

const (
	defaultConfigPath       = "~/.config/fluxscp/config.toml"
	defaultSessionDir       = "~/.local/share/fluxscp"
	defaultLogDir           = "~/.local/share/fluxscp/logs"
	defaultOutputDir        = "~/floppies"
	defaultHeads            = 2
	defaultCylinders        = 83
	defaultPreset           = "other360"
	defaultSampleRateHz     = 8e6
	defaultIndexBit         = 1
	defaultDataBit          = 3
	defaultAnalyzerTimeout  = 30
	defaultFilePattern      = "c%02d_h%d.bin"
	defaultRevolutions      = 2
	defaultOverlapPolicy    = "first"
	defaultOverlapCount     = 1
	defaultSettleMS         = 20
	defaultStepMS           = 6
	defaultWaitForDevice    = 10
	defaultCaptureRetries   = 2
	defaultCacheMaxMiB      = 2048
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	serialPortEnv           = "FLUXSCP_SERIAL_PORT"
	maxRevolutions          = 255
	maxTrackIndex           = 255
	maxAnalyzerChannelIndex = 63
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SessionDir: defaultSessionDir,
			LogDir:     defaultLogDir,
			CacheDir:   defaultCacheDir(),
			OutputDir:  defaultOutputDir,
		},
		Geometry: Geometry{
			Heads:     defaultHeads,
			Cylinders: defaultCylinders,
		},
		Format: Format{
			Preset: defaultPreset,
		},
		Analyzer: Analyzer{
			SampleRateHz:   defaultSampleRateHz,
			IndexBit:       defaultIndexBit,
			DataBit:        defaultDataBit,
			TimeoutSeconds: defaultAnalyzerTimeout,
			FilePattern:    defaultFilePattern,
		},
		Decode: Decode{
			Revolutions:   defaultRevolutions,
			OverlapPolicy: defaultOverlapPolicy,
			OverlapCount:  defaultOverlapCount,
			BestEffort:    true,
		},
		Drive: Drive{
			SettleMS:             defaultSettleMS,
			StepMS:               defaultStepMS,
			WaitForDeviceSeconds: defaultWaitForDevice,
		},
		Capture: Capture{
			Retries: defaultCaptureRetries,
		},
		Cache: Cache{
			Enabled: true,
			MaxMiB:  defaultCacheMaxMiB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
