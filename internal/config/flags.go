package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagLogFile   = flag.String("log", "", "Write logs to this file")
	flagOutput    = flag.String("out-dir", "", "Output directory")
	flagFrames    = flag.Int("frames", 0, "Frames to sample")
	flagThreshold = flag.Float64("threshold", 0, "Blending threshold")
)

// ParseFlags parses command-line flags. Call this early in main().
// Flag parsing stops at the first subcommand.
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagOutput != "" {
		cfg.Paths.OutputDir = *flagOutput
	}
	if *flagFrames > 0 {
		cfg.Sampling.Frames = *flagFrames
	}
	if *flagThreshold > 0 {
		cfg.Blending.Threshold = float32(*flagThreshold)
	}
}
