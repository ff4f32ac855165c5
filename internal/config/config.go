// Package config handles animtool configuration loading and management.
package config

// Config holds all animtool settings.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Blending BlendingConfig `yaml:"blending"`
	Sampling SamplingConfig `yaml:"sampling"`
	Playback PlaybackConfig `yaml:"playback"`
	Import   ImportConfig   `yaml:"import"`
	Paths    PathsConfig    `yaml:"paths"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// BlendingConfig holds blending job parameters.
type BlendingConfig struct {
	Threshold float32 `yaml:"threshold"` // minimum accumulated weight before the bind pose takes over
}

// SamplingConfig holds sampling settings for the sample and bench commands.
type SamplingConfig struct {
	Frames int `yaml:"frames"`
}

// PlaybackConfig holds playback controller settings.
type PlaybackConfig struct {
	Speed       float32 `yaml:"speed"`
	Loop        bool    `yaml:"loop"`
	FadeSeconds float32 `yaml:"fade_seconds"`
}

// ImportConfig holds importer settings.
type ImportConfig struct {
	SampleRate        float32 `yaml:"sample_rate"`          // Hz, for baking cubic glTF curves
	RSMTicksPerSecond float32 `yaml:"rsm_ticks_per_second"` // RSM keyframe units
}

// PathsConfig holds output locations.
type PathsConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Blending: BlendingConfig{
			Threshold: 0.1,
		},
		Sampling: SamplingConfig{
			Frames: 30,
		},
		Playback: PlaybackConfig{
			Speed:       1,
			Loop:        true,
			FadeSeconds: 0.25,
		},
		Import: ImportConfig{
			SampleRate:        30,
			RSMTicksPerSecond: 1000,
		},
		Paths: PathsConfig{
			OutputDir: ".",
		},
	}
}
