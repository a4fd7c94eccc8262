// Package config loads the tracker configuration: defaults, then an
// optional TOML file, then environment variable overrides. Invalid numeric
// values are clamped to their valid ranges rather than rejected, so a bad
// config degrades tuning instead of failing startup.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config is the full tuning surface consumed by the pipeline and adapters.
type Config struct {
	LogLevel string `toml:"log_level" env:"FACELINK_LOG_LEVEL"`

	Smoothing   Smoothing   `toml:"smoothing" envPrefix:"FACELINK_SMOOTHING_"`
	Precision   Precision   `toml:"precision" envPrefix:"FACELINK_PRECISION_"`
	Calibration Calibration `toml:"calibration" envPrefix:"FACELINK_CALIBRATION_"`
	Sensitivity Channels    `toml:"sensitivity" envPrefix:"FACELINK_SENSITIVITY_"`
	Deadzone    Channels    `toml:"deadzone" envPrefix:"FACELINK_DEADZONE_"`
	VMC         Endpoint    `toml:"vmc" envPrefix:"FACELINK_VMC_"`
	VTS         VTS         `toml:"vts" envPrefix:"FACELINK_VTS_"`
}

// Smoothing configures the EMA stage.
type Smoothing struct {
	Alpha   float64 `toml:"alpha" env:"ALPHA"`
	Enabled bool    `toml:"enabled" env:"ENABLED"`
}

// Precision configures the enhancement stage.
type Precision struct {
	Enabled        bool    `toml:"enabled" env:"ENABLED"`
	Multiplier     float64 `toml:"multiplier" env:"MULTIPLIER"`
	NoiseReduction bool    `toml:"noise_reduction" env:"NOISE_REDUCTION"`
	NoiseThreshold float64 `toml:"noise_threshold" env:"NOISE_THRESHOLD"`
	HeadRotation   bool    `toml:"head_rotation" env:"HEAD_ROTATION"`
	EyeBlink       bool    `toml:"eye_blink" env:"EYE_BLINK"`
	Mouth          bool    `toml:"mouth" env:"MOUTH"`
}

// Calibration configures the neutral-pose session.
type Calibration struct {
	Samples int `toml:"samples" env:"SAMPLES"`
}

// Channels holds one value per tracked channel, used for both sensitivity
// multipliers and deadzone thresholds.
type Channels struct {
	HeadYaw   float64 `toml:"head_yaw" env:"HEAD_YAW"`
	HeadPitch float64 `toml:"head_pitch" env:"HEAD_PITCH"`
	HeadRoll  float64 `toml:"head_roll" env:"HEAD_ROLL"`
	EyeLeft   float64 `toml:"eye_left" env:"EYE_LEFT"`
	EyeRight  float64 `toml:"eye_right" env:"EYE_RIGHT"`
	MouthOpen float64 `toml:"mouth_open" env:"MOUTH_OPEN"`
	MouthWide float64 `toml:"mouth_wide" env:"MOUTH_WIDE"`
}

// Endpoint is a host:port target with an enable flag.
type Endpoint struct {
	Host    string `toml:"host" env:"HOST"`
	Port    int    `toml:"port" env:"PORT"`
	Enabled bool   `toml:"enabled" env:"ENABLED"`
}

// VTS extends Endpoint with the plugin identity sent during authentication.
type VTS struct {
	Host            string `toml:"host" env:"HOST"`
	Port            int    `toml:"port" env:"PORT"`
	Enabled         bool   `toml:"enabled" env:"ENABLED"`
	PluginName      string `toml:"plugin_name" env:"PLUGIN_NAME"`
	PluginDeveloper string `toml:"plugin_developer" env:"PLUGIN_DEVELOPER"`
	Probe           bool   `toml:"probe" env:"PROBE"`
}

// Default returns the stock configuration.
func Default() Config {
	uniform := func(v float64) Channels {
		return Channels{
			HeadYaw: v, HeadPitch: v, HeadRoll: v,
			EyeLeft: v, EyeRight: v,
			MouthOpen: v, MouthWide: v,
		}
	}
	return Config{
		LogLevel: "info",
		Smoothing: Smoothing{
			Alpha:   0.2,
			Enabled: true,
		},
		Precision: Precision{
			Enabled:        false,
			Multiplier:     1.5,
			NoiseReduction: true,
			NoiseThreshold: 0.01,
			HeadRotation:   true,
			EyeBlink:       true,
			Mouth:          true,
		},
		Calibration: Calibration{Samples: 30},
		Sensitivity: uniform(1.0),
		Deadzone:    uniform(0.05),
		VMC:         Endpoint{Host: "127.0.0.1", Port: 39539, Enabled: true},
		VTS: VTS{
			Host:            "127.0.0.1",
			Port:            8001,
			Enabled:         false,
			PluginName:      "VTuber Tracker Plugin",
			PluginDeveloper: "VTuber Tracker",
			Probe:           true,
		},
	}
}

// Load builds the configuration: defaults, overlaid by the TOML file at
// path (skipped when path is empty or missing), overlaid by environment
// variables, then clamped.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	cfg.Clamp()
	return cfg, nil
}

// Clamp forces every numeric field into its valid range.
func (c *Config) Clamp() {
	c.Smoothing.Alpha = clampF(c.Smoothing.Alpha, 0, 1)
	c.Precision.Multiplier = clampF(c.Precision.Multiplier, 1, 3)
	c.Precision.NoiseThreshold = clampF(c.Precision.NoiseThreshold, 0, 1)
	if c.Calibration.Samples < 1 {
		c.Calibration.Samples = 30
	}
	c.Sensitivity.clampEach(0, 10)
	c.Deadzone.clampEach(0, 0.99)
	if c.VMC.Port <= 0 || c.VMC.Port > 65535 {
		c.VMC.Port = 39539
	}
	if c.VTS.Port <= 0 || c.VTS.Port > 65535 {
		c.VTS.Port = 8001
	}
}

func (ch *Channels) clampEach(min, max float64) {
	ch.HeadYaw = clampF(ch.HeadYaw, min, max)
	ch.HeadPitch = clampF(ch.HeadPitch, min, max)
	ch.HeadRoll = clampF(ch.HeadRoll, min, max)
	ch.EyeLeft = clampF(ch.EyeLeft, min, max)
	ch.EyeRight = clampF(ch.EyeRight, min, max)
	ch.MouthOpen = clampF(ch.MouthOpen, min, max)
	ch.MouthWide = clampF(ch.MouthWide, min, max)
}

func clampF(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
