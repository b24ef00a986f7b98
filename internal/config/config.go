// Package config loads the demo's YAML configuration, grounded on
// madpsy-ka9q_ubersdr's config.go: a single struct tagged with `yaml`,
// loaded via gopkg.in/yaml.v3, with defaults filled in where the file
// omits them.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"audiosep/pkg/window"
)

// STFTConfig mirrors stft.Params with YAML tags and human units (seconds
// rather than samples) where that's more convenient to hand-edit.
type STFTConfig struct {
	WindowSeconds float64 `yaml:"window_seconds"`
	HopSeconds    float64 `yaml:"hop_seconds"`
	Window        string  `yaml:"window"`
	MinFFT        int     `yaml:"min_fft"`
}

// DuetConfig holds the DUET demo defaults.
type DuetConfig struct {
	NumSources   int     `yaml:"num_sources"`
	AlphaMin     float64 `yaml:"alpha_min"`
	AlphaMax     float64 `yaml:"alpha_max"`
	AlphaBins    int     `yaml:"alpha_bins"`
	DeltaMin     float64 `yaml:"delta_min"`
	DeltaMax     float64 `yaml:"delta_max"`
	DeltaBins    int     `yaml:"delta_bins"`
	Threshold    float64 `yaml:"threshold"`
	AlphaMinDist int     `yaml:"alpha_min_dist"`
	DeltaMinDist int     `yaml:"delta_min_dist"`
}

// RepetConfig holds the REPET demo defaults.
type RepetConfig struct {
	Variant             string  `yaml:"variant"` // "original" or "sim"
	HighPassCutoffHz    float64 `yaml:"high_pass_cutoff_hz"`
	MinPeriodSeconds    float64 `yaml:"min_period_seconds"`
	MaxPeriodSeconds    float64 `yaml:"max_period_seconds"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MinDistanceSeconds  float64 `yaml:"min_distance_seconds"`
	MaxRepeatingFrames  int     `yaml:"max_repeating_frames"`
}

// PrometheusConfig controls the optional metrics endpoint.
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Config is the demo's top-level configuration file.
type Config struct {
	STFT       STFTConfig       `yaml:"stft"`
	Duet       DuetConfig       `yaml:"duet"`
	Repet      RepetConfig      `yaml:"repet"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		STFT: STFTConfig{
			WindowSeconds: 0.064,
			HopSeconds:    0.032,
			Window:        "hamming",
			MinFFT:        1024,
		},
		Duet: DuetConfig{
			NumSources:   2,
			AlphaMin:     -2, AlphaMax: 2, AlphaBins: 50,
			DeltaMin: -3, DeltaMax: 3, DeltaBins: 50,
			Threshold:    0.2,
			AlphaMinDist: 5,
			DeltaMinDist: 5,
		},
		Repet: RepetConfig{
			Variant:             "original",
			HighPassCutoffHz:    100,
			MinPeriodSeconds:    1,
			MaxPeriodSeconds:    10,
			SimilarityThreshold: 0,
			MinDistanceSeconds:  1,
			MaxRepeatingFrames:  4,
		},
		Prometheus: PrometheusConfig{Enabled: false, Addr: ":9090"},
	}
}

// Load reads and parses a YAML config file, starting from Default() so an
// omitted section keeps its built-in values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// WindowType maps the config's string window name to window.Type.
func (c *STFTConfig) WindowType() (window.Type, error) {
	switch c.Window {
	case "", "hamming":
		return window.Hamming, nil
	case "hanning", "hann":
		return window.Hanning, nil
	case "blackman":
		return window.Blackman, nil
	case "rectangular":
		return window.Rectangular, nil
	default:
		return 0, fmt.Errorf("config: unknown window type %q", c.Window)
	}
}
