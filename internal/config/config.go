// Package config manages persistent user preferences for openmeters.
// Settings are stored as JSON at os.UserConfigDir()/openmeters/config.json.
// This package owns the settings *shape* and its JSON round-trip to that
// file (Load/Save); the settings UI is out of scope (spec.md §1) —
// modeled directly on the teacher's client/internal/config package.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all persistent user preferences.
type Config struct {
	CaptureMode        string   `json:"capture_mode"`
	DeviceTargetNodeID *uint32  `json:"device_target_node_id,omitempty"`
	DisabledNodes      []uint32 `json:"disabled_nodes"`
	InputDeviceID      int      `json:"input_device_id"`

	EnabledModules []string `json:"enabled_modules"`

	Loudness     LoudnessConfig     `json:"loudness"`
	Spectrum     SpectrumConfig     `json:"spectrum"`
	Spectrogram  SpectrogramConfig  `json:"spectrogram"`
	Waveform     WaveformConfig     `json:"waveform"`
	Stereometer  StereometerConfig  `json:"stereometer"`
	Oscilloscope OscilloscopeConfig `json:"oscilloscope"`
}

// LoudnessConfig mirrors internal/dsp/loudness.Config's JSON shape.
type LoudnessConfig struct {
	MomentaryWindowSeconds float64 `json:"momentary_window_seconds"`
	FloorDB                float64 `json:"floor_db"`
}

// SpectrumConfig mirrors internal/dsp/spectrum.Config's JSON shape.
type SpectrumConfig struct {
	FFTSize               int     `json:"fft_size"`
	HopSize               int     `json:"hop_size"`
	Window                string  `json:"window"`
	Averaging             string  `json:"averaging"`
	ExponentialFactor     float64 `json:"exponential_factor"`
	PeakHoldDecayDBPerSec float64 `json:"peak_hold_decay_db_per_sec"`
	FrequencyScale        string  `json:"frequency_scale"`
}

// SpectrogramConfig mirrors internal/dsp/spectrogram.Config's JSON shape.
type SpectrogramConfig struct {
	FFTSize                     int     `json:"fft_size"`
	HopSize                     int     `json:"hop_size"`
	Window                      string  `json:"window"`
	FrequencyScale              string  `json:"frequency_scale"`
	HistoryLength               int     `json:"history_length"`
	UseReassignment             bool    `json:"use_reassignment"`
	ReassignmentPowerFloorDB    float64 `json:"reassignment_power_floor_db"`
	ReassignmentMaxCorrectionHz float64 `json:"reassignment_max_correction_hz"`
	DisplayBinCount             int     `json:"display_bin_count"`
}

// WaveformConfig mirrors internal/dsp/waveform.Config's JSON shape.
type WaveformConfig struct {
	ScrollSpeed float64 `json:"scroll_speed"`
	MaxColumns  int     `json:"max_columns"`
}

// StereometerConfig mirrors internal/dsp/stereometer.Config's JSON shape.
type StereometerConfig struct {
	CorrelationWindowSeconds float64 `json:"correlation_window_seconds"`
	SegmentDurationSeconds   float64 `json:"segment_duration_seconds"`
	TargetSampleCount        int     `json:"target_sample_count"`
}

// OscilloscopeConfig mirrors internal/dsp/oscilloscope.Config's JSON shape.
type OscilloscopeConfig struct {
	SegmentDurationSeconds float64 `json:"segment_duration_seconds"`
	TriggerLevel           float64 `json:"trigger_level"`
	TriggerEdge            string  `json:"trigger_edge"`
	TriggerChannel         int     `json:"trigger_channel"`
}

// Default returns a Config populated with sensible defaults: every
// module enabled, application-mode capture, and DSP configs left at zero
// values apart from the window, averaging, frequency-scale and trigger-edge
// names (each processor's own normalized() fills in its working defaults
// for a zero value).
func Default() Config {
	return Config{
		CaptureMode:   "applications",
		DisabledNodes: []uint32{},
		InputDeviceID: -1,
		EnabledModules: []string{
			"loudness", "spectrum", "spectrogram", "waveform", "stereometer", "oscilloscope",
		},
		Spectrum:     SpectrumConfig{Window: "hann", Averaging: "exponential", FrequencyScale: "logarithmic"},
		Spectrogram:  SpectrogramConfig{Window: "hann", FrequencyScale: "logarithmic"},
		Oscilloscope: OscilloscopeConfig{TriggerEdge: "rising"},
	}
}

// Path returns the absolute path to the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "openmeters", "config.json"), nil
}

// Load reads the config file and returns it. If the file is missing or
// unreadable, the default config is returned — never an error.
func Load() Config {
	path, err := Path()
	if err != nil {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default()
	}
	return cfg
}

// Save writes cfg to disk, creating the directory if needed.
func Save(cfg Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
