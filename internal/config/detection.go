package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/spike.report/internal/spike"
)

// DefaultConfigPath is the path to the canonical detection defaults file.
// This is the single source of truth for all default detection values.
const DefaultConfigPath = "config/detection.defaults.json"

// DetectionDefaults represents the millisecond-based detection parameters as
// loaded from JSON. All fields are optional; the Get* methods supply
// fallback defaults, so partial config files are safe. Millisecond values
// convert to sample counts through a trace's sample rate in
// ToDetectionConfig.
type DetectionDefaults struct {
	// DVDTThreshold is the onset crossing level in mV per ms.
	DVDTThreshold *float64 `json:"dvdt_threshold,omitempty"`

	// ResetLevel is the re-arm level, in mV per ms when the reset watches
	// the derivative, in mV when reset_on_voltage is set.
	ResetLevel     *float64 `json:"reset_level,omitempty"`
	ResetOnVoltage *bool    `json:"reset_on_voltage,omitempty"`

	RefractoryMs *float64 `json:"refractory_ms,omitempty"`
	PreWindowMs  *float64 `json:"pre_window_ms,omitempty"`
	PostWindowMs *float64 `json:"post_window_ms,omitempty"`

	// MinPeakMV rejects spikes whose peak stays below this voltage. Nil
	// disables the gate (unlike the other fields it has no fallback).
	MinPeakMV *float64 `json:"min_peak_mv,omitempty"`

	SmoothingMs *float64 `json:"smoothing_ms,omitempty"`

	// PeakDirection is "max" (default) or "min".
	PeakDirection *string `json:"peak_direction,omitempty"`
}

// Fallback defaults, in the units described on each field.
const (
	defaultDVDTThreshold = 100.0 // mV/ms
	defaultResetLevel    = 10.0  // mV/ms
	defaultRefractoryMs  = 170.0
	defaultPreWindowMs   = 10.0
	defaultPostWindowMs  = 200.0
	defaultSmoothingMs   = 0.0
)

// EmptyDetectionDefaults returns a DetectionDefaults with all fields nil.
// Use LoadDetectionDefaults to load actual values from the defaults file.
func EmptyDetectionDefaults() *DetectionDefaults {
	return &DetectionDefaults{}
}

// LoadDetectionDefaults loads detection defaults from a JSON file. The file
// must have a .json extension and stay under the max file size. Fields
// omitted from the file fall back to built-in defaults.
func LoadDetectionDefaults(path string) (*DetectionDefaults, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDetectionDefaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that could not convert to a valid
// spike.DetectionConfig at any sample rate.
func (d *DetectionDefaults) Validate() error {
	check := func(name string, p *float64, requirePositive bool) error {
		if p == nil {
			return nil
		}
		if math.IsNaN(*p) || math.IsInf(*p, 0) {
			return fmt.Errorf("config field %s must be finite", name)
		}
		if requirePositive && *p <= 0 {
			return fmt.Errorf("config field %s must be positive", name)
		}
		if !requirePositive && *p < 0 {
			return fmt.Errorf("config field %s must not be negative", name)
		}
		return nil
	}
	for _, c := range []struct {
		name     string
		p        *float64
		positive bool
	}{
		{"dvdt_threshold", d.DVDTThreshold, true},
		{"reset_level", d.ResetLevel, false},
		{"refractory_ms", d.RefractoryMs, false},
		{"pre_window_ms", d.PreWindowMs, true},
		{"post_window_ms", d.PostWindowMs, true},
		{"smoothing_ms", d.SmoothingMs, false},
	} {
		// reset_level may legitimately be negative for voltage resets.
		if c.name == "reset_level" {
			if c.p != nil && (math.IsNaN(*c.p) || math.IsInf(*c.p, 0)) {
				return fmt.Errorf("config field reset_level must be finite")
			}
			continue
		}
		if err := check(c.name, c.p, c.positive); err != nil {
			return err
		}
	}
	if d.PeakDirection != nil && *d.PeakDirection != "max" && *d.PeakDirection != "min" {
		return fmt.Errorf("config field peak_direction must be \"max\" or \"min\", got %q", *d.PeakDirection)
	}
	return nil
}

// Getters with fallbacks.

func (d *DetectionDefaults) GetDVDTThreshold() float64 {
	if d.DVDTThreshold != nil {
		return *d.DVDTThreshold
	}
	return defaultDVDTThreshold
}

func (d *DetectionDefaults) GetResetLevel() float64 {
	if d.ResetLevel != nil {
		return *d.ResetLevel
	}
	return defaultResetLevel
}

func (d *DetectionDefaults) GetResetOnVoltage() bool {
	return d.ResetOnVoltage != nil && *d.ResetOnVoltage
}

func (d *DetectionDefaults) GetRefractoryMs() float64 {
	if d.RefractoryMs != nil {
		return *d.RefractoryMs
	}
	return defaultRefractoryMs
}

func (d *DetectionDefaults) GetPreWindowMs() float64 {
	if d.PreWindowMs != nil {
		return *d.PreWindowMs
	}
	return defaultPreWindowMs
}

func (d *DetectionDefaults) GetPostWindowMs() float64 {
	if d.PostWindowMs != nil {
		return *d.PostWindowMs
	}
	return defaultPostWindowMs
}

func (d *DetectionDefaults) GetSmoothingMs() float64 {
	if d.SmoothingMs != nil {
		return *d.SmoothingMs
	}
	return defaultSmoothingMs
}

func (d *DetectionDefaults) GetPeakDirection() spike.PeakPolarity {
	if d.PeakDirection != nil && *d.PeakDirection == "min" {
		return spike.PeakMin
	}
	return spike.PeakMax
}

// ToDetectionConfig converts the millisecond-based defaults into a
// sample-based DetectionConfig for a trace sampled at sampleRate Hz. Window
// sample counts are rounded and floored at 1 sample so a coarse sample rate
// never produces an invalid config.
func (d *DetectionDefaults) ToDetectionConfig(sampleRate float64) (spike.DetectionConfig, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return spike.DetectionConfig{}, fmt.Errorf("sample rate must be positive and finite, got %v", sampleRate)
	}
	samplesPerMs := sampleRate / 1000
	toSamples := func(ms float64, min int) int {
		n := int(math.Round(ms * samplesPerMs))
		if n < min {
			n = min
		}
		return n
	}

	cfg := spike.DetectionConfig{
		// Core derivative units are mV/s; the file is in mV/ms.
		DVDTThreshold:    d.GetDVDTThreshold() * 1000,
		ResetLevel:       d.GetResetLevel() * 1000,
		MinSpikeInterval: toSamples(d.GetRefractoryMs(), 0),
		PreWindow:        toSamples(d.GetPreWindowMs(), 1),
		PostWindow:       toSamples(d.GetPostWindowMs(), 1),
		PeakPolarity:     d.GetPeakDirection(),
		SmoothingWidth:   toSamples(d.GetSmoothingMs(), 0),
	}
	if d.GetResetOnVoltage() {
		cfg.ResetSource = spike.ResetOnVoltage
		cfg.ResetLevel = d.GetResetLevel() // mV, no per-ms scaling
	}
	if d.MinPeakMV != nil {
		floor := *d.MinPeakMV
		cfg.MinPeakVoltage = &floor
	}
	return cfg, cfg.Validate()
}
