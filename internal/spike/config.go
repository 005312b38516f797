package spike

import "math"

// ResetSource selects which series the detector watches while DISARMED to
// decide when it may re-arm.
type ResetSource int

const (
	// ResetOnDerivative re-arms once dV/dt falls back below the reset level.
	ResetOnDerivative ResetSource = iota
	// ResetOnVoltage re-arms once the raw voltage falls back below the
	// reset level instead.
	ResetOnVoltage
)

// PeakPolarity selects the direction of the per-spike voltage extremum.
type PeakPolarity int

const (
	// PeakMax looks for the maximum voltage in the window (depolarizing
	// spikes, the default).
	PeakMax PeakPolarity = iota
	// PeakMin looks for the minimum voltage instead.
	PeakMin
)

// DetectionConfig holds the parameters of one detection run. A config is
// immutable per run: re-detecting with different parameters produces a new
// AnalysisResult rather than mutating the old one. All sample-count fields
// are in samples; use internal/config to convert from millisecond-based
// defaults through a trace's sample rate.
type DetectionConfig struct {
	// DVDTThreshold is the dV/dt crossing level, in voltage units per
	// second, that marks a spike onset. Must be positive and finite.
	DVDTThreshold float64

	// ResetLevel is the level the reset series must fall below, for at
	// least one sample after an onset, before the detector re-arms.
	ResetLevel float64

	// ResetSource selects the series compared against ResetLevel.
	ResetSource ResetSource

	// MinSpikeInterval is the refractory floor in samples: an onset
	// candidate closer than this to the previous kept onset is discarded
	// as part of the same physiological event. Zero disables the floor.
	MinSpikeInterval int

	// PreWindow and PostWindow are the statistic window half-widths in
	// samples around each onset. Both must be at least 1.
	PreWindow  int
	PostWindow int

	// PeakPolarity selects the peak direction. Defaults to PeakMax.
	PeakPolarity PeakPolarity

	// MinPeakVoltage, when non-nil, rejects onsets whose peak within the
	// post window never rises above this floor. Mirrors the classic
	// "only peaks above mV" gate used to drop subthreshold wobbles.
	MinPeakVoltage *float64

	// SmoothingWidth is the gaussian half-width in samples applied to the
	// voltage before the derivative is taken. Zero disables smoothing.
	SmoothingWidth int
}

// Validate checks the config and returns a *ConfigError describing the first
// problem found, or nil.
func (c DetectionConfig) Validate() error {
	switch {
	case math.IsNaN(c.DVDTThreshold) || math.IsInf(c.DVDTThreshold, 0):
		return &ConfigError{Field: "dvdt_threshold", Reason: "must be finite"}
	case c.DVDTThreshold <= 0:
		return &ConfigError{Field: "dvdt_threshold", Reason: "must be positive"}
	case math.IsNaN(c.ResetLevel) || math.IsInf(c.ResetLevel, 0):
		return &ConfigError{Field: "reset_level", Reason: "must be finite"}
	case c.MinSpikeInterval < 0:
		return &ConfigError{Field: "min_spike_interval", Reason: "must not be negative"}
	case c.PreWindow < 1:
		return &ConfigError{Field: "pre_window", Reason: "must be at least 1 sample"}
	case c.PostWindow < 1:
		return &ConfigError{Field: "post_window", Reason: "must be at least 1 sample"}
	case c.SmoothingWidth < 0:
		return &ConfigError{Field: "smoothing_width", Reason: "must not be negative"}
	}
	if c.MinPeakVoltage != nil {
		if v := *c.MinPeakVoltage; math.IsNaN(v) || math.IsInf(v, 0) {
			return &ConfigError{Field: "min_peak_voltage", Reason: "must be finite"}
		}
	}
	return nil
}
