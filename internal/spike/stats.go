package spike

// SpikeRecord holds the per-spike measurements for one detected action
// potential. Records are created once by ComputeSpikeStats and never mutated
// afterwards; corrections require a full re-run. Fields that depend on a
// complete, unclipped statistic window are pointers and nil when the window
// was truncated by a trace boundary — truncation is a data condition, never
// an error.
type SpikeRecord struct {
	// SpikeIndex is the record's ordinal position in the run, 0-based and
	// strictly increasing. It is the durable identity used by
	// CrossViewIndex even after filtering removes records from a view.
	SpikeIndex int `json:"spike_index"`

	// OnsetIndex is the sample index of the threshold crossing.
	OnsetIndex   int     `json:"onset_index"`
	OnsetSeconds float64 `json:"onset_seconds"`

	// ThresholdVoltage is the voltage at the onset sample.
	ThresholdVoltage float64 `json:"threshold_voltage"`

	// MaxDVDT is the maximum derivative within the clipped window, in
	// voltage units per second. Always defined, truncated window or not.
	MaxDVDT float64 `json:"max_dvdt"`

	// PeakIndex is the sample index of the voltage extremum between onset
	// and the (clipped) post edge. Nil only when the clipped window holds
	// no samples to search.
	PeakIndex   *int     `json:"peak_index,omitempty"`
	PeakVoltage *float64 `json:"peak_voltage,omitempty"`

	// PeakHeight is peak voltage minus threshold voltage.
	PeakHeight *float64 `json:"peak_height,omitempty"`

	// TimeToPeakMs is the onset-to-peak delay in milliseconds.
	TimeToPeakMs *float64 `json:"time_to_peak_ms,omitempty"`

	// HalfWidthMs is the time spent above the half-maximal voltage
	// between the rising and falling half-height crossings. Nil when the
	// unclipped window overruns either trace edge or no falling crossing
	// exists inside the window.
	HalfWidthMs *float64 `json:"half_width_ms,omitempty"`

	// ISIMs and InstantFreqHz relate this spike to the previous one in
	// the run. Nil on the first spike.
	ISIMs         *float64 `json:"isi_ms,omitempty"`
	InstantFreqHz *float64 `json:"instant_freq_hz,omitempty"`
}

// ComputeSpikeStats computes one SpikeRecord per onset, in onset order. Each
// record's SpikeIndex equals its position in the returned slice. Onsets near
// a trace edge get whatever statistics the clipped window supports, with the
// window-dependent fields left nil; the function never fails because of
// truncation. It returns a *ConfigError for an invalid config and
// ErrIndexOutOfRange for an onset outside the trace.
func ComputeSpikeStats(trace *Trace, onsets []int, cfg DetectionConfig) ([]SpikeRecord, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, onset := range onsets {
		if onset < 0 || onset >= trace.Len() {
			return nil, ErrIndexOutOfRange
		}
	}
	return computeSpikeStats(trace.Smoothed(cfg.SmoothingWidth), onsets, cfg), nil
}

// computeSpikeStats assumes a validated config, in-range onsets and an
// already-smoothed trace.
func computeSpikeStats(trace *Trace, onsets []int, cfg DetectionConfig) []SpikeRecord {
	records := make([]SpikeRecord, 0, len(onsets))
	for i, onset := range onsets {
		rec := computeOne(trace, onset, cfg)
		rec.SpikeIndex = i
		if i > 0 {
			isi := (rec.OnsetSeconds - records[i-1].OnsetSeconds) * 1000
			rec.ISIMs = &isi
			if isi > 0 {
				freq := 1000 / isi
				rec.InstantFreqHz = &freq
			}
		}
		records = append(records, rec)
	}
	return records
}

func computeOne(trace *Trace, onset int, cfg DetectionConfig) SpikeRecord {
	volts := trace.Samples()
	deriv := trace.Derivative()
	n := len(volts)

	rec := SpikeRecord{
		OnsetIndex:       onset,
		OnsetSeconds:     trace.TimeAt(onset),
		ThresholdVoltage: volts[onset],
	}

	// Clip the analysis window [onset-pre, onset+post] to the trace.
	lo := onset - cfg.PreWindow
	hi := onset + cfg.PostWindow + 1
	preClipped := lo < 0
	postClipped := hi > n
	if preClipped {
		lo = 0
	}
	if postClipped {
		hi = n
	}

	if lo < hi {
		rec.MaxDVDT = deriv[lo]
		for j := lo + 1; j < hi; j++ {
			if deriv[j] > rec.MaxDVDT {
				rec.MaxDVDT = deriv[j]
			}
		}
	}

	// Peak within the clipped window, searched from the onset forward.
	if onset >= hi {
		return rec
	}
	peakIdx := onset
	for j := onset; j < hi; j++ {
		better := volts[j] > volts[peakIdx]
		if cfg.PeakPolarity == PeakMin {
			better = volts[j] < volts[peakIdx]
		}
		if better {
			peakIdx = j
		}
	}
	peakV := volts[peakIdx]
	ttp := float64(peakIdx-onset) * trace.SampleInterval() * 1000
	height := peakV - rec.ThresholdVoltage
	rec.PeakIndex = &peakIdx
	rec.PeakVoltage = &peakV
	rec.PeakHeight = &height
	rec.TimeToPeakMs = &ttp

	// Half-width needs the full unclipped window on both sides: a clipped
	// edge could hide the true crossing, so the field goes nil instead of
	// reporting a wrong width.
	if preClipped || postClipped {
		return rec
	}
	if hw, ok := halfWidth(trace, rec, peakIdx, hi, cfg); ok {
		rec.HalfWidthMs = &hw
	}
	return rec
}

// halfWidth measures the time between the rising and falling crossings of
// the half-maximal voltage, defined relative to the onset threshold voltage
// the way the classic cardiac analyses do: half = threshold + 0.5*(peak -
// threshold). The falling crossing is searched from the peak to the window
// edge, the rising crossing from the peak back toward the onset.
func halfWidth(trace *Trace, rec SpikeRecord, peakIdx, hi int, cfg DetectionConfig) (float64, bool) {
	volts := trace.Samples()
	peakV := volts[peakIdx]
	half := rec.ThresholdVoltage + 0.5*(peakV-rec.ThresholdVoltage)

	above := func(v float64) bool {
		if cfg.PeakPolarity == PeakMin {
			return v <= half
		}
		return v >= half
	}
	if !above(peakV) {
		// Degenerate spike with no excursion past half height.
		return 0, false
	}

	falling := -1
	for j := peakIdx + 1; j < hi; j++ {
		if !above(volts[j]) {
			falling = j
			break
		}
	}
	if falling < 0 {
		return 0, false
	}

	rising := peakIdx
	for j := peakIdx; j >= rec.OnsetIndex; j-- {
		if !above(volts[j]) {
			break
		}
		rising = j
	}

	return float64(falling-rising) * trace.SampleInterval() * 1000, true
}
