package spike

// detectorState is the two-state re-arm machine. The detector starts ARMED;
// a threshold crossing fires an onset and DISARMS it, and it only ARMS again
// after the reset series has fallen below the reset level for at least one
// sample. Without the DISARMED state a single upstroke that stays above
// threshold for several samples emits one spurious onset per sample.
type detectorState int

const (
	armed detectorState = iota
	disarmed
)

// DetectOnsets scans the trace's derivative for spike onsets and returns
// their sample indices in strictly increasing order. An empty result means
// no crossings occurred; it is a normal outcome, not an error. The only
// error returned is a *ConfigError for an invalid config.
//
// The scan applies, in order:
//  1. the ARMED/DISARMED threshold machine over the derivative,
//  2. the minimum-peak-voltage gate (when configured),
//  3. the refractory floor keyed to the previous kept onset.
func DetectOnsets(trace *Trace, cfg DetectionConfig) ([]int, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return detectOnsets(trace.Smoothed(cfg.SmoothingWidth), cfg), nil
}

// detectOnsets runs the scan over an already-smoothed trace with a validated
// config. RunDetection calls it directly so the smoothing pass is shared with
// the stats computer.
func detectOnsets(trace *Trace, cfg DetectionConfig) []int {
	candidates := scanCrossings(trace, cfg)
	candidates = gateByPeak(trace, candidates, cfg)
	return applyRefractory(candidates, cfg.MinSpikeInterval)
}

// scanCrossings runs the two-state machine over the derivative. Sample 0 can
// never fire (its derivative is defined as 0 and below any valid threshold's
// positivity requirement, and it has no predecessor to cross from).
func scanCrossings(trace *Trace, cfg DetectionConfig) []int {
	deriv := trace.Derivative()
	volts := trace.Samples()

	var onsets []int
	state := armed
	for i := 1; i < trace.Len(); i++ {
		switch state {
		case armed:
			if deriv[i] >= cfg.DVDTThreshold {
				onsets = append(onsets, i)
				state = disarmed
			}
		case disarmed:
			// Re-arm strictly after the crossing sample: the loop has
			// already advanced past the onset before this branch runs.
			reset := deriv[i]
			if cfg.ResetSource == ResetOnVoltage {
				reset = volts[i]
			}
			if reset < cfg.ResetLevel {
				state = armed
			}
		}
	}
	// Ending the trace while DISARMED just terminates the scan; no
	// trailing partial spike is emitted.
	return onsets
}

// gateByPeak drops candidates whose voltage peak within the post window
// never rises above the configured floor. With no floor configured the
// candidates pass through unchanged.
func gateByPeak(trace *Trace, candidates []int, cfg DetectionConfig) []int {
	if cfg.MinPeakVoltage == nil {
		return candidates
	}
	floor := *cfg.MinPeakVoltage
	volts := trace.Samples()

	kept := candidates[:0]
	for _, onset := range candidates {
		hi := onset + cfg.PostWindow + 1
		if hi > len(volts) {
			hi = len(volts)
		}
		peak := volts[onset]
		for j := onset; j < hi; j++ {
			if volts[j] > peak {
				peak = volts[j]
			}
		}
		if peak > floor {
			kept = append(kept, onset)
		}
	}
	return kept
}

// applyRefractory enforces the minimum inter-spike interval. Distances are
// measured to the previous *kept* onset, so a burst of near-coincident
// candidates collapses onto the first one rather than chaining: a candidate
// discarded for being too close does not itself push the floor forward.
func applyRefractory(candidates []int, minInterval int) []int {
	if minInterval <= 0 || len(candidates) == 0 {
		return candidates
	}
	kept := candidates[:1]
	for _, onset := range candidates[1:] {
		if onset-kept[len(kept)-1] < minInterval {
			continue
		}
		kept = append(kept, onset)
	}
	return kept
}
