package spike

import "gonum.org/v1/gonum/floats"

// SpikeClip is the raw voltage excerpt around one spike, pre window to post
// window. Clips near a trace edge are truncated and marked incomplete;
// incomplete clips are excluded from the mean clip because their samples
// would not line up with the others.
type SpikeClip struct {
	SpikeIndex int       `json:"spike_index"`
	StartIndex int       `json:"start_index"`
	Voltages   []float64 `json:"voltages"`
	Complete   bool      `json:"complete"`
}

// ExtractClips cuts one clip per spike out of the result's trace using the
// run's pre/post windows. Clip order matches spike order, so clip i belongs
// to spike index i.
func ExtractClips(result *AnalysisResult) []SpikeClip {
	trace := result.Trace()
	cfg := result.Config()
	n := trace.Len()

	clips := make([]SpikeClip, 0, result.SpikeCount())
	for _, rec := range result.Spikes() {
		lo := rec.OnsetIndex - cfg.PreWindow
		hi := rec.OnsetIndex + cfg.PostWindow + 1
		complete := lo >= 0 && hi <= n
		if lo < 0 {
			lo = 0
		}
		if hi > n {
			hi = n
		}
		clip := SpikeClip{
			SpikeIndex: rec.SpikeIndex,
			StartIndex: lo,
			Voltages:   make([]float64, hi-lo),
			Complete:   complete,
		}
		copy(clip.Voltages, trace.Samples()[lo:hi])
		clips = append(clips, clip)
	}
	return clips
}

// MeanClip averages the complete clips sample by sample, producing the
// canonical "average spike" waveform. Returns nil when no complete clip
// exists.
func MeanClip(clips []SpikeClip) []float64 {
	var mean []float64
	count := 0
	for _, c := range clips {
		if !c.Complete {
			continue
		}
		if mean == nil {
			mean = make([]float64, len(c.Voltages))
		}
		floats.Add(mean, c.Voltages)
		count++
	}
	if count == 0 {
		return nil
	}
	floats.Scale(1/float64(count), mean)
	return mean
}
