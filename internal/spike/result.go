package spike

import (
	"time"

	"github.com/google/uuid"
)

// Provenance records how and when an AnalysisResult was produced. The
// file-table collaborator persists these fields verbatim rather than
// recomputing them.
type Provenance struct {
	RunID         string    `json:"run_id"`
	AnalyzedAt    time.Time `json:"analyzed_at"`
	DVDTThreshold float64   `json:"dvdt_threshold"`
}

// AnalysisResult is the immutable product of one detection run: the config
// used, a back-reference to the Trace it was computed from (the result does
// not own the trace's lifetime), and the ordered spike records. Results are
// published by reference swap only after RunDetection returns, so consumers
// never observe a partially built result.
type AnalysisResult struct {
	config     DetectionConfig
	trace      *Trace
	spikes     []SpikeRecord
	provenance Provenance
}

// RunDetection runs the threshold detector and the stats computer over the
// trace and packages the outcome atomically. Zero detected spikes is a valid
// result, not an error; the only failure mode is a *ConfigError, in which
// case no result is produced and any previously held result stays valid.
func RunDetection(trace *Trace, cfg DetectionConfig) (*AnalysisResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// Smooth once; the detector and the stats computer share the series.
	// The result keeps the raw trace, so clips and plots stay unfiltered.
	smoothed := trace.Smoothed(cfg.SmoothingWidth)
	onsets := detectOnsets(smoothed, cfg)
	spikes := computeSpikeStats(smoothed, onsets, cfg)
	return &AnalysisResult{
		config: cfg,
		trace:  trace,
		spikes: spikes,
		provenance: Provenance{
			RunID:         uuid.New().String(),
			AnalyzedAt:    time.Now().UTC(),
			DVDTThreshold: cfg.DVDTThreshold,
		},
	}, nil
}

// SpikeCount returns the number of detected spikes.
func (r *AnalysisResult) SpikeCount() int { return len(r.spikes) }

// SpikeAt returns the record at ordinal position i. Asking for a position
// outside [0, SpikeCount()) is a caller defect and returns
// ErrIndexOutOfRange.
func (r *AnalysisResult) SpikeAt(i int) (SpikeRecord, error) {
	if i < 0 || i >= len(r.spikes) {
		return SpikeRecord{}, ErrIndexOutOfRange
	}
	return r.spikes[i], nil
}

// Spikes returns the full record sequence in temporal order. The slice is
// owned by the result and must not be modified.
func (r *AnalysisResult) Spikes() []SpikeRecord { return r.spikes }

// Config returns the detection config this result was computed with.
func (r *AnalysisResult) Config() DetectionConfig { return r.config }

// Trace returns the trace this result was computed from.
func (r *AnalysisResult) Trace() *Trace { return r.trace }

// Provenance returns the run's provenance fields.
func (r *AnalysisResult) Provenance() Provenance { return r.provenance }

// StatisticNames returns the ordered statistic names; exposed on the result
// so scatter collaborators need only the result handle.
func (r *AnalysisResult) StatisticNames() []string { return StatisticNames() }

// MinPeakVoltage returns the smallest non-nil peak voltage across the run's
// spikes. ok is false when no spike has a peak. Persisted alongside the run
// summary for the file table's minimum-spike-mV column.
func (r *AnalysisResult) MinPeakVoltage() (float64, bool) {
	var min float64
	found := false
	for _, s := range r.spikes {
		if s.PeakVoltage == nil {
			continue
		}
		if !found || *s.PeakVoltage < min {
			min = *s.PeakVoltage
			found = true
		}
	}
	return min, found
}
