package spike

import (
	"errors"
	"math"
	"testing"
)

// triangleTrace builds a flat trace with one triangular spike: voltage rises
// 0→10 over samples 100-110 and falls back to 0 over 110-120.
func triangleTrace(t *testing.T, n int) *Trace {
	t.Helper()
	samples := make([]float64, n)
	for i := 100; i <= 110; i++ {
		samples[i] = float64(i - 100)
	}
	for i := 111; i <= 120; i++ {
		samples[i] = float64(120 - i)
	}
	tr, err := NewTrace(samples, 0.001, 0)
	if err != nil {
		t.Fatalf("NewTrace: %v", err)
	}
	return tr
}

func TestComputeSpikeStats_FullWindow(t *testing.T) {
	tr := triangleTrace(t, 400)
	cfg := baseConfig()

	records, err := ComputeSpikeStats(tr, []int{101}, cfg)
	if err != nil {
		t.Fatalf("ComputeSpikeStats: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]

	if rec.SpikeIndex != 0 || rec.OnsetIndex != 101 {
		t.Errorf("identity = (%d, %d), want (0, 101)", rec.SpikeIndex, rec.OnsetIndex)
	}
	if rec.ThresholdVoltage != 1 {
		t.Errorf("ThresholdVoltage = %v, want 1", rec.ThresholdVoltage)
	}
	if rec.PeakIndex == nil || *rec.PeakIndex != 110 {
		t.Fatalf("PeakIndex = %v, want 110", rec.PeakIndex)
	}
	if *rec.PeakVoltage != 10 {
		t.Errorf("PeakVoltage = %v, want 10", *rec.PeakVoltage)
	}
	if *rec.PeakHeight != 9 {
		t.Errorf("PeakHeight = %v, want 9", *rec.PeakHeight)
	}
	if got := *rec.TimeToPeakMs; math.Abs(got-9) > 1e-9 {
		t.Errorf("TimeToPeakMs = %v, want 9", got)
	}
	// Slope is 1 mV per 1 ms sample: 1000 mV/s.
	if math.Abs(rec.MaxDVDT-1000) > 1e-9 {
		t.Errorf("MaxDVDT = %v, want 1000", rec.MaxDVDT)
	}
	// Half height = 1 + 0.5*(10-1) = 5.5. Rising crossing at 106
	// (v=6 is the first sample at or above 5.5 walking back from the
	// peak), falling at 115 (v=5): width = 9 ms.
	if rec.HalfWidthMs == nil {
		t.Fatal("HalfWidthMs = nil, want defined for a fully contained window")
	}
	if got := *rec.HalfWidthMs; math.Abs(got-9) > 1e-9 {
		t.Errorf("HalfWidthMs = %v, want 9", got)
	}
	if rec.ISIMs != nil || rec.InstantFreqHz != nil {
		t.Error("first spike must have nil ISI and frequency")
	}
}

func TestComputeSpikeStats_PostWindowTruncated(t *testing.T) {
	// Ramp beginning 5 samples before the trace end; the 20-sample post
	// window overruns. Onset, peak and max dV/dt stay defined; half width
	// is nil.
	n := 200
	samples := make([]float64, n)
	for i := 195; i < n; i++ {
		samples[i] = float64(i - 194)
	}
	tr, err := NewTrace(samples, 0.001, 0)
	if err != nil {
		t.Fatalf("NewTrace: %v", err)
	}

	cfg := baseConfig()
	cfg.PostWindow = 20
	records, err := ComputeSpikeStats(tr, []int{195}, cfg)
	if err != nil {
		t.Fatalf("ComputeSpikeStats: %v", err)
	}
	rec := records[0]

	if rec.PeakIndex == nil || *rec.PeakIndex != 199 {
		t.Fatalf("PeakIndex = %v, want 199 (clipped-window peak)", rec.PeakIndex)
	}
	if math.Abs(rec.MaxDVDT-1000) > 1e-9 {
		t.Errorf("MaxDVDT = %v, want 1000", rec.MaxDVDT)
	}
	if rec.HalfWidthMs != nil {
		t.Errorf("HalfWidthMs = %v, want nil for a truncated post window", *rec.HalfWidthMs)
	}
}

func TestComputeSpikeStats_PreWindowTruncated(t *testing.T) {
	// Symmetric handling: a spike right at the trace start loses its
	// window-dependent fields but not its peak.
	n := 400
	samples := make([]float64, n)
	for i := 3; i <= 13; i++ {
		samples[i] = float64(i - 3)
	}
	for i := 14; i <= 23; i++ {
		samples[i] = float64(23 - i)
	}
	tr, err := NewTrace(samples, 0.001, 0)
	if err != nil {
		t.Fatalf("NewTrace: %v", err)
	}

	cfg := baseConfig() // PreWindow 10 overruns the start from onset 4
	records, err := ComputeSpikeStats(tr, []int{4}, cfg)
	if err != nil {
		t.Fatalf("ComputeSpikeStats: %v", err)
	}
	rec := records[0]
	if rec.PeakIndex == nil || *rec.PeakIndex != 13 {
		t.Fatalf("PeakIndex = %v, want 13", rec.PeakIndex)
	}
	if rec.HalfWidthMs != nil {
		t.Errorf("HalfWidthMs = %v, want nil for a truncated pre window", *rec.HalfWidthMs)
	}
}

func TestComputeSpikeStats_ISIAndFrequency(t *testing.T) {
	deriv := map[int]float64{}
	for i := 101; i <= 105; i++ {
		deriv[i] = 200
	}
	deriv[110] = -1500
	for i := 501; i <= 505; i++ {
		deriv[i] = 200
	}
	tr := traceFromDeriv(t, 1000, 0.001, deriv)

	records, err := ComputeSpikeStats(tr, []int{101, 501}, baseConfig())
	if err != nil {
		t.Fatalf("ComputeSpikeStats: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	second := records[1]
	if second.ISIMs == nil || math.Abs(*second.ISIMs-400) > 1e-9 {
		t.Fatalf("ISIMs = %v, want 400", second.ISIMs)
	}
	if second.InstantFreqHz == nil || math.Abs(*second.InstantFreqHz-2.5) > 1e-9 {
		t.Errorf("InstantFreqHz = %v, want 2.5", second.InstantFreqHz)
	}
}

func TestComputeSpikeStats_InvalidConfig(t *testing.T) {
	tr := triangleTrace(t, 400)
	cfg := baseConfig()
	cfg.PostWindow = 0
	if _, err := ComputeSpikeStats(tr, []int{101}, cfg); !IsConfigError(err) {
		t.Errorf("got err %v, want ConfigError", err)
	}
}

func TestStatAccessors(t *testing.T) {
	tr := triangleTrace(t, 400)
	records, err := ComputeSpikeStats(tr, []int{101}, baseConfig())
	if err != nil {
		t.Fatalf("ComputeSpikeStats: %v", err)
	}
	rec := records[0]

	if v, ok := rec.Stat(StatPeakVoltage); !ok || v != 10 {
		t.Errorf("StatPeakVoltage = (%v, %v), want (10, true)", v, ok)
	}
	if _, ok := rec.Stat(StatISIMs); ok {
		t.Error("StatISIMs should be undefined on the first spike")
	}

	names := StatisticNames()
	if len(names) != int(numStatKinds) {
		t.Fatalf("got %d statistic names, want %d", len(names), numStatKinds)
	}
	for _, name := range names {
		k, ok := StatKindByName(name)
		if !ok {
			t.Errorf("StatKindByName(%q) failed", name)
			continue
		}
		if k.Name() != name {
			t.Errorf("round-trip of %q gave %q", name, k.Name())
		}
	}
}

func TestComputeSpikeStats_OnsetOutOfRange(t *testing.T) {
	tr := triangleTrace(t, 400)
	for _, onsets := range [][]int{{-1}, {400}, {101, 999}} {
		if _, err := ComputeSpikeStats(tr, onsets, baseConfig()); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("ComputeSpikeStats(%v) err = %v, want ErrIndexOutOfRange", onsets, err)
		}
	}
}
