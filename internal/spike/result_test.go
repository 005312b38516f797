package spike

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func twoSpikeTrace(t *testing.T) *Trace {
	t.Helper()
	deriv := map[int]float64{}
	for i := 101; i <= 105; i++ {
		deriv[i] = 200
	}
	deriv[110] = -1500
	for i := 501; i <= 505; i++ {
		deriv[i] = 200
	}
	deriv[510] = -1500
	return traceFromDeriv(t, 1000, 0.001, deriv)
}

func TestRunDetection_TwoSpikes(t *testing.T) {
	tr := twoSpikeTrace(t)
	result, err := RunDetection(tr, baseConfig())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}

	if result.SpikeCount() != 2 {
		t.Fatalf("SpikeCount = %d, want 2", result.SpikeCount())
	}
	first, err := result.SpikeAt(0)
	if err != nil {
		t.Fatalf("SpikeAt(0): %v", err)
	}
	second, err := result.SpikeAt(1)
	if err != nil {
		t.Fatalf("SpikeAt(1): %v", err)
	}
	if first.OnsetIndex != 101 || second.OnsetIndex != 501 {
		t.Errorf("onsets = (%d, %d), want (101, 501)", first.OnsetIndex, second.OnsetIndex)
	}
	if first.SpikeIndex != 0 || second.SpikeIndex != 1 {
		t.Errorf("spike indices = (%d, %d), want (0, 1)", first.SpikeIndex, second.SpikeIndex)
	}

	prov := result.Provenance()
	if prov.RunID == "" {
		t.Error("provenance RunID is empty")
	}
	if prov.AnalyzedAt.IsZero() {
		t.Error("provenance AnalyzedAt is zero")
	}
	if prov.DVDTThreshold != baseConfig().DVDTThreshold {
		t.Errorf("provenance threshold = %v, want %v", prov.DVDTThreshold, baseConfig().DVDTThreshold)
	}
	if result.Trace() != tr {
		t.Error("result should keep a back-reference to its trace")
	}
}

func TestRunDetection_EmptyOutcomes(t *testing.T) {
	empty, err := NewTrace(nil, 0.001, 0)
	if err != nil {
		t.Fatalf("NewTrace: %v", err)
	}
	flat := traceFromDeriv(t, 500, 0.001, nil)

	for name, tr := range map[string]*Trace{"zero-length": empty, "all-flat": flat} {
		result, err := RunDetection(tr, baseConfig())
		if err != nil {
			t.Errorf("%s: unexpected error %v", name, err)
			continue
		}
		if result.SpikeCount() != 0 {
			t.Errorf("%s: SpikeCount = %d, want 0", name, result.SpikeCount())
		}
	}
}

func TestRunDetection_Idempotent(t *testing.T) {
	tr := twoSpikeTrace(t)
	cfg := baseConfig()

	a, err := RunDetection(tr, cfg)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := RunDetection(tr, cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if diff := cmp.Diff(a.Spikes(), b.Spikes()); diff != "" {
		t.Errorf("re-run produced different records (-first +second):\n%s", diff)
	}
}

func TestRunDetection_ConfigError(t *testing.T) {
	tr := twoSpikeTrace(t)
	cfg := baseConfig()
	cfg.DVDTThreshold = -1

	result, err := RunDetection(tr, cfg)
	if result != nil {
		t.Error("no result should be produced on a config error")
	}
	if !IsConfigError(err) {
		t.Errorf("got err %v, want ConfigError", err)
	}
}

func TestSpikeAt_OutOfRange(t *testing.T) {
	result, err := RunDetection(twoSpikeTrace(t), baseConfig())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	for _, i := range []int{-1, 2, 100} {
		if _, err := result.SpikeAt(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("SpikeAt(%d) err = %v, want ErrIndexOutOfRange", i, err)
		}
	}
}

func TestMinPeakVoltage(t *testing.T) {
	result, err := RunDetection(twoSpikeTrace(t), baseConfig())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	min, ok := result.MinPeakVoltage()
	if !ok {
		t.Fatal("expected a defined minimum peak voltage")
	}
	// Both ramps rise by 1 mV; the second starts from the plateau left by
	// the first drop at sample 110.
	if min <= 0 {
		t.Errorf("MinPeakVoltage = %v, want positive", min)
	}
}

func TestRunDetection_Smoothing(t *testing.T) {
	tr := twoSpikeTrace(t)
	cfg := baseConfig()
	cfg.SmoothingWidth = 3

	result, err := RunDetection(tr, cfg)
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	if result.SpikeCount() == 0 {
		t.Fatal("smoothed run detected no spikes")
	}
	// The result keeps the raw trace; smoothing is internal to the run.
	if result.Trace() != tr {
		t.Error("result should retain the original trace")
	}

	// The packaged run must agree with the exported pieces run separately.
	onsets, err := DetectOnsets(tr, cfg)
	if err != nil {
		t.Fatalf("DetectOnsets: %v", err)
	}
	records, err := ComputeSpikeStats(tr, onsets, cfg)
	if err != nil {
		t.Fatalf("ComputeSpikeStats: %v", err)
	}
	if diff := cmp.Diff(records, result.Spikes()); diff != "" {
		t.Errorf("spike records diverge (-pieces +run):\n%s", diff)
	}
}
