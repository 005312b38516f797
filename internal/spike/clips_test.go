package spike

import (
	"math"
	"testing"
)

func TestExtractClips(t *testing.T) {
	result, err := RunDetection(twoSpikeTrace(t), baseConfig())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}

	clips := ExtractClips(result)
	if len(clips) != result.SpikeCount() {
		t.Fatalf("got %d clips, want %d", len(clips), result.SpikeCount())
	}
	cfg := result.Config()
	wantLen := cfg.PreWindow + cfg.PostWindow + 1
	for i, c := range clips {
		if c.SpikeIndex != i {
			t.Errorf("clip %d has SpikeIndex %d", i, c.SpikeIndex)
		}
		if !c.Complete {
			t.Errorf("clip %d should be complete away from trace edges", i)
		}
		if len(c.Voltages) != wantLen {
			t.Errorf("clip %d length = %d, want %d", i, len(c.Voltages), wantLen)
		}
	}
}

func TestExtractClips_EdgeTruncated(t *testing.T) {
	// Spike near the end of the recording: the clip is shorter and marked
	// incomplete.
	n := 200
	samples := make([]float64, n)
	for i := 195; i < n; i++ {
		samples[i] = float64(i - 194)
	}
	tr, err := NewTrace(samples, 0.001, 0)
	if err != nil {
		t.Fatalf("NewTrace: %v", err)
	}
	result, err := RunDetection(tr, baseConfig())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	if result.SpikeCount() != 1 {
		t.Fatalf("SpikeCount = %d, want 1", result.SpikeCount())
	}

	clips := ExtractClips(result)
	if clips[0].Complete {
		t.Error("edge clip should be marked incomplete")
	}
	if MeanClip(clips) != nil {
		t.Error("mean clip over only incomplete clips should be nil")
	}
}

func TestMeanClip(t *testing.T) {
	clips := []SpikeClip{
		{SpikeIndex: 0, Voltages: []float64{0, 2, 4}, Complete: true},
		{SpikeIndex: 1, Voltages: []float64{2, 4, 6}, Complete: true},
		{SpikeIndex: 2, Voltages: []float64{100}, Complete: false},
	}
	mean := MeanClip(clips)
	want := []float64{1, 3, 5}
	if len(mean) != len(want) {
		t.Fatalf("mean length = %d, want %d", len(mean), len(want))
	}
	for i := range want {
		if math.Abs(mean[i]-want[i]) > 1e-12 {
			t.Errorf("mean[%d] = %v, want %v", i, mean[i], want[i])
		}
	}
}
