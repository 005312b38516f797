package spike

import (
	"math"
	"testing"
)

func TestNewTrace_Validation(t *testing.T) {
	cases := []struct {
		name     string
		interval float64
		offset   float64
		wantErr  bool
	}{
		{"valid", 0.001, 0, false},
		{"zero interval", 0, 0, true},
		{"negative interval", -0.1, 0, true},
		{"nan interval", math.NaN(), 0, true},
		{"inf offset", 0.001, math.Inf(1), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTrace([]float64{0, 1, 2}, tc.interval, tc.offset)
			if (err != nil) != tc.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestTrace_Derivative(t *testing.T) {
	tr, err := NewTrace([]float64{0, 1, 3, 3, 2}, 0.5, 0)
	if err != nil {
		t.Fatalf("NewTrace: %v", err)
	}
	want := []float64{0, 2, 4, 0, -2}
	got := tr.Derivative()
	if len(got) != len(want) {
		t.Fatalf("derivative length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("deriv[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTrace_Immutable(t *testing.T) {
	input := []float64{1, 2, 3}
	tr, err := NewTrace(input, 0.001, 0)
	if err != nil {
		t.Fatalf("NewTrace: %v", err)
	}
	input[0] = 99
	if tr.Voltage(0) != 1 {
		t.Error("mutating the input slice leaked into the trace")
	}
}

func TestTrace_TimeAt(t *testing.T) {
	tr, err := NewTrace(make([]float64, 10), 0.002, 1.5)
	if err != nil {
		t.Fatalf("NewTrace: %v", err)
	}
	if got := tr.TimeAt(0); got != 1.5 {
		t.Errorf("TimeAt(0) = %v, want 1.5", got)
	}
	if got := tr.TimeAt(5); math.Abs(got-1.51) > 1e-12 {
		t.Errorf("TimeAt(5) = %v, want 1.51", got)
	}
	if got := tr.SampleRate(); got != 500 {
		t.Errorf("SampleRate = %v, want 500", got)
	}
}

func TestTrace_Smoothed(t *testing.T) {
	spiky := []float64{0, 0, 0, 10, 0, 0, 0}
	tr, err := NewTrace(spiky, 0.001, 0)
	if err != nil {
		t.Fatalf("NewTrace: %v", err)
	}

	if tr.Smoothed(0) != tr {
		t.Error("width 0 should return the receiver unchanged")
	}

	sm := tr.Smoothed(2)
	if sm == tr {
		t.Fatal("positive width should return a new trace")
	}
	if sm.Len() != tr.Len() {
		t.Fatalf("smoothed length = %d, want %d", sm.Len(), tr.Len())
	}
	if sm.Voltage(3) >= 10 {
		t.Errorf("smoothing should lower the spike, got %v", sm.Voltage(3))
	}
	if sm.Voltage(2) <= 0 {
		t.Errorf("smoothing should spread into neighbors, got %v", sm.Voltage(2))
	}
	// The kernel is normalized, so total signal is roughly conserved away
	// from the edges.
	var sum float64
	for i := 0; i < sm.Len(); i++ {
		sum += sm.Voltage(i)
	}
	if math.Abs(sum-10) > 1 {
		t.Errorf("smoothed mass = %v, want ~10", sum)
	}
}
