package spike

import (
	"errors"
	"testing"
)

func TestSession_RunAndSwap(t *testing.T) {
	s := NewSession()

	if _, err := s.Run(baseConfig()); !errors.Is(err, ErrNoTrace) {
		t.Fatalf("Run without trace err = %v, want ErrNoTrace", err)
	}

	s.SetTrace(twoSpikeTrace(t))
	first, err := s.Run(baseConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Result() != first {
		t.Error("successful run should publish its result")
	}

	// A failed run must leave the previous result in place.
	bad := baseConfig()
	bad.DVDTThreshold = -1
	if _, err := s.Run(bad); !IsConfigError(err) {
		t.Fatalf("bad run err = %v, want ConfigError", err)
	}
	if s.Result() != first {
		t.Error("failed run must not disturb the published result")
	}

	// A successful re-run supersedes, never mutates, the old result.
	second, err := s.Run(baseConfig())
	if err != nil {
		t.Fatalf("re-run: %v", err)
	}
	if s.Result() != second || second == first {
		t.Error("re-run should publish a fresh result")
	}
	if first.SpikeCount() != 2 {
		t.Error("superseded result should remain intact for holders of its reference")
	}
}

func TestSession_SetTraceDropsResult(t *testing.T) {
	s := NewSession()
	s.SetTrace(twoSpikeTrace(t))
	if _, err := s.Run(baseConfig()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	flat := traceFromDeriv(t, 100, 0.001, nil)
	s.SetTrace(flat)
	if s.Result() != nil {
		t.Error("loading a new trace must drop the old trace's result")
	}
	if s.Trace() != flat {
		t.Error("session should hold the newly loaded trace")
	}
}
