package spike

import (
	"errors"
	"sync"
)

// ErrNoTrace is returned by Session.Run before a trace has been loaded.
var ErrNoTrace = errors.New("no trace loaded")

// Session owns the analysis state for one recording: at most one Trace and
// at most one AnalysisResult. There is deliberately no package-level
// "current analysis" — every consumer goes through a session handle. The
// result reference is replaced atomically on re-detection; a failed run
// leaves the previous result untouched, so concurrent readers only ever see
// a fully built result.
type Session struct {
	mu     sync.RWMutex
	trace  *Trace
	result *AnalysisResult
}

// NewSession returns an empty session.
func NewSession() *Session { return &Session{} }

// SetTrace installs the trace for this session and drops any result computed
// from a previous trace.
func (s *Session) SetTrace(t *Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trace = t
	s.result = nil
}

// Trace returns the session's trace, or nil before SetTrace.
func (s *Session) Trace() *Trace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trace
}

// Run executes a detection run against the session's trace and, on success,
// publishes the new result. On error (ConfigError, or ErrNoTrace) the
// previously published result remains current.
func (s *Session) Run(cfg DetectionConfig) (*AnalysisResult, error) {
	s.mu.RLock()
	trace := s.trace
	s.mu.RUnlock()
	if trace == nil {
		return nil, ErrNoTrace
	}

	// Build outside the lock; detection is bounded and fast, but there is
	// no reason to hold readers off while it runs.
	result, err := RunDetection(trace, cfg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trace != trace {
		// The trace was swapped while we were computing; the result
		// belongs to a recording this session no longer holds.
		return nil, ErrNoTrace
	}
	s.result = result
	return result, nil
}

// Result returns the most recently published result, or nil if no successful
// run has happened for the current trace.
func (s *Session) Result() *AnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}
