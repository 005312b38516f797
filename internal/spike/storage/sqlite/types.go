// Package sqlite persists analysis runs and their per-spike statistics.
// The schema lives in migrations/ and is applied through internal/db.
package sqlite

import (
	"encoding/json"
	"strings"
	"time"
)

// AnalysisRun is the persisted summary of one detection run over one
// recording. These are exactly the read-only fields the file table shows
// per recording; they are written once when the run completes and never
// recomputed from the spike rows.
type AnalysisRun struct {
	ID            int64           `json:"id"`
	RunID         string          `json:"run_id"`
	Recording     string          `json:"recording"`
	DVDTThreshold float64         `json:"dvdt_threshold"`
	SpikeCount    int             `json:"spike_count"`
	MinPeakMV     *float64        `json:"min_peak_mv,omitempty"`
	ParamsJSON    json.RawMessage `json:"params_json,omitempty"`
	AnalyzedAt    time.Time       `json:"analyzed_at"`
}

// isSQLiteBusy reports whether err is a transient SQLITE_BUSY condition
// worth retrying.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs fn, retrying with a short backoff while it fails with a
// busy error. Concurrent writers on a WAL database surface as SQLITE_BUSY
// rather than blocking, so short retries are the expected handling.
func retryOnBusy(fn func() error) error {
	const maxAttempts = 5
	backoff := 10 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(); !isSQLiteBusy(err) {
			return err
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

// nullFloat converts an optional float to a driver-friendly value.
func nullFloat(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

// nullInt converts an optional int to a driver-friendly value.
func nullInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
