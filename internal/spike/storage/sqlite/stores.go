package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/spike.report/internal/spike"
)

// AnalysisStore provides persistence for analysis runs and their spikes.
type AnalysisStore struct {
	db *sql.DB
}

// NewAnalysisStore creates an AnalysisStore backed by the given database.
func NewAnalysisStore(db *sql.DB) *AnalysisStore {
	return &AnalysisStore{db: db}
}

// SaveRun persists a completed detection run: one summary row plus one row
// per spike, inside a single transaction so readers never see a run without
// its spikes.
func (s *AnalysisStore) SaveRun(recording string, result *spike.AnalysisResult) (*AnalysisRun, error) {
	prov := result.Provenance()

	params, err := json.Marshal(result.Config())
	if err != nil {
		return nil, fmt.Errorf("marshalling run params: %w", err)
	}

	run := &AnalysisRun{
		RunID:         prov.RunID,
		Recording:     recording,
		DVDTThreshold: prov.DVDTThreshold,
		SpikeCount:    result.SpikeCount(),
		ParamsJSON:    params,
		AnalyzedAt:    prov.AnalyzedAt,
	}
	if min, ok := result.MinPeakVoltage(); ok {
		run.MinPeakMV = &min
	}

	err = retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		res, err := tx.Exec(`
			INSERT INTO analysis_runs (
				run_id, recording, dvdt_threshold, spike_count,
				min_peak_mv, params_json, analyzed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.Recording, run.DVDTThreshold, run.SpikeCount,
			nullFloat(run.MinPeakMV), string(run.ParamsJSON),
			run.AnalyzedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
		run.ID, err = res.LastInsertId()
		if err != nil {
			return err
		}

		for _, rec := range result.Spikes() {
			if _, err := tx.Exec(`
				INSERT INTO analysis_spikes (
					run_id, spike_index, onset_index, onset_seconds,
					threshold_voltage, max_dvdt, peak_index, peak_voltage,
					peak_height, time_to_peak_ms, half_width_ms,
					isi_ms, instant_freq_hz
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.RunID, rec.SpikeIndex, rec.OnsetIndex, rec.OnsetSeconds,
				rec.ThresholdVoltage, rec.MaxDVDT, nullInt(rec.PeakIndex),
				nullFloat(rec.PeakVoltage), nullFloat(rec.PeakHeight),
				nullFloat(rec.TimeToPeakMs), nullFloat(rec.HalfWidthMs),
				nullFloat(rec.ISIMs), nullFloat(rec.InstantFreqHz),
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("saving run %s for %s: %w", run.RunID, recording, err)
	}
	return run, nil
}

// LatestRun returns the most recent run summary for a recording, or nil
// when the recording has never been analyzed.
func (s *AnalysisStore) LatestRun(recording string) (*AnalysisRun, error) {
	row := s.db.QueryRow(`
		SELECT id, run_id, recording, dvdt_threshold, spike_count,
		       min_peak_mv, params_json, analyzed_at
		FROM analysis_runs
		WHERE recording = ?
		ORDER BY analyzed_at DESC, id DESC
		LIMIT 1`, recording)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest run for %s: %w", recording, err)
	}
	return run, nil
}

// ListLatestRuns returns the newest run summary per recording, ordered by
// recording name. This is the file table's backing query.
func (s *AnalysisStore) ListLatestRuns() ([]*AnalysisRun, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, recording, dvdt_threshold, spike_count,
		       min_peak_mv, params_json, analyzed_at
		FROM analysis_runs
		WHERE id IN (
			SELECT MAX(id) FROM analysis_runs GROUP BY recording
		)
		ORDER BY recording`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SpikesForRun returns a run's spike records in spike-index order.
func (s *AnalysisStore) SpikesForRun(runID string) ([]spike.SpikeRecord, error) {
	rows, err := s.db.Query(`
		SELECT spike_index, onset_index, onset_seconds, threshold_voltage,
		       max_dvdt, peak_index, peak_voltage, peak_height,
		       time_to_peak_ms, half_width_ms, isi_ms, instant_freq_hz
		FROM analysis_spikes
		WHERE run_id = ?
		ORDER BY spike_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading spikes for run %s: %w", runID, err)
	}
	defer rows.Close()

	var records []spike.SpikeRecord
	for rows.Next() {
		var (
			rec       spike.SpikeRecord
			peakIdx   sql.NullInt64
			peakV     sql.NullFloat64
			peakH     sql.NullFloat64
			ttp       sql.NullFloat64
			halfWidth sql.NullFloat64
			isi       sql.NullFloat64
			freq      sql.NullFloat64
		)
		if err := rows.Scan(
			&rec.SpikeIndex, &rec.OnsetIndex, &rec.OnsetSeconds,
			&rec.ThresholdVoltage, &rec.MaxDVDT, &peakIdx, &peakV, &peakH,
			&ttp, &halfWidth, &isi, &freq,
		); err != nil {
			return nil, fmt.Errorf("scanning spike: %w", err)
		}
		if peakIdx.Valid {
			v := int(peakIdx.Int64)
			rec.PeakIndex = &v
		}
		rec.PeakVoltage = floatOrNil(peakV)
		rec.PeakHeight = floatOrNil(peakH)
		rec.TimeToPeakMs = floatOrNil(ttp)
		rec.HalfWidthMs = floatOrNil(halfWidth)
		rec.ISIMs = floatOrNil(isi)
		rec.InstantFreqHz = floatOrNil(freq)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteRunsForRecording removes all persisted runs (and their spikes) for a
// recording, used when the recording file is removed from the folder.
func (s *AnalysisStore) DeleteRunsForRecording(recording string) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`
			DELETE FROM analysis_spikes WHERE run_id IN (
				SELECT run_id FROM analysis_runs WHERE recording = ?
			)`, recording); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM analysis_runs WHERE recording = ?`, recording); err != nil {
			return err
		}
		return tx.Commit()
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*AnalysisRun, error) {
	var (
		run        AnalysisRun
		minPeak    sql.NullFloat64
		paramsStr  sql.NullString
		analyzedAt string
	)
	if err := row.Scan(
		&run.ID, &run.RunID, &run.Recording, &run.DVDTThreshold,
		&run.SpikeCount, &minPeak, &paramsStr, &analyzedAt,
	); err != nil {
		return nil, err
	}
	run.MinPeakMV = floatOrNil(minPeak)
	if paramsStr.Valid {
		run.ParamsJSON = []byte(paramsStr.String)
	}
	t, err := time.Parse(time.RFC3339Nano, analyzedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing analyzed_at %q: %w", analyzedAt, err)
	}
	run.AnalyzedAt = t
	return &run, nil
}

func floatOrNil(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
