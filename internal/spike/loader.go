package spike

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// LoadTrace wraps NewTrace under the name the file-loading collaborator
// consumes.
func LoadTrace(samples []float64, sampleInterval, startOffset float64) (*Trace, error) {
	return NewTrace(samples, sampleInterval, startOffset)
}

// ReadRecordingCSV parses a two-column recording: time in seconds, voltage
// in millivolts, with an optional header row. The sample interval is taken
// from the first two time values and the start offset from the first row.
func ReadRecordingCSV(r io.Reader) (*Trace, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var times, volts []float64
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading recording: %w", err)
		}
		line++
		if len(row) < 2 {
			return nil, fmt.Errorf("recording line %d: expected 2 columns, got %d", line, len(row))
		}
		t, errT := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		v, errV := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if errT != nil || errV != nil {
			if line == 1 {
				// Header row ("s,mV").
				continue
			}
			return nil, fmt.Errorf("recording line %d: non-numeric sample %q,%q", line, row[0], row[1])
		}
		times = append(times, t)
		volts = append(volts, v)
	}

	if len(times) == 0 {
		return NewTrace(nil, 1, 0)
	}
	if len(times) == 1 {
		return NewTrace(volts, 1, times[0])
	}

	interval := times[1] - times[0]
	if interval <= 0 {
		return nil, fmt.Errorf("recording time column is not increasing (interval %v)", interval)
	}
	return NewTrace(volts, interval, times[0])
}

// LoadRecording reads a CSV recording from disk.
func LoadRecording(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording %s: %w", path, err)
	}
	defer f.Close()

	trace, err := ReadRecordingCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parsing recording %s: %w", path, err)
	}
	return trace, nil
}

// ScanRecordings lists the CSV recordings in dir, sorted by name. Only the
// file names are returned; traces load lazily when a recording is analyzed.
func ScanRecordings(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning recordings dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
