package spike

import (
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/spike.report/internal/security"
)

// exportColumns is the CSV header for per-spike stat exports. Column order
// matches StatKinds so spreadsheets line up with the scatter dropdowns.
var exportColumns = append([]string{"spike_index", "onset_index", "onset_seconds"}, StatisticNames()...)

// WriteStatsCSV writes one row per spike with every named statistic.
// Undefined statistics (edge-truncated windows, first spike's ISI) are left
// as empty cells rather than zeros.
func WriteStatsCSV(w io.Writer, result *AnalysisResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportColumns); err != nil {
		return fmt.Errorf("writing export header: %w", err)
	}
	for _, rec := range result.Spikes() {
		row := []string{
			strconv.Itoa(rec.SpikeIndex),
			strconv.Itoa(rec.OnsetIndex),
			strconv.FormatFloat(rec.OnsetSeconds, 'g', -1, 64),
		}
		for _, k := range StatKinds() {
			if v, ok := rec.Stat(k); ok {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing spike %d: %w", rec.SpikeIndex, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// exportDoc is the JSON export envelope: provenance plus the full record
// set, enough to reconstruct every view without the original trace.
type exportDoc struct {
	Provenance Provenance    `json:"provenance"`
	SpikeCount int           `json:"spike_count"`
	Statistics []string      `json:"statistics"`
	Spikes     []SpikeRecord `json:"spikes"`
}

// WriteStatsJSON writes the gzip-compressed JSON export.
func WriteStatsJSON(w io.Writer, result *AnalysisResult) error {
	gz := gzip.NewWriter(w)
	enc := json.NewEncoder(gz)
	doc := exportDoc{
		Provenance: result.Provenance(),
		SpikeCount: result.SpikeCount(),
		Statistics: StatisticNames(),
		Spikes:     result.Spikes(),
	}
	if err := enc.Encode(doc); err != nil {
		gz.Close()
		return fmt.Errorf("encoding export: %w", err)
	}
	return gz.Close()
}

// ExportStats writes CSV or gzip JSON depending on the file extension
// (.csv or .json.gz). The destination directory must already exist; the file
// name is flattened to its sanitized base to keep exports inside exportDir.
func ExportStats(exportDir, name string, result *AnalysisResult) (string, error) {
	base := security.SanitizeFilename(filepath.Base(name))
	if base == "unknown" {
		return "", fmt.Errorf("invalid export filename %q", name)
	}
	path := filepath.Join(exportDir, base)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export %s: %w", path, err)
	}
	defer f.Close()

	switch {
	case strings.HasSuffix(base, ".json.gz"):
		err = WriteStatsJSON(f, result)
	case strings.HasSuffix(base, ".csv"):
		err = WriteStatsCSV(f, result)
	default:
		err = fmt.Errorf("unsupported export extension on %q", base)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}
