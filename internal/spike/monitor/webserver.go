// Package monitor provides the HTTP surface over a spike analysis session:
// the recordings table, detection runs, per-spike statistics, filtered
// selections, and the debug charts.
package monitor

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/spike.report/internal/config"
	"github.com/banshee-data/spike.report/internal/db"
	"github.com/banshee-data/spike.report/internal/httputil"
	"github.com/banshee-data/spike.report/internal/monitoring"
	"github.com/banshee-data/spike.report/internal/security"
	"github.com/banshee-data/spike.report/internal/spike"
	storage "github.com/banshee-data/spike.report/internal/spike/storage/sqlite"
	"github.com/banshee-data/spike.report/internal/version"
)

// WebServer handles the HTTP interface for spike analysis.
// It provides endpoints for health checks, detection runs, and chart views.
type WebServer struct {
	address       string
	server        *http.Server
	session       *spike.Session
	store         *storage.AnalysisStore
	db            *db.DB
	defaults      *config.DetectionDefaults
	recordingsDir string
	exportDir     string

	// mu guards currentRecording: handleDetect rewrites it while the
	// analysis, chart and export handlers read it concurrently.
	mu               sync.RWMutex
	currentRecording string
}

// setRecording records the name of the recording behind the session's
// current result. Called only after a successful run, so readers never see a
// new name paired with a stale result.
func (ws *WebServer) setRecording(name string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.currentRecording = name
}

func (ws *WebServer) recording() string {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.currentRecording
}

// WebServerConfig contains configuration options for the web server
type WebServerConfig struct {
	Address       string
	Session       *spike.Session
	Store         *storage.AnalysisStore
	DB            *db.DB
	Defaults      *config.DetectionDefaults
	RecordingsDir string
	ExportDir     string
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(cfg WebServerConfig) *WebServer {
	ws := &WebServer{
		address:       cfg.Address,
		session:       cfg.Session,
		store:         cfg.Store,
		db:            cfg.DB,
		defaults:      cfg.Defaults,
		recordingsDir: cfg.RecordingsDir,
		exportDir:     cfg.ExportDir,
	}
	if ws.session == nil {
		ws.session = spike.NewSession()
	}
	if ws.defaults == nil {
		ws.defaults = config.EmptyDetectionDefaults()
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/recordings", ws.handleRecordings)
	mux.HandleFunc("/api/detect", ws.handleDetect)
	mux.HandleFunc("/api/analysis", ws.handleAnalysis)
	mux.HandleFunc("/api/scatter", ws.handleScatter)
	mux.HandleFunc("/api/select", ws.handleSelect)
	mux.HandleFunc("/api/export", ws.handleExport)
	mux.HandleFunc("/charts/trace", ws.handleTraceChart)
	mux.HandleFunc("/charts/scatter", ws.handleScatterChart)
	mux.HandleFunc("/plots/trace.png", ws.handleTracePlot)
	mux.HandleFunc("/plots/clip.png", ws.handleClipPlot)

	// Admin debugging routes (tailsql, backup) when a database is attached.
	if ws.db != nil {
		ws.db.AttachAdminRoutes(mux)
	}

	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// recordingEntry is one row of the recordings table: the file plus the
// summary of its newest persisted run, when one exists.
type recordingEntry struct {
	Name       string     `json:"name"`
	RunID      string     `json:"run_id,omitempty"`
	SpikeCount *int       `json:"spike_count,omitempty"`
	Threshold  *float64   `json:"dvdt_threshold,omitempty"`
	MinPeakMV  *float64   `json:"min_peak_mv,omitempty"`
	AnalyzedAt *time.Time `json:"analyzed_at,omitempty"`
}

// handleRecordings lists the CSV recordings in the recordings folder, merged
// with each file's latest persisted run summary.
func (ws *WebServer) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	names, err := spike.ScanRecordings(ws.recordingsDir)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("scan recordings: %v", err))
		return
	}

	latest := map[string]*storage.AnalysisRun{}
	if ws.store != nil {
		runs, err := ws.store.ListLatestRuns()
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("list runs: %v", err))
			return
		}
		for _, run := range runs {
			latest[run.Recording] = run
		}
	}

	entries := make([]recordingEntry, 0, len(names))
	for _, name := range names {
		entry := recordingEntry{Name: name}
		if run, ok := latest[name]; ok {
			count := run.SpikeCount
			threshold := run.DVDTThreshold
			at := run.AnalyzedAt
			entry.RunID = run.RunID
			entry.SpikeCount = &count
			entry.Threshold = &threshold
			entry.MinPeakMV = run.MinPeakMV
			entry.AnalyzedAt = &at
		}
		entries = append(entries, entry)
	}
	httputil.WriteJSONOK(w, entries)
}

// detectParams reads the optional per-run parameter overrides from the
// request, layered on top of the configured defaults.
func (ws *WebServer) detectParams(r *http.Request) (*config.DetectionDefaults, error) {
	overlay := *ws.defaults

	setFloat := func(field **float64, key string) error {
		v := r.FormValue(key)
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q", key, v)
		}
		*field = &f
		return nil
	}

	for _, p := range []struct {
		field **float64
		key   string
	}{
		{&overlay.DVDTThreshold, "dvdt_threshold"},
		{&overlay.ResetLevel, "reset_level"},
		{&overlay.RefractoryMs, "refractory_ms"},
		{&overlay.PreWindowMs, "pre_window_ms"},
		{&overlay.PostWindowMs, "post_window_ms"},
		{&overlay.MinPeakMV, "min_peak_mv"},
		{&overlay.SmoothingMs, "smoothing_ms"},
	} {
		if err := setFloat(p.field, p.key); err != nil {
			return nil, err
		}
	}
	if v := r.FormValue("reset_on_voltage"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid reset_on_voltage %q", v)
		}
		overlay.ResetOnVoltage = &b
	}
	if v := r.FormValue("peak_direction"); v != "" {
		overlay.PeakDirection = &v
	}

	if err := overlay.Validate(); err != nil {
		return nil, err
	}
	return &overlay, nil
}

// handleDetect loads a recording, runs detection with the merged parameters,
// publishes the result on the session, and persists the run.
func (ws *WebServer) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	recording := r.FormValue("recording")
	if recording == "" {
		httputil.BadRequest(w, "missing 'recording' parameter")
		return
	}
	recording = filepath.Base(recording)
	if !strings.EqualFold(filepath.Ext(recording), ".csv") {
		httputil.BadRequest(w, "recording must be a .csv file")
		return
	}

	params, err := ws.detectParams(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	path := filepath.Join(ws.recordingsDir, recording)
	if err := security.ValidatePathWithinDirectory(path, ws.recordingsDir); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid recording path: %v", err))
		return
	}

	trace, err := spike.LoadRecording(path)
	if err != nil {
		httputil.NotFound(w, fmt.Sprintf("load recording: %v", err))
		return
	}

	cfg, err := params.ToDetectionConfig(trace.SampleRate())
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("detection config: %v", err))
		return
	}

	ws.session.SetTrace(trace)
	result, err := ws.session.Run(cfg)
	if err != nil {
		if spike.IsConfigError(err) {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("detection: %v", err))
		return
	}
	ws.setRecording(recording)

	if ws.store != nil {
		if _, err := ws.store.SaveRun(recording, result); err != nil {
			monitoring.Logf("failed to persist run for %s: %v", recording, err)
		}
	}

	prov := result.Provenance()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"run_id":         prov.RunID,
		"analyzed_at":    prov.AnalyzedAt,
		"dvdt_threshold": prov.DVDTThreshold,
		"recording":      recording,
		"spike_count":    result.SpikeCount(),
	})
}

// analysisDoc is the /api/analysis response: the full result of the current
// session's run.
type analysisDoc struct {
	Recording  string              `json:"recording"`
	Provenance spike.Provenance    `json:"provenance"`
	SpikeCount int                 `json:"spike_count"`
	Statistics []string            `json:"statistics"`
	Summary    []spike.StatSummary `json:"summary"`
	Spikes     []spike.SpikeRecord `json:"spikes"`
}

func (ws *WebServer) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	result := ws.session.Result()
	if result == nil {
		httputil.NotFound(w, "no analysis has been run")
		return
	}
	httputil.WriteJSONOK(w, analysisDoc{
		Recording:  ws.recording(),
		Provenance: result.Provenance(),
		SpikeCount: result.SpikeCount(),
		Statistics: result.StatisticNames(),
		Summary:    spike.Summarize(result),
		Spikes:     result.Spikes(),
	})
}

// scatterPoint is one point of the /api/scatter response. SpikeIndex is the
// spike's ordinal index in the unfiltered result; clients must select through
// it, never through the point's position in the array.
type scatterPoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	SpikeIndex int     `json:"spike_index"`
}

// handleScatter returns a statistic pair per spike as JSON, projected through
// a CrossViewIndex over the conjunction of both axes plus any filter
// parameters (peak, stat, min_t, max_t).
func (ws *WebServer) handleScatter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	result := ws.session.Result()
	if result == nil {
		httputil.NotFound(w, "no analysis has been run")
		return
	}

	xName, yName := r.URL.Query().Get("x"), r.URL.Query().Get("y")
	xKind, ok := spike.StatKindByName(xName)
	if !ok {
		httputil.BadRequest(w, fmt.Sprintf("unknown statistic %q", xName))
		return
	}
	yKind, ok := spike.StatKindByName(yName)
	if !ok {
		httputil.BadRequest(w, fmt.Sprintf("unknown statistic %q", yName))
		return
	}

	extra, err := selectionPredicate(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	axes := spike.HasStats(xKind, yKind)
	keep := axes
	if extra != nil {
		keep = func(rec spike.SpikeRecord) bool { return axes(rec) && extra(rec) }
	}

	index := spike.Project(result, keep)
	points := make([]scatterPoint, 0, index.Len())
	for pos := 0; pos < index.Len(); pos++ {
		orig, err := index.OriginalIndex(pos)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		rec, err := result.SpikeAt(orig)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		xv, _ := rec.Stat(xKind)
		yv, _ := rec.Stat(yKind)
		points = append(points, scatterPoint{X: xv, Y: yv, SpikeIndex: rec.SpikeIndex})
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"x":        xName,
		"y":        yName,
		"total":    result.SpikeCount(),
		"filtered": index.Len(),
		"points":   points,
	})
}

// selectionPredicate builds the filter predicate from query parameters:
// peak=true, stat=<name> (repeatable), min_t/max_t in seconds.
func selectionPredicate(r *http.Request) (spike.Predicate, error) {
	var preds []spike.Predicate

	if v := r.URL.Query().Get("peak"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid peak %q", v)
		}
		if b {
			preds = append(preds, spike.HasPeak)
		}
	}

	var kinds []spike.StatKind
	for _, name := range r.URL.Query()["stat"] {
		k, ok := spike.StatKindByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown statistic %q", name)
		}
		kinds = append(kinds, k)
	}
	if len(kinds) > 0 {
		preds = append(preds, spike.HasStats(kinds...))
	}

	minT, maxT := r.URL.Query().Get("min_t"), r.URL.Query().Get("max_t")
	if minT != "" || maxT != "" {
		lo, hi := 0.0, math.MaxFloat64
		var err error
		if minT != "" {
			if lo, err = strconv.ParseFloat(minT, 64); err != nil {
				return nil, fmt.Errorf("invalid min_t %q", minT)
			}
		}
		if maxT != "" {
			if hi, err = strconv.ParseFloat(maxT, 64); err != nil {
				return nil, fmt.Errorf("invalid max_t %q", maxT)
			}
		}
		preds = append(preds, spike.InTimeRange(lo, hi))
	}

	if len(preds) == 0 {
		return nil, nil
	}
	return func(rec spike.SpikeRecord) bool {
		for _, p := range preds {
			if !p(rec) {
				return false
			}
		}
		return true
	}, nil
}

// handleSelect projects the current result through the requested filter and
// returns the bidirectional position mapping. With pos=<n> it additionally
// resolves that filtered position back to a spike record, which is how chart
// click-throughs land on the right spike.
func (ws *WebServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	result := ws.session.Result()
	if result == nil {
		httputil.NotFound(w, "no analysis has been run")
		return
	}

	keep, err := selectionPredicate(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	index := spike.Project(result, keep)

	toOriginal := make([]int, index.Len())
	for pos := range toOriginal {
		orig, err := index.OriginalIndex(pos)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		toOriginal[pos] = orig
	}

	resp := map[string]interface{}{
		"total":       result.SpikeCount(),
		"filtered":    index.Len(),
		"to_original": toOriginal,
	}

	if v := r.URL.Query().Get("pos"); v != "" {
		pos, convErr := strconv.Atoi(v)
		if convErr != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid pos %q", v))
			return
		}
		orig, err := index.OriginalIndex(pos)
		if err != nil {
			httputil.BadRequest(w, fmt.Sprintf("pos %d outside filtered view", pos))
			return
		}
		rec, err := result.SpikeAt(orig)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		resp["selected"] = rec
	}

	httputil.WriteJSONOK(w, resp)
}

// handleExport writes the current result to the export folder as CSV or
// gzipped JSON, selected by the requested file extension.
func (ws *WebServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	result := ws.session.Result()
	if result == nil {
		httputil.NotFound(w, "no analysis has been run")
		return
	}
	name := r.FormValue("name")
	if name == "" {
		current := ws.recording()
		name = strings.TrimSuffix(current, filepath.Ext(current)) + "_stats.csv"
	}
	path, err := spike.ExportStats(ws.exportDir, name, result)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("export: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"path": path})
}
