package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/spike.report/internal/httputil"
	"github.com/banshee-data/spike.report/internal/spike"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleTraceChart renders the session's trace as an HTML line chart with the
// detected onsets overlaid as scatter markers. This is a debugging-only
// endpoint (no auth) to eyeball a run without the full UI.
// Query params:
//   - max_points (optional; default 8000) to reduce payload size
func (ws *WebServer) handleTraceChart(w http.ResponseWriter, r *http.Request) {
	result := ws.session.Result()
	if result == nil {
		httputil.NotFound(w, "no analysis has been run")
		return
	}
	trace := result.Trace()
	if trace.Len() == 0 {
		httputil.NotFound(w, "trace is empty")
		return
	}

	maxPoints := 8000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	// Downsample by stride to stay within maxPoints
	stride := 1
	if trace.Len() > maxPoints {
		stride = int(math.Ceil(float64(trace.Len()) / float64(maxPoints)))
	}

	samples := trace.Samples()
	xs := make([]string, 0, len(samples)/stride+1)
	ys := make([]opts.LineData, 0, len(samples)/stride+1)
	for i := 0; i < len(samples); i += stride {
		xs = append(xs, strconv.FormatFloat(trace.TimeAt(i), 'f', 4, 64))
		ys = append(ys, opts.LineData{Value: samples[i]})
	}

	onsets := make([]opts.ScatterData, 0, result.SpikeCount())
	for _, rec := range result.Spikes() {
		onsets = append(onsets, opts.ScatterData{
			Value: []interface{}{strconv.FormatFloat(rec.OnsetSeconds, 'f', 4, 64), rec.ThresholdVoltage},
		})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Membrane Trace", Theme: "dark", Width: "1400px", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Membrane Voltage", Subtitle: fmt.Sprintf("recording=%s spikes=%d stride=%d", ws.recording(), result.SpikeCount(), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Vm (mV)", NameLocation: "middle", NameGap: 30}),
	)
	line.SetXAxis(xs).
		AddSeries("Vm", ys, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	scatter := charts.NewScatter()
	scatter.AddSeries("onsets", onsets,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}),
	)
	line.Overlap(scatter)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleScatterChart renders two statistics against each other, one point per
// spike. The view is projected through a CrossViewIndex over the conjunction
// of the two axes, so points never shift against spike indices when a spike
// lacks one of the statistics.
// Query params:
//   - x, y (statistic names; default Time To Peak (ms) vs Peak (mV))
func (ws *WebServer) handleScatterChart(w http.ResponseWriter, r *http.Request) {
	result := ws.session.Result()
	if result == nil {
		httputil.NotFound(w, "no analysis has been run")
		return
	}

	xName := r.URL.Query().Get("x")
	if xName == "" {
		xName = spike.StatTimeToPeakMs.Name()
	}
	yName := r.URL.Query().Get("y")
	if yName == "" {
		yName = spike.StatPeakVoltage.Name()
	}
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

	index := spike.Project(result, spike.HasStats(xKind, yKind))
	points := make([]opts.ScatterData, 0, index.Len())
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
		// Third dimension carries the spike index for the tooltip.
		points = append(points, opts.ScatterData{Value: []interface{}{xv, yv, rec.SpikeIndex}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Spike Statistics", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Spike Statistics", Subtitle: fmt.Sprintf("recording=%s plotted=%d of %d", ws.recording(), index.Len(), result.SpikeCount())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: xName, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName, NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("spikes", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render scatter chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
