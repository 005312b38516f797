package monitor

import (
	"fmt"
	"image/color"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/spike.report/internal/httputil"
	"github.com/banshee-data/spike.report/internal/spike"
)

// buildTracePlot draws the full voltage trace with the detected peaks
// marked. Peaks rather than onsets are marked here because the PNG is meant
// for reports, where the extremum is the feature a reader looks for.
func buildTracePlot(result *spike.AnalysisResult, title string) (*plot.Plot, error) {
	trace := result.Trace()

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Vm (mV)"
	p.Add(plotter.NewGrid())

	samples := trace.Samples()
	pts := make(plotter.XYs, len(samples))
	for i, v := range samples {
		pts[i] = plotter.XY{X: trace.TimeAt(i), Y: v}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("trace line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("Vm", line)

	peaks := make(plotter.XYs, 0, result.SpikeCount())
	for _, rec := range result.Spikes() {
		if rec.PeakIndex == nil || rec.PeakVoltage == nil {
			continue
		}
		peaks = append(peaks, plotter.XY{X: trace.TimeAt(*rec.PeakIndex), Y: *rec.PeakVoltage})
	}
	if len(peaks) > 0 {
		sc, err := plotter.NewScatter(peaks)
		if err != nil {
			return nil, fmt.Errorf("peak scatter: %w", err)
		}
		sc.GlyphStyle.Color = color.RGBA{R: 255, G: 82, B: 82, A: 255}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add("peaks", sc)
	}

	return p, nil
}

// buildClipPlot overlays the complete spike clips in gray with the mean clip
// on top. Returns an error when no complete clip exists.
func buildClipPlot(result *spike.AnalysisResult, title string) (*plot.Plot, error) {
	trace := result.Trace()
	cfg := result.Config()
	clips := spike.ExtractClips(result)
	mean := spike.MeanClip(clips)
	if mean == nil {
		return nil, fmt.Errorf("no complete clips to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time From Onset (ms)"
	p.Y.Label.Text = "Vm (mV)"
	p.Add(plotter.NewGrid())

	msPerSample := trace.SampleInterval() * 1000
	offsetMs := -float64(cfg.PreWindow) * msPerSample

	for _, clip := range clips {
		if !clip.Complete {
			continue
		}
		pts := make(plotter.XYs, len(clip.Voltages))
		for i, v := range clip.Voltages {
			pts[i] = plotter.XY{X: offsetMs + float64(i)*msPerSample, Y: v}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("clip %d line: %w", clip.SpikeIndex, err)
		}
		line.Width = vg.Points(0.5)
		line.Color = color.RGBA{R: 158, G: 158, B: 158, A: 128}
		p.Add(line)
	}

	meanPts := make(plotter.XYs, len(mean))
	for i, v := range mean {
		meanPts[i] = plotter.XY{X: offsetMs + float64(i)*msPerSample, Y: v}
	}
	meanLine, err := plotter.NewLine(meanPts)
	if err != nil {
		return nil, fmt.Errorf("mean clip line: %w", err)
	}
	meanLine.Width = vg.Points(2)
	meanLine.Color = color.RGBA{R: 33, G: 150, B: 243, A: 255}
	p.Add(meanLine)
	p.Legend.Add("mean", meanLine)

	return p, nil
}

// SaveTracePlot writes the trace PNG to path.
func SaveTracePlot(result *spike.AnalysisResult, title, path string) error {
	p, err := buildTracePlot(result, title)
	if err != nil {
		return err
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("saving trace plot: %w", err)
	}
	return nil
}

// SaveClipPlot writes the spike clip overlay PNG to path.
func SaveClipPlot(result *spike.AnalysisResult, title, path string) error {
	p, err := buildClipPlot(result, title)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("saving clip plot: %w", err)
	}
	return nil
}

func (ws *WebServer) servePNG(w http.ResponseWriter, p *plot.Plot, width, height vg.Length) {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		// Headers are gone; nothing useful left to send.
		return
	}
}

// handleTracePlot renders the trace PNG for the current result.
func (ws *WebServer) handleTracePlot(w http.ResponseWriter, r *http.Request) {
	result := ws.session.Result()
	if result == nil {
		httputil.NotFound(w, "no analysis has been run")
		return
	}
	p, err := buildTracePlot(result, ws.recording())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("build plot: %v", err))
		return
	}
	ws.servePNG(w, p, 14*vg.Inch, 6*vg.Inch)
}

// handleClipPlot renders the spike clip overlay PNG for the current result.
func (ws *WebServer) handleClipPlot(w http.ResponseWriter, r *http.Request) {
	result := ws.session.Result()
	if result == nil {
		httputil.NotFound(w, "no analysis has been run")
		return
	}
	p, err := buildClipPlot(result, ws.recording())
	if err != nil {
		httputil.NotFound(w, fmt.Sprintf("build plot: %v", err))
		return
	}
	ws.servePNG(w, p, 8*vg.Inch, 6*vg.Inch)
}
