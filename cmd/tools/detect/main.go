// Package main provides a batch spike detection tool. It runs the threshold
// detector over one recording or a whole folder and writes per-spike stat
// exports and report PNGs without the HTTP server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/spike.report/internal/config"
	"github.com/banshee-data/spike.report/internal/spike"
	"github.com/banshee-data/spike.report/internal/spike/monitor"
)

var (
	input      = flag.String("input", "", "Recording CSV file or folder of recordings")
	outputDir  = flag.String("output", "exports", "Folder exports are written to")
	configPath = flag.String("config", config.DefaultConfigPath, "Detection defaults JSON file")
	jsonOut    = flag.Bool("json", false, "Write gzipped JSON exports instead of CSV")
	plots      = flag.Bool("plots", false, "Also write trace and clip PNGs per recording")
	verbose    = flag.Bool("verbose", false, "Log per-spike statistics")
)

func main() {
	flag.Parse()
	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	defaults := config.EmptyDetectionDefaults()
	if _, err := os.Stat(*configPath); err == nil {
		defaults, err = config.LoadDetectionDefaults(*configPath)
		if err != nil {
			log.Fatalf("Failed to load detection defaults: %v", err)
		}
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	recordings, err := collectRecordings(*input)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(recordings) == 0 {
		log.Fatalf("No CSV recordings found under %s", *input)
	}

	failures := 0
	for _, path := range recordings {
		if err := analyzeOne(path, defaults); err != nil {
			log.Printf("FAILED %s: %v", path, err)
			failures++
		}
	}
	if failures > 0 {
		log.Fatalf("%d of %d recordings failed", failures, len(recordings))
	}
}

func collectRecordings(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", input, err)
	}
	if !info.IsDir() {
		return []string{input}, nil
	}
	names, err := spike.ScanRecordings(input)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(input, name)
	}
	return paths, nil
}

func analyzeOne(path string, defaults *config.DetectionDefaults) error {
	trace, err := spike.LoadRecording(path)
	if err != nil {
		return err
	}
	cfg, err := defaults.ToDetectionConfig(trace.SampleRate())
	if err != nil {
		return err
	}
	result, err := spike.RunDetection(trace, cfg)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ext := ".csv"
	if *jsonOut {
		ext = ".json.gz"
	}
	exportPath, err := spike.ExportStats(*outputDir, base+"_stats"+ext, result)
	if err != nil {
		return err
	}
	log.Printf("%s: %d spikes -> %s", filepath.Base(path), result.SpikeCount(), exportPath)

	if *verbose {
		for _, rec := range result.Spikes() {
			line := fmt.Sprintf("  spike %d onset=%.4fs", rec.SpikeIndex, rec.OnsetSeconds)
			for _, k := range spike.StatKinds() {
				if v, ok := rec.Stat(k); ok {
					line += fmt.Sprintf(" %s=%.3f", k.Name(), v)
				}
			}
			log.Print(line)
		}
	}

	if *plots {
		tracePNG := filepath.Join(*outputDir, base+"_trace.png")
		if err := monitor.SaveTracePlot(result, filepath.Base(path), tracePNG); err != nil {
			return err
		}
		clipPNG := filepath.Join(*outputDir, base+"_clips.png")
		if err := monitor.SaveClipPlot(result, filepath.Base(path), clipPNG); err != nil {
			// A run without complete clips still produced valid exports.
			log.Printf("%s: skipping clip plot: %v", filepath.Base(path), err)
		}
	}
	return nil
}
