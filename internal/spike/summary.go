package spike

import "gonum.org/v1/gonum/stat"

// StatSummary aggregates one statistic across a run's spikes. Count is the
// number of spikes on which the statistic was defined; Mean and Std cover
// only those.
type StatSummary struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
}

// Summarize computes per-statistic mean and standard deviation over a run,
// in StatKinds order. Statistics undefined on every spike appear with a zero
// Count; Std is 0 when fewer than two values exist.
func Summarize(result *AnalysisResult) []StatSummary {
	summaries := make([]StatSummary, 0, int(numStatKinds))
	for _, k := range StatKinds() {
		var values []float64
		for _, rec := range result.Spikes() {
			if v, ok := rec.Stat(k); ok {
				values = append(values, v)
			}
		}
		s := StatSummary{Name: k.Name(), Count: len(values)}
		if len(values) > 0 {
			s.Mean = stat.Mean(values, nil)
		}
		if len(values) > 1 {
			s.Std = stat.StdDev(values, nil)
		}
		summaries = append(summaries, s)
	}
	return summaries
}
