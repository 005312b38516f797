package spike

// Predicate decides whether a spike record belongs to a filtered view.
type Predicate func(SpikeRecord) bool

// CrossViewIndex maps between a spike's ordinal position in an
// AnalysisResult and its position in a filtered subset of that result.
// Filtered views (a scatter plot showing only spikes with a measured half
// width, a zoomed time range) must resolve selections through this mapping;
// assuming filtered position equals spike index is exactly the historical
// misalignment bug this type exists to prevent.
//
// An index is a snapshot: rebuild it whenever the result or the filter
// changes. It holds no reference to the result it was projected from.
type CrossViewIndex struct {
	toOriginal []int
	toFiltered map[int]int
}

// Project builds the index for the subset of result's spikes that satisfy
// keep. A nil predicate keeps every spike.
func Project(result *AnalysisResult, keep Predicate) *CrossViewIndex {
	x := &CrossViewIndex{toFiltered: make(map[int]int)}
	for _, rec := range result.Spikes() {
		if keep != nil && !keep(rec) {
			continue
		}
		x.toFiltered[rec.SpikeIndex] = len(x.toOriginal)
		x.toOriginal = append(x.toOriginal, rec.SpikeIndex)
	}
	return x
}

// Len returns the number of spikes in the filtered view.
func (x *CrossViewIndex) Len() int { return len(x.toOriginal) }

// OriginalIndex resolves a filtered position to the spike's ordinal index in
// the unfiltered result. Positions outside [0, Len()) are a caller defect
// and return ErrIndexOutOfRange.
func (x *CrossViewIndex) OriginalIndex(filteredPos int) (int, error) {
	if filteredPos < 0 || filteredPos >= len(x.toOriginal) {
		return 0, ErrIndexOutOfRange
	}
	return x.toOriginal[filteredPos], nil
}

// FilteredPosition resolves a spike index to its position in the filtered
// view. ok is false when the spike was excluded by the filter.
func (x *CrossViewIndex) FilteredPosition(spikeIndex int) (int, bool) {
	pos, ok := x.toFiltered[spikeIndex]
	return pos, ok
}

// HasPeak keeps spikes with a located peak.
func HasPeak(r SpikeRecord) bool { return r.PeakIndex != nil }

// HasStat keeps spikes for which the given statistic is defined. Scatter
// views project with the conjunction of their two axes so every plotted
// point resolves back to a spike.
func HasStat(k StatKind) Predicate {
	return func(r SpikeRecord) bool {
		_, ok := r.Stat(k)
		return ok
	}
}

// HasStats keeps spikes for which all given statistics are defined.
func HasStats(kinds ...StatKind) Predicate {
	return func(r SpikeRecord) bool {
		for _, k := range kinds {
			if _, ok := r.Stat(k); !ok {
				return false
			}
		}
		return true
	}
}

// InTimeRange keeps spikes whose onset time falls in [lo, hi] seconds, the
// projection a zoomed trace view uses.
func InTimeRange(lo, hi float64) Predicate {
	return func(r SpikeRecord) bool {
		return r.OnsetSeconds >= lo && r.OnsetSeconds <= hi
	}
}
