package spike

// StatKind enumerates the named per-spike statistics exposed to the scatter
// surface. The set is fixed and ordered; adding a kind appends to the list
// and never renumbers spike indices, so CrossViewIndex projections stay
// stable as statistics grow.
type StatKind int

const (
	StatPeakVoltage StatKind = iota
	StatPeakHeight
	StatThresholdVoltage
	StatTimeToPeakMs
	StatHalfWidthMs
	StatMaxDVDT
	StatISIMs
	StatInstantFreqHz

	numStatKinds
)

var statNames = [numStatKinds]string{
	StatPeakVoltage:      "Peak (mV)",
	StatPeakHeight:       "Peak Height (mV)",
	StatThresholdVoltage: "Threshold (mV)",
	StatTimeToPeakMs:     "Time To Peak (ms)",
	StatHalfWidthMs:      "Half Width (ms)",
	StatMaxDVDT:          "Max dV/dt (mV/s)",
	StatISIMs:            "Inter-Spike Interval (ms)",
	StatInstantFreqHz:    "Spike Frequency (Hz)",
}

// Name returns the human-readable label for the statistic.
func (k StatKind) Name() string {
	if k < 0 || k >= numStatKinds {
		return "unknown"
	}
	return statNames[k]
}

// StatKinds returns all statistic kinds in display order.
func StatKinds() []StatKind {
	kinds := make([]StatKind, numStatKinds)
	for i := range kinds {
		kinds[i] = StatKind(i)
	}
	return kinds
}

// StatisticNames returns the ordered human-readable statistic names consumed
// by the scatter collaborator's axis dropdowns.
func StatisticNames() []string {
	names := make([]string, numStatKinds)
	for i, k := range StatKinds() {
		names[i] = k.Name()
	}
	return names
}

// StatKindByName resolves a human-readable name back to its kind.
func StatKindByName(name string) (StatKind, bool) {
	for i, n := range statNames {
		if n == name {
			return StatKind(i), true
		}
	}
	return 0, false
}

// Stat returns the value of the named statistic for this record. ok is false
// when the statistic is nil on this record (edge-truncated window, first
// spike's ISI) or the kind is unknown.
func (r SpikeRecord) Stat(k StatKind) (float64, bool) {
	deref := func(p *float64) (float64, bool) {
		if p == nil {
			return 0, false
		}
		return *p, true
	}
	switch k {
	case StatPeakVoltage:
		return deref(r.PeakVoltage)
	case StatPeakHeight:
		return deref(r.PeakHeight)
	case StatThresholdVoltage:
		return r.ThresholdVoltage, true
	case StatTimeToPeakMs:
		return deref(r.TimeToPeakMs)
	case StatHalfWidthMs:
		return deref(r.HalfWidthMs)
	case StatMaxDVDT:
		return r.MaxDVDT, true
	case StatISIMs:
		return deref(r.ISIMs)
	case StatInstantFreqHz:
		return deref(r.InstantFreqHz)
	}
	return 0, false
}
