package spike

import (
	"fmt"
	"math"
)

// Trace is an immutable container for one recording's sampled membrane
// voltage and its time base. Samples are copied on construction; a Trace is
// never mutated after NewTrace returns, so it is safe to share between the
// detector, the stats computer and any number of views.
type Trace struct {
	samples        []float64
	deriv          []float64
	sampleInterval float64 // seconds per sample
	startOffset    float64 // seconds
}

// NewTrace builds a Trace from raw voltage samples. sampleInterval is the
// time per sample in seconds and must be positive and finite. startOffset is
// the recording time of sample 0 in seconds. A zero-length sample slice is
// valid and produces an empty Trace.
func NewTrace(samples []float64, sampleInterval, startOffset float64) (*Trace, error) {
	if sampleInterval <= 0 || math.IsNaN(sampleInterval) || math.IsInf(sampleInterval, 0) {
		return nil, fmt.Errorf("sample interval must be positive and finite, got %v", sampleInterval)
	}
	if math.IsNaN(startOffset) || math.IsInf(startOffset, 0) {
		return nil, fmt.Errorf("start offset must be finite, got %v", startOffset)
	}

	t := &Trace{
		samples:        make([]float64, len(samples)),
		sampleInterval: sampleInterval,
		startOffset:    startOffset,
	}
	copy(t.samples, samples)
	t.deriv = derivative(t.samples, sampleInterval)
	return t, nil
}

// derivative returns the sample-to-sample derivative aligned 1:1 with the
// input. The first sample has no predecessor; its derivative is defined as 0
// so the series stays index-aligned with the voltage trace. A crossing can
// therefore never fire on sample 0.
func derivative(samples []float64, dt float64) []float64 {
	d := make([]float64, len(samples))
	for i := 1; i < len(samples); i++ {
		d[i] = (samples[i] - samples[i-1]) / dt
	}
	return d
}

// Len returns the number of samples.
func (t *Trace) Len() int { return len(t.samples) }

// SampleInterval returns the time per sample in seconds.
func (t *Trace) SampleInterval() float64 { return t.sampleInterval }

// SampleRate returns samples per second.
func (t *Trace) SampleRate() float64 { return 1 / t.sampleInterval }

// StartOffset returns the recording time of sample 0 in seconds.
func (t *Trace) StartOffset() float64 { return t.startOffset }

// Voltage returns the voltage at sample i. Callers must keep i within
// [0, Len()); this is an internal accessor on the hot path and does not
// bounds-check beyond what the runtime provides.
func (t *Trace) Voltage(i int) float64 { return t.samples[i] }

// TimeAt returns the recording time of sample i in seconds.
func (t *Trace) TimeAt(i int) float64 {
	return t.startOffset + float64(i)*t.sampleInterval
}

// Samples returns the voltage series. The returned slice is owned by the
// Trace and must not be modified.
func (t *Trace) Samples() []float64 { return t.samples }

// Derivative returns the dV/dt series in voltage units per second, aligned
// 1:1 with Samples. Index 0 is always 0 (see derivative). The returned slice
// is owned by the Trace and must not be modified.
func (t *Trace) Derivative() []float64 { return t.deriv }

// Smoothed returns a new Trace whose voltage has been convolved with a
// normalized gaussian kernel of the given half-width in samples. Width 0 (or
// negative) returns the receiver unchanged. Smoothing before detection tames
// sampling noise that would otherwise chatter across the dV/dt threshold.
func (t *Trace) Smoothed(width int) *Trace {
	if width <= 0 || t.Len() == 0 {
		return t
	}

	kernel := gaussianKernel(width)
	out := &Trace{
		samples:        make([]float64, len(t.samples)),
		sampleInterval: t.sampleInterval,
		startOffset:    t.startOffset,
	}
	half := len(kernel) / 2
	for i := range t.samples {
		var acc, norm float64
		for k, w := range kernel {
			j := i + k - half
			if j < 0 || j >= len(t.samples) {
				continue
			}
			acc += w * t.samples[j]
			norm += w
		}
		// norm only differs from 1 at the trace edges where the kernel
		// is clipped.
		out.samples[i] = acc / norm
	}
	out.deriv = derivative(out.samples, t.sampleInterval)
	return out
}

// gaussianKernel returns a normalized gaussian of 2*half+1 taps with sigma
// set to half the half-width (minimum 1).
func gaussianKernel(half int) []float64 {
	sigma := float64(half) / 2
	if sigma < 1 {
		sigma = 1
	}
	kernel := make([]float64, 2*half+1)
	var sum float64
	for i := range kernel {
		x := float64(i - half)
		kernel[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}
