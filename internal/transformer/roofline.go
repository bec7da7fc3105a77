package transformer

import "math"

// Roofline bounds attainable GFLOPS by compute peak and memory bandwidth.
type Roofline struct {
	PeakGFLOPS    float64
	BandwidthGBps float64
	Label         string
}

// H100Roofline uses HBM3 bandwidth and the dense FP16 tensor peak.
var H100Roofline = Roofline{PeakGFLOPS: 989000, BandwidthGBps: 3350, Label: "H100"}

// DefaultIntensities are arithmetic intensities in FLOPs/byte.
var DefaultIntensities = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 50, 100}

// Attainable is min(peak, intensity × bandwidth).
func (r Roofline) Attainable(intensity float64) float64 {
	return math.Min(r.PeakGFLOPS, intensity*r.BandwidthGBps)
}

// Ridge is the intensity at which the kernel stops being memory bound.
func (r Roofline) Ridge() float64 {
	if r.BandwidthGBps == 0 {
		return math.Inf(1)
	}
	return r.PeakGFLOPS / r.BandwidthGBps
}

func (r Roofline) MemoryBound(intensity float64) bool { return intensity < r.Ridge() }

type RooflinePoint struct {
	Intensity  float64
	Attainable float64
	// MemoryLine is the unbounded bandwidth line.
	MemoryLine float64
}

func (r Roofline) Curve(intensities []float64) []RooflinePoint {
	out := make([]RooflinePoint, len(intensities))
	for i, c := range intensities {
		out[i] = RooflinePoint{Intensity: c, Attainable: r.Attainable(c), MemoryLine: c * r.BandwidthGBps}
	}
	return out
}

// OperatingPoint is where a workload class typically sits on the roofline.
type OperatingPoint struct {
	Name         string
	MinIntensity float64
	MaxIntensity float64
	GFLOPS       float64
}

// Batch-1 inference is bandwidth bound; large-batch training sits under
// the compute roof.
var OperatingPoints = []OperatingPoint{
	{Name: "LLM inference (batch=1)", MinIntensity: 0, MaxIntensity: 1, GFLOPS: 1000},
	{Name: "LLM training (large batch)", MinIntensity: 50, MaxIntensity: math.Inf(1), GFLOPS: 800000},
}

// Contains reports whether intensity falls in [MinIntensity, MaxIntensity).
func (o OperatingPoint) Contains(intensity float64) bool {
	return intensity >= o.MinIntensity && intensity < o.MaxIntensity
}
