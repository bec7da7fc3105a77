package gpu

import (
	"fmt"
	"math"
)

// SM is one streaming multiprocessor on the die map.
type SM struct {
	Index  int
	Active bool
	// GFLOPS is zero for idle SMs.
	GFLOPS float64
}

func (s SM) String() string {
	if !s.Active {
		return fmt.Sprintf("SM %d idle", s.Index)
	}
	return fmt.Sprintf("SM %d %.0f GFLOPS", s.Index, s.GFLOPS)
}

// Die is the SM map for one model at a given utilization.
type Die struct {
	Spec        Spec
	Utilization float64
	ActiveSMs   int
	SMs         []SM
	// EffectiveTFLOPS is the tensor rate at Utilization.
	EffectiveTFLOPS float64
}

// BuildDie lays out every SM, marking the first round(SMs×util) active.
// util is clamped to [0, 1].
func BuildDie(spec Spec, util float64) *Die {
	util = math.Max(0, math.Min(1, util))
	active := int(math.Round(float64(spec.SMs) * util))
	perSM := spec.SMGFLOPS()

	sms := make([]SM, spec.SMs)
	for i := range sms {
		sms[i] = SM{Index: i, Active: i < active}
		if sms[i].Active {
			sms[i].GFLOPS = perSM
		}
	}
	return &Die{
		Spec:            spec,
		Utilization:     util,
		ActiveSMs:       active,
		SMs:             sms,
		EffectiveTFLOPS: spec.TFLOPS(util),
	}
}

func (d *Die) Summary() string {
	return fmt.Sprintf("%s %d/%d SMs · TC/SM %d · FMA/TC %d · %s · peak %.0f TF · eff %.0f TF",
		d.Spec.Name, d.ActiveSMs, d.Spec.SMs, d.Spec.TensorCoresPerSM, d.Spec.FMAPerTensorCore,
		d.Spec.Process, d.Spec.PeakTFLOPS(), d.EffectiveTFLOPS)
}

// LatencyHidingWarps is the resident warp count at which memory latency
// is fully covered.
const LatencyHidingWarps = 6

// DefaultOccupancyWarps are the warp counts on the occupancy curve.
var DefaultOccupancyWarps = []int{1, 2, 4, 8, 16, 32, 48}

type OccupancyPoint struct {
	Warps         int
	ThroughputPct float64
	IdlePct       float64
}

// Occupancy models throughput as rising linearly with resident warps until
// LatencyHidingWarps, after which the SM is saturated.
func Occupancy(warps []int) []OccupancyPoint {
	out := make([]OccupancyPoint, len(warps))
	for i, w := range warps {
		pct := float64(w) / LatencyHidingWarps * 100
		out[i] = OccupancyPoint{
			Warps:         w,
			ThroughputPct: math.Min(100, pct),
			IdlePct:       math.Max(0, 100-pct),
		}
	}
	return out
}
