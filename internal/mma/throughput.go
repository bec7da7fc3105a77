package mma

// Throughput is the closed-form cost model of a batch of MMA ops.
// A tensor core retires one n×n×n MMA per cycle; the scalar path retires
// one fused multiply-add per cycle on each of n² lanes.
type Throughput struct {
	N            int
	NumOps       int
	FlopsPerOp   int64
	TotalFlops   int64
	TensorCycles int64
	ScalarCycles int64
	Speedup      float64
}

func ComputeThroughput(n, numOps int) Throughput {
	if n < 0 {
		n = 0
	}
	if numOps < 0 {
		numOps = 0
	}
	nn := int64(n)
	ops := int64(numOps)
	tp := Throughput{
		N:            n,
		NumOps:       numOps,
		FlopsPerOp:   2 * nn * nn * nn,
		TensorCycles: ops,
		ScalarCycles: ops * nn * nn,
	}
	tp.TotalFlops = ops * tp.FlopsPerOp
	if tp.TensorCycles > 0 {
		tp.Speedup = float64(tp.ScalarCycles) / float64(tp.TensorCycles)
	}
	return tp
}
