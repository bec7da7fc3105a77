package mma

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/23skdu/longbow-tensorsim/internal/matrix"
	"github.com/23skdu/longbow-tensorsim/internal/precision"
)

var ErrShapeMismatch = errors.New("matrix shapes do not match")

// Inputs are the operands of D = A×B + C.
//
// A and B hold FP16-cast values. AReference holds A before the cast and
// drives the full-precision reference path; leave it empty to reuse A,
// which makes the reported error zero.
type Inputs struct {
	A          matrix.Matrix
	AReference matrix.Matrix
	B          matrix.Matrix
	C          matrix.Matrix
}

func (in Inputs) n() int { return in.A.N() }

func (in Inputs) validate() error {
	n := in.n()
	if in.B.N() != n || in.C.N() != n {
		return fmt.Errorf("A is %dx%d, B is %dx%d, C is %dx%d: %w",
			n, n, in.B.N(), in.B.N(), in.C.N(), in.C.N(), ErrShapeMismatch)
	}
	if !in.AReference.Empty() && in.AReference.N() != n {
		return fmt.Errorf("reference A is %dx%d, A is %dx%d: %w",
			in.AReference.N(), in.AReference.N(), n, n, ErrShapeMismatch)
	}
	return nil
}

func (in Inputs) reference() matrix.Matrix {
	if in.AReference.Empty() {
		return in.A
	}
	return in.AReference
}

// Result is everything one MMA simulation produced. It is freshly
// allocated per call and owned by the caller.
type Result struct {
	InputA          matrix.Matrix
	InputB          matrix.Matrix
	Accumulator     matrix.Matrix
	Output          matrix.Matrix
	ReferenceOutput matrix.Matrix

	MaxAbsoluteError float64

	// Flops and Cycles mirror Throughput.TotalFlops and Throughput.TensorCycles.
	Flops  int64
	Cycles int64

	Throughput Throughput
	Stages     []Snapshot

	// Warp is only populated by Simulator.Run.
	Warp Warp
}

// Evaluate computes D = A×B + C with full-precision accumulation of the
// FP16 operands, the reference D32 = A_ref×B + C, and the maximum absolute
// difference between the two. Stage snapshots are traced for cell (0,0).
func Evaluate(in Inputs, numOps int) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	n := in.n()
	if n == 0 {
		numOps = 0
	}

	d := add(matMul(in.A, in.B), in.C)
	d32 := add(matMul(in.reference(), in.B), in.C)
	tp := ComputeThroughput(n, numOps)

	res := &Result{
		InputA:           in.A,
		InputB:           in.B,
		Accumulator:      in.C,
		Output:           d,
		ReferenceOutput:  d32,
		MaxAbsoluteError: maxAbsDiff(d, d32),
		Flops:            tp.TotalFlops,
		Cycles:           tp.TensorCycles,
		Throughput:       tp,
	}
	if n > 0 {
		res.Stages = traceCell(in, 0, 0)
	}
	return res, nil
}

// TraceCell returns the per-stage snapshots for output cell (row, col).
func TraceCell(in Inputs, row, col int) ([]Snapshot, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	n := in.n()
	if row < 0 || row >= n || col < 0 || col >= n {
		return nil, fmt.Errorf("cell (%d,%d) outside %dx%d output", row, col, n, n)
	}
	return traceCell(in, row, col), nil
}

func traceCell(in Inputs, row, col int) []Snapshot {
	n := in.n()
	a := in.A.Row(row)
	b := in.B.Col(col)

	products := make([]float64, n)
	vecmath.MulBlock(products, a, b)

	partial := make([]float64, n)
	acc := 0.0
	for k, p := range products {
		acc += p
		partial[k] = acc
	}
	c := in.C.At(row, col)
	out := acc + c

	snap := func(s Stage, vals []float64, detail string) Snapshot {
		return Snapshot{Stage: s, Row: row, Col: col, Format: s.Format(), Values: vals, Detail: detail}
	}
	return []Snapshot{
		snap(StageLoadA, a, fmt.Sprintf("A[%d][:] %s %s", row, formatValues(a, 2), precision.HalfHex(a[0]))),
		snap(StageLoadB, b, fmt.Sprintf("B[:][%d] %s %s", col, formatValues(b, 2), precision.HalfHex(b[0]))),
		snap(StageMultiply, products, fmt.Sprintf("ΣₖA[%d][k]·B[k][%d] lanes %s", row, col, formatValues(products, 4))),
		snap(StageUpcastAccumulate, partial, fmt.Sprintf("cast → FP32 ↑ precision, partial sums %s", formatValues(partial, 4))),
		snap(StageAddC, []float64{c}, fmt.Sprintf("C[%d][%d]=%.2f", row, col, c)),
		snap(StageOutput, []float64{out}, fmt.Sprintf("D[%d][%d]=%.2f", row, col, out)),
	}
}

// matMul is the i-k-j triple loop. The explicit conversion rounds each
// product before the add so the compiler cannot contract it into an FMA.
func matMul(a, b matrix.Matrix) matrix.Matrix {
	n := a.N()
	acc := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			aik := a.At(i, k)
			for j := 0; j < n; j++ {
				acc[i*n+j] += float64(aik * b.At(k, j))
			}
		}
	}
	m, _ := matrix.FromData(n, acc)
	return m
}

func add(a, c matrix.Matrix) matrix.Matrix {
	n := a.N()
	sum := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sum[i*n+j] = a.At(i, j) + c.At(i, j)
		}
	}
	m, _ := matrix.FromData(n, sum)
	return m
}

// maxAbsDiff propagates NaN: math.Max returns NaN once any difference is NaN.
func maxAbsDiff(a, b matrix.Matrix) float64 {
	n := a.N()
	maxErr := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			maxErr = math.Max(maxErr, math.Abs(a.At(i, j)-b.At(i, j)))
		}
	}
	return maxErr
}
