package mma

import (
	"errors"
	"fmt"
	"time"

	"github.com/23skdu/longbow-tensorsim/internal/logger"
	"github.com/23skdu/longbow-tensorsim/internal/matrix"
	"github.com/23skdu/longbow-tensorsim/internal/metrics"
)

// Params are the knobs of one simulated "execute".
type Params struct {
	N        int
	Fill     matrix.FillMode
	NumOps   int
	WarpUtil int
	// AccumulatorScale shrinks the random C so it stays small next to A×B.
	AccumulatorScale float64
}

func DefaultParams() Params {
	return Params{
		N:                matrix.DefaultSize,
		Fill:             matrix.FillRandom,
		NumOps:           10,
		WarpUtil:         100,
		AccumulatorScale: 0.1,
	}
}

// Simulator draws operands from its source and evaluates them. It is as
// safe for concurrent use as the Source it was built with.
type Simulator struct {
	src matrix.Source
	log *logger.Logger
}

// NewSimulator returns a simulator drawing from src. A nil src uses
// matrix.DefaultSource.
func NewSimulator(src matrix.Source) *Simulator {
	if src == nil {
		src = matrix.DefaultSource
	}
	return &Simulator{src: src, log: logger.Log.With("mma")}
}

// Run generates A and B in p.Fill mode, a random accumulator C scaled by
// p.AccumulatorScale, and evaluates D = A×B + C. The reference path
// reuses A's values from before the FP16 cast.
func (s *Simulator) Run(p Params) (*Result, error) {
	start := time.Now()
	fill := p.Fill.String()
	s.log.Info("MMA execute", "ops", p.NumOps, "fill", fill, "n", p.N, "warp", p.WarpUtil)

	rawA, err := matrix.GenerateRaw(p.Fill, p.N, s.src)
	if err != nil {
		metrics.RecordValidationError("simulate", "fill_mode")
		return nil, fmt.Errorf("generate A: %w", err)
	}
	b, err := matrix.Generate(p.Fill, p.N, s.src)
	if err != nil {
		return nil, fmt.Errorf("generate B: %w", err)
	}
	c, err := matrix.Generate(matrix.FillRandom, p.N, s.src)
	if err != nil {
		return nil, fmt.Errorf("generate C: %w", err)
	}

	in := Inputs{
		A:          rawA.Cast16(),
		AReference: rawA,
		B:          b,
		C:          c.Scale(p.AccumulatorScale),
	}
	res, err := Evaluate(in, p.NumOps)
	if err != nil {
		if errors.Is(err, ErrShapeMismatch) {
			metrics.RecordValidationError("simulate", "shape_mismatch")
		}
		return nil, err
	}
	res.Warp = WarpLayout(p.WarpUtil)

	elapsed := time.Since(start)
	nans, infs := res.Output.CountNonFinite()
	metrics.RecordNumericalInstability("D", nans, infs)
	metrics.RecordSimulation(fill, p.N, elapsed, res.MaxAbsoluteError, res.Throughput.NumOps, res.Flops)

	if nans+infs > 0 {
		s.log.Warn("non-finite output cells", "nan", nans, "inf", infs)
	}
	if len(res.Stages) > 0 {
		s.log.Debug("pipeline traced", "stages", len(res.Stages), "d00", res.Output.At(0, 0))
	}
	s.log.Info("MMA complete",
		"max_abs_error", res.MaxAbsoluteError,
		"flops", res.Flops,
		"tensor_cycles", res.Throughput.TensorCycles,
		"scalar_cycles", res.Throughput.ScalarCycles,
		"speedup", res.Throughput.Speedup,
		"warp", res.Warp.Status(),
		"elapsed", elapsed,
	)
	return res, nil
}
