package gemm

import (
	"fmt"
	"time"

	"github.com/23skdu/longbow-tensorsim/internal/logger"
	"github.com/23skdu/longbow-tensorsim/internal/matrix"
	"github.com/23skdu/longbow-tensorsim/internal/metrics"
	"github.com/23skdu/longbow-tensorsim/internal/mma"
)

// Result of a tiled GEMM run through the MMA engine.
type Result struct {
	Schedule   *Schedule
	Output     matrix.Matrix
	Throughput mma.Throughput
	// MaxAbsoluteError is the largest per-tile error reported by the engine.
	MaxAbsoluteError float64
}

// Multiply computes a×b by issuing one 4×4 MMA per tile and carrying each
// output tile forward as the next accumulator. aRef, when non-empty, is
// the pre-cast a used for the per-tile reference path.
func Multiply(a, aRef, b matrix.Matrix) (*Result, error) {
	if a.N() != b.N() || (!aRef.Empty() && aRef.N() != a.N()) {
		return nil, fmt.Errorf("gemm operands %d and %d: %w", a.N(), b.N(), mma.ErrShapeMismatch)
	}
	sched, err := NewSchedule(a.N())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	log := logger.Log.With("gemm")
	acc := make(map[[2]int]matrix.Matrix, sched.TilesPerDim*sched.TilesPerDim)
	maxErr := 0.0
	var runErr error

	sched.Each(func(t Tile) bool {
		key := [2]int{t.M, t.N}
		c, ok := acc[key]
		if !ok {
			c = matrix.Zero(TileSize)
		}
		in := mma.Inputs{
			A: a.Block(t.ARows.Lo, t.ACols.Lo, TileSize),
			B: b.Block(t.BRows.Lo, t.BCols.Lo, TileSize),
			C: c,
		}
		if !aRef.Empty() {
			in.AReference = aRef.Block(t.ARows.Lo, t.ACols.Lo, TileSize)
		}
		res, err := mma.Evaluate(in, 1)
		if err != nil {
			runErr = fmt.Errorf("%s: %w", t, err)
			return false
		}
		if res.MaxAbsoluteError > maxErr {
			maxErr = res.MaxAbsoluteError
		}
		acc[key] = res.Output
		log.Debug("tile issued", "tile", t.Index, "of", sched.TotalTiles, "m", t.M, "n", t.N, "k", t.K)
		return true
	})
	if runErr != nil {
		return nil, runErr
	}

	out := matrix.NewBuilder(a.N())
	for key, tile := range acc {
		out.SetBlock(key[0]*TileSize, key[1]*TileSize, tile)
	}

	elapsed := time.Since(start)
	metrics.RecordGEMM(sched.TotalTiles, elapsed)
	log.Info("GEMM complete", "size", sched.Size, "tiles", sched.TotalTiles, "flops", sched.TotalFlops, "elapsed", elapsed)

	return &Result{
		Schedule:         sched,
		Output:           out.Build(),
		Throughput:       mma.ComputeThroughput(TileSize, sched.TotalTiles),
		MaxAbsoluteError: maxErr,
	}, nil
}
