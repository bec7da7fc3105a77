package gemm

import (
	"errors"
	"fmt"

	"github.com/23skdu/longbow-tensorsim/internal/matrix"
)

// TileSize is the edge of the MMA the tensor core executes per op.
const TileSize = matrix.DefaultSize

var ErrTileAlignment = errors.New("gemm size must be a positive multiple of the tile size")

// Span is a half-open index range [Lo, Hi).
type Span struct {
	Lo, Hi int
}

func (s Span) String() string { return fmt.Sprintf("%d:%d", s.Lo, s.Hi-1) }

// Tile is one 4×4×4 MMA issued while walking a GEMM.
type Tile struct {
	M, N, K int
	// Index is 1-based in issue order.
	Index int
	ARows Span
	ACols Span
	BRows Span
	BCols Span
}

func (t Tile) String() string {
	return fmt.Sprintf("tile (m=%d,n=%d,k=%d) load A[%s, %s], B[%s, %s]",
		t.M, t.N, t.K, t.ARows, t.ACols, t.BRows, t.BCols)
}

// Schedule describes how a size×size×size GEMM is cut into tiles.
type Schedule struct {
	Size        int
	TilesPerDim int
	TotalTiles  int
	TotalFlops  int64
}

func NewSchedule(size int) (*Schedule, error) {
	if size <= 0 || size%TileSize != 0 {
		return nil, fmt.Errorf("size %d: %w", size, ErrTileAlignment)
	}
	per := size / TileSize
	s := int64(size)
	return &Schedule{
		Size:        size,
		TilesPerDim: per,
		TotalTiles:  per * per * per,
		TotalFlops:  2 * s * s * s,
	}, nil
}

// Each calls fn for every tile in m, n, k order. Returning false stops
// the walk.
func (s *Schedule) Each(fn func(Tile) bool) {
	idx := 0
	for tm := 0; tm < s.TilesPerDim; tm++ {
		for tn := 0; tn < s.TilesPerDim; tn++ {
			for tk := 0; tk < s.TilesPerDim; tk++ {
				idx++
				t := Tile{
					M: tm, N: tn, K: tk, Index: idx,
					ARows: span(tm), ACols: span(tk),
					BRows: span(tk), BCols: span(tn),
				}
				if !fn(t) {
					return
				}
			}
		}
	}
}

// Tiles returns the full issue order.
func (s *Schedule) Tiles() []Tile {
	out := make([]Tile, 0, s.TotalTiles)
	s.Each(func(t Tile) bool {
		out = append(out, t)
		return true
	})
	return out
}

// Progress is the fraction of the schedule done once t has issued.
func (s *Schedule) Progress(t Tile) float64 {
	if s.TotalTiles == 0 {
		return 0
	}
	return float64(t.Index) / float64(s.TotalTiles)
}

func span(tile int) Span {
	return Span{Lo: tile * TileSize, Hi: (tile + 1) * TileSize}
}

// ScalePoint compares hardware cost at one MMA edge length.
type ScalePoint struct {
	Dim         int
	Multipliers int64
	FMAs        int64
}

// ScaleCurve returns multipliers (d²) and FMAs (d³) per MMA size.
func ScaleCurve(dims []int) []ScalePoint {
	out := make([]ScalePoint, len(dims))
	for i, d := range dims {
		dd := int64(d)
		out[i] = ScalePoint{Dim: d, Multipliers: dd * dd, FMAs: dd * dd * dd}
	}
	return out
}
