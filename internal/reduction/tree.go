// Package reduction models the adder tree that sums multiplier outputs
// inside a tensor-core dot-product unit.
package reduction

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/23skdu/longbow-tensorsim/internal/matrix"
	"github.com/23skdu/longbow-tensorsim/internal/metrics"
)

// AccumulatorBits is the width of the register the tree drains into.
const AccumulatorBits = 32

const accumulatorMask = uint64(1)<<AccumulatorBits - 1

// MaxLeafBits bounds leaf width so the widest tree still fits in uint64.
const MaxLeafBits = 48

// AccumulatorID names the final accumulator node.
const AccumulatorID = "acc"

var ErrNoInputs = errors.New("reduction tree needs at least one input")

// Node is one value in the tree. Leaves have no children; pass-through
// nodes keep the ID of the node they forward.
type Node struct {
	ID       string
	Value    uint64
	Bits     int
	Children []string
}

func (n Node) Leaf() bool { return len(n.Children) == 0 }

// Edge connects a child to the node it feeds.
type Edge struct {
	From, To string
}

// Stats summarise the tree against a serial adder chain.
type Stats struct {
	Inputs         int
	Depth          int
	CriticalPath   int
	SequentialAdds int
	// Speedup is SequentialAdds/Depth, zero for a single input.
	Speedup    float64
	OutputBits int
}

func (s Stats) String() string {
	return fmt.Sprintf("N=%d inputs → depth=%d adder levels → %d adders total, %.1f× vs serial, %db → %db → %db",
		s.Inputs, s.Depth, s.SequentialAdds, s.Speedup, s.OutputBits-s.Depth, s.OutputBits, AccumulatorBits)
}

// Tree is a built reduction. Levels[0] holds the leaves and the last level
// holds only the accumulator.
type Tree struct {
	Levels [][]Node
	Stats  Stats
	// Overflow is set when root+carry did not fit the accumulator and the
	// stored value wrapped.
	Overflow bool
}

// Root is the top adder output, the node the accumulator consumes.
func (t *Tree) Root() Node {
	lvl := t.Levels[len(t.Levels)-2]
	return lvl[0]
}

func (t *Tree) Accumulator() Node {
	return t.Levels[len(t.Levels)-1][0]
}

// Sum is the root value, the dot product before the carry-in.
func (t *Tree) Sum() uint64 { return t.Root().Value }

// Edges lists every child→parent connection level by level, the order the
// adders fire.
func (t *Tree) Edges() []Edge {
	var out []Edge
	for _, lvl := range t.Levels {
		for _, n := range lvl {
			for _, c := range n.Children {
				out = append(out, Edge{From: c, To: n.ID})
			}
		}
	}
	return out
}

// Build sums leaves pairwise. An unpaired node at the end of a level passes
// through unchanged; every adder widens its result by one bit. The root
// then drains into a 32-bit accumulator holding carry, wrapping modulo 2^32
// like the register it models.
func Build(leaves []uint64, leafBits int, carry uint64) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrNoInputs
	}
	if leafBits <= 0 || leafBits > MaxLeafBits {
		return nil, fmt.Errorf("invalid leaf bits: %d (must be 1-%d)", leafBits, MaxLeafBits)
	}
	limit := uint64(1)<<leafBits - 1
	cur := make([]Node, len(leaves))
	for i, v := range leaves {
		if v > limit {
			return nil, fmt.Errorf("leaf %d value %d exceeds %d bits", i, v, leafBits)
		}
		cur[i] = Node{ID: fmt.Sprintf("l0_%d", i), Value: v, Bits: leafBits}
	}

	levels := [][]Node{cur}
	for len(cur) > 1 {
		next := make([]Node, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			if i+1 == len(cur) {
				next = append(next, cur[i])
				continue
			}
			l, r := cur[i], cur[i+1]
			next = append(next, Node{
				ID:       fmt.Sprintf("node_%d_%d", len(levels), i/2),
				Value:    l.Value + r.Value,
				Bits:     l.Bits + 1,
				Children: []string{l.ID, r.ID},
			})
		}
		levels = append(levels, next)
		cur = next
	}

	root := cur[0]
	full := root.Value + carry
	levels = append(levels, []Node{{
		ID:       AccumulatorID,
		Value:    full & accumulatorMask,
		Bits:     AccumulatorBits,
		Children: []string{root.ID},
	}})

	t := &Tree{
		Levels:   levels,
		Stats:    ComputeStats(len(leaves), leafBits),
		Overflow: full > accumulatorMask,
	}
	metrics.RecordReductionTree(t.Stats.Depth)
	return t, nil
}

// Depth is ceil(log2 n) adder levels; zero for n <= 1.
func Depth(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

func ComputeStats(n, leafBits int) Stats {
	d := Depth(n)
	s := Stats{
		Inputs:         n,
		Depth:          d,
		CriticalPath:   d,
		SequentialAdds: max(n-1, 0),
		OutputBits:     leafBits + d,
	}
	if d > 0 {
		s.Speedup = float64(s.SequentialAdds) / float64(d)
	}
	return s
}

// DefaultCurveInputs are the input counts plotted against serial depth.
var DefaultCurveInputs = []int{2, 4, 8, 16, 32, 64, 128, 256}

type DepthPoint struct {
	Inputs     int
	TreeDepth  int
	Sequential int
}

func DepthCurve(ns []int) []DepthPoint {
	out := make([]DepthPoint, len(ns))
	for i, n := range ns {
		out[i] = DepthPoint{Inputs: n, TreeDepth: Depth(n), Sequential: max(n-1, 0)}
	}
	return out
}

// RandomLeaves draws n products uniformly below 2^leafBits-1.
func RandomLeaves(n, leafBits int, src matrix.Source) []uint64 {
	if src == nil {
		src = matrix.DefaultSource
	}
	hi := math.Ldexp(1, leafBits) - 1
	out := make([]uint64, n)
	for i := range out {
		out[i] = uint64(math.Floor(src.Float64() * hi))
	}
	return out
}

// RandomCarry draws the accumulator's carried-in value in [0, 100).
func RandomCarry(src matrix.Source) uint64 {
	if src == nil {
		src = matrix.DefaultSource
	}
	return uint64(math.Floor(src.Float64() * 100))
}
