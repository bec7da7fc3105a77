package reduction

import (
	"errors"
	"strings"
	"testing"

	"github.com/23skdu/longbow-tensorsim/internal/matrix"
)

func TestDepth(t *testing.T) {
	tests := map[int]int{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 16: 4, 64: 6, 256: 8}
	for n, want := range tests {
		if got := Depth(n); got != want {
			t.Errorf("Depth(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestBuildFourLeaves(t *testing.T) {
	tree, err := Build([]uint64{1, 2, 3, 4}, 8, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Levels) != 4 {
		t.Fatalf("expected leaves, 2 adder levels and acc, got %d levels", len(tree.Levels))
	}
	if tree.Sum() != 10 {
		t.Errorf("sum = %d", tree.Sum())
	}
	acc := tree.Accumulator()
	if acc.ID != AccumulatorID || acc.Value != 20 || acc.Bits != AccumulatorBits {
		t.Errorf("accumulator = %+v", acc)
	}
	if root := tree.Root(); root.Bits != 10 || root.ID != "node_2_0" {
		t.Errorf("root = %+v", root)
	}

	s := tree.Stats
	if s.Depth != 2 || s.SequentialAdds != 3 || s.Speedup != 1.5 || s.OutputBits != 10 {
		t.Errorf("stats = %+v", s)
	}
	if !strings.Contains(s.String(), "depth=2") {
		t.Errorf("unexpected stats line %q", s.String())
	}

	edges := tree.Edges()
	// 2 edges per adder (3 adders) plus root→acc
	if len(edges) != 7 {
		t.Fatalf("expected 7 edges, got %d", len(edges))
	}
	if edges[0] != (Edge{From: "l0_0", To: "node_1_0"}) {
		t.Errorf("first edge = %+v", edges[0])
	}
	if last := edges[len(edges)-1]; last.To != AccumulatorID {
		t.Errorf("last edge = %+v", last)
	}
}

func TestBuildAccumulatorWraps(t *testing.T) {
	// two 32-bit leaves sum to a 33-bit root; the accumulator keeps 32 bits
	leaves := []uint64{1<<32 - 1, 1<<32 - 1}
	tree, err := Build(leaves, 32, 5)
	if err != nil {
		t.Fatal(err)
	}
	if tree.Sum() != 1<<33-2 {
		t.Errorf("root sum = %d", tree.Sum())
	}
	acc := tree.Accumulator()
	if acc.Value != (1<<33+3)&(1<<32-1) {
		t.Errorf("accumulator = %d", acc.Value)
	}
	if acc.Value >= 1<<AccumulatorBits {
		t.Errorf("accumulator value %d exceeds %d bits", acc.Value, AccumulatorBits)
	}
	if !tree.Overflow {
		t.Error("expected overflow to be reported")
	}

	small, err := Build([]uint64{1, 2}, 8, 3)
	if err != nil {
		t.Fatal(err)
	}
	if small.Overflow || small.Accumulator().Value != 6 {
		t.Errorf("small tree = %+v, overflow %v", small.Accumulator(), small.Overflow)
	}
}

func TestBuildOddPassThrough(t *testing.T) {
	tree, err := Build([]uint64{5, 6, 7}, 4, 0)
	if err != nil {
		t.Fatal(err)
	}
	lvl1 := tree.Levels[1]
	if len(lvl1) != 2 {
		t.Fatalf("level 1 has %d nodes", len(lvl1))
	}
	// the unpaired leaf is forwarded untouched
	if lvl1[1].ID != "l0_2" || lvl1[1].Bits != 4 || !lvl1[1].Leaf() {
		t.Errorf("pass-through node = %+v", lvl1[1])
	}
	if tree.Sum() != 18 {
		t.Errorf("sum = %d", tree.Sum())
	}
	if tree.Stats.Depth != 2 {
		t.Errorf("depth = %d", tree.Stats.Depth)
	}
}

func TestBuildSingleInput(t *testing.T) {
	tree, err := Build([]uint64{9}, 8, 1)
	if err != nil {
		t.Fatal(err)
	}
	if tree.Stats.Depth != 0 || tree.Stats.Speedup != 0 || tree.Stats.SequentialAdds != 0 {
		t.Errorf("stats = %+v", tree.Stats)
	}
	if tree.Accumulator().Value != 10 {
		t.Errorf("acc = %+v", tree.Accumulator())
	}
}

func TestBuildErrors(t *testing.T) {
	if _, err := Build(nil, 8, 0); !errors.Is(err, ErrNoInputs) {
		t.Errorf("expected ErrNoInputs, got %v", err)
	}
	if _, err := Build([]uint64{1}, 0, 0); err == nil {
		t.Error("expected error for zero leaf bits")
	}
	if _, err := Build([]uint64{1}, MaxLeafBits+1, 0); err == nil {
		t.Error("expected error for oversized leaf bits")
	}
	if _, err := Build([]uint64{256}, 8, 0); err == nil {
		t.Error("expected error for leaf wider than its bit width")
	}
}

func TestRandomTree(t *testing.T) {
	src := matrix.NewSeededSource(3)
	leaves := RandomLeaves(16, 8, src)
	var want uint64
	for _, v := range leaves {
		if v >= 255 {
			t.Fatalf("leaf %d out of range", v)
		}
		want += v
	}
	carry := RandomCarry(src)
	if carry >= 100 {
		t.Fatalf("carry %d out of range", carry)
	}
	tree, err := Build(leaves, 8, carry)
	if err != nil {
		t.Fatal(err)
	}
	if tree.Sum() != want || tree.Accumulator().Value != want+carry {
		t.Errorf("sum %d acc %d, want %d", tree.Sum(), tree.Accumulator().Value, want)
	}
	if tree.Stats.OutputBits != 12 {
		t.Errorf("output bits = %d", tree.Stats.OutputBits)
	}
}

func TestDepthCurve(t *testing.T) {
	pts := DepthCurve(DefaultCurveInputs)
	if len(pts) != 8 {
		t.Fatalf("got %d points", len(pts))
	}
	last := pts[len(pts)-1]
	if last.Inputs != 256 || last.TreeDepth != 8 || last.Sequential != 255 {
		t.Errorf("last point = %+v", last)
	}
}
