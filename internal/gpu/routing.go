package gpu

import (
	"fmt"
	"strconv"
	"strings"
)

// OperandBits is the width of each FP16 operand wire bundle.
const OperandBits = 16

// AreaShare is the percentage of SM area per block, in the order of
// AreaLabels.
type AreaShare [5]int

var AreaLabels = [5]string{
	"Compute (multipliers+tree)",
	"Register File",
	"Routing / Interconnect",
	"L1 / Shared Mem",
	"Other",
}

// DefaultAreaShare is used for MMA size and node pairs outside the table.
var DefaultAreaShare = AreaShare{40, 22, 18, 15, 5}

type areaKey struct {
	mma    int
	nodeNm int
}

// Larger MMAs and smaller nodes spend more area on routing.
var areaTable = map[areaKey]AreaShare{
	{4, 12}:  {45, 20, 12, 18, 5},
	{8, 12}:  {42, 22, 16, 15, 5},
	{16, 12}: {40, 24, 18, 13, 5},
	{4, 7}:   {48, 18, 14, 15, 5},
	{8, 7}:   {44, 20, 18, 13, 5},
	{16, 7}:  {40, 22, 22, 11, 5},
	{4, 4}:   {50, 17, 16, 12, 5},
	{8, 4}:   {46, 19, 20, 10, 5},
	{16, 4}:  {42, 21, 26, 8, 3},
}

// AreaBreakdown returns the area split for an n×n MMA on a process node
// given in nanometres, and whether the pair was in the table.
func AreaBreakdown(mmaSize, nodeNm int) (AreaShare, bool) {
	a, ok := areaTable[areaKey{mmaSize, nodeNm}]
	if !ok {
		return DefaultAreaShare, false
	}
	return a, true
}

// Routing returns the area share of the routing/interconnect block.
func (a AreaShare) Routing() int { return a[2] }

func (a AreaShare) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = fmt.Sprintf("%s %d%%", AreaLabels[i], v)
	}
	return strings.Join(parts, ", ")
}

// ParseNode turns "7nm" or "7" into 7.
func ParseNode(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "nm"))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid process node: %q", s)
	}
	return v, nil
}

// Wires is the number of operand bits an n×n MMA must route at once:
// n² A elements plus n² B elements, 16 bits each.
func Wires(n int) int64 {
	nn := int64(n) * int64(n)
	return 2 * nn * OperandBits
}

// DefaultRoutingSizes are the MMA edges plotted on the routing chart.
var DefaultRoutingSizes = []int{4, 8, 16, 32}

type RoutingPoint struct {
	Size        int
	Wires       int64
	Multipliers int64
	FMAs        int64
}

// RoutingCurve shows wires and multipliers growing as n² while work grows
// as n³.
func RoutingCurve(sizes []int) []RoutingPoint {
	out := make([]RoutingPoint, len(sizes))
	for i, n := range sizes {
		nn := int64(n)
		out[i] = RoutingPoint{Size: n, Wires: Wires(n), Multipliers: nn * nn, FMAs: nn * nn * nn}
	}
	return out
}

func (p RoutingPoint) String() string {
	return fmt.Sprintf("%d×%d MMA: %d A elements + %d B elements × %d bits = %d wires",
		p.Size, p.Size, p.Multipliers, p.Multipliers, OperandBits, p.Wires)
}
