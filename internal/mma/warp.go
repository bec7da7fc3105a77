package mma

import (
	"fmt"
	"math"
)

// WarpSize is the number of threads cooperating on one WMMA fragment set.
const WarpSize = 32

// ThreadRole is the fragment a warp lane holds in the Volta WMMA layout.
type ThreadRole int

const (
	RoleIdle ThreadRole = iota
	RoleFragmentA
	RoleFragmentB
	RoleFragmentD
)

func (r ThreadRole) String() string {
	switch r {
	case RoleFragmentA:
		return "A"
	case RoleFragmentB:
		return "B"
	case RoleFragmentD:
		return "D"
	default:
		return "idle"
	}
}

// Warp is a snapshot of which lanes are active and what they hold.
type Warp struct {
	Utilization int
	Active      int
	Threads     [WarpSize]ThreadRole
}

// laneRole: lanes 0-7 hold A fragments, 8-15 B, 16-31 D.
func laneRole(t int) ThreadRole {
	switch {
	case t < 8:
		return RoleFragmentA
	case t < 16:
		return RoleFragmentB
	default:
		return RoleFragmentD
	}
}

// WarpLayout activates the first round(32·util/100) lanes. util is clamped
// to [0, 100].
func WarpLayout(util int) Warp {
	if util < 0 {
		util = 0
	}
	if util > 100 {
		util = 100
	}
	w := Warp{
		Utilization: util,
		Active:      int(math.Round(float64(WarpSize*util) / 100)),
	}
	for t := 0; t < w.Active; t++ {
		w.Threads[t] = laneRole(t)
	}
	return w
}

// Count returns how many lanes hold the given role.
func (w Warp) Count(role ThreadRole) int {
	n := 0
	for _, r := range w.Threads {
		if r == role {
			n++
		}
	}
	return n
}

func (w Warp) Status() string {
	return fmt.Sprintf("%d/%d threads active · warp utilization %d%%", w.Active, WarpSize, w.Utilization)
}
