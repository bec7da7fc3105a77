package mma

import (
	"fmt"
	"strings"

	"github.com/23skdu/longbow-tensorsim/internal/precision"
)

// Stage is one step of the tensor-core pipeline. Stages run in
// declaration order and none may be skipped.
type Stage int

const (
	StageLoadA Stage = iota
	StageLoadB
	StageMultiply
	StageUpcastAccumulate
	StageAddC
	StageOutput

	numStages
)

type stageInfo struct {
	name      string
	label     string
	format    precision.Format
	errorRisk float64
}

var stageTable = [numStages]stageInfo{
	StageLoadA:            {"LoadA", "A load", precision.FP16, 2},
	StageLoadB:            {"LoadB", "B load", precision.FP16, 2},
	StageMultiply:         {"Multiply", "FP16 Mul", precision.FP16, 4},
	StageUpcastAccumulate: {"UpcastAccumulate", "Upcast→FP32", precision.FP32, 1},
	StageAddC:             {"AddC", "C accum", precision.FP32, 0.5},
	StageOutput:           {"Output", "D output", precision.FP32, 0.5},
}

// Stages returns the pipeline in execution order.
func Stages() []Stage {
	out := make([]Stage, numStages)
	for i := range out {
		out[i] = Stage(i)
	}
	return out
}

func (s Stage) valid() bool { return s >= 0 && s < numStages }

func (s Stage) String() string {
	if !s.valid() {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageTable[s].name
}

// Label is the short caption renderers put under the stage.
func (s Stage) Label() string {
	if !s.valid() {
		return ""
	}
	return stageTable[s].label
}

// Format is the precision a value is held in once the stage has run.
func (s Stage) Format() precision.Format {
	if !s.valid() {
		return precision.FP32
	}
	return stageTable[s].format
}

func (s Stage) BitWidth() int { return s.Format().Bits() }

// ErrorRisk is the relative rounding-error exposure of the stage.
func (s Stage) ErrorRisk() float64 {
	if !s.valid() {
		return 0
	}
	return stageTable[s].errorRisk
}

// Next returns the stage after s, or false once Output has been reached.
func (s Stage) Next() (Stage, bool) {
	if !s.valid() || s+1 >= numStages {
		return s, false
	}
	return s + 1, true
}

// Snapshot is the value a stage produced for one probe cell of D.
type Snapshot struct {
	Stage  Stage
	Row    int
	Col    int
	Format precision.Format
	Values []float64
	Detail string
}

func (s Snapshot) BitWidth() int { return s.Format.Bits() }

func (s Snapshot) String() string {
	return fmt.Sprintf("%-16s %-4s %s", s.Stage, s.Format, s.Detail)
}

// Cursor walks a snapshot list one stage at a time. It is owned by the
// caller and is not safe for concurrent use.
type Cursor struct {
	snaps []Snapshot
	pos   int
}

func NewCursor(snaps []Snapshot) *Cursor {
	return &Cursor{snaps: snaps, pos: -1}
}

// Advance moves to the next stage.
func (c *Cursor) Advance() (Snapshot, bool) {
	if c.pos+1 >= len(c.snaps) {
		return Snapshot{}, false
	}
	c.pos++
	return c.snaps[c.pos], true
}

// Current returns the stage the cursor is on. ok is false before the first
// Advance.
func (c *Cursor) Current() (snap Snapshot, ok bool) {
	if c.pos < 0 || c.pos >= len(c.snaps) {
		return Snapshot{}, false
	}
	return c.snaps[c.pos], true
}

func (c *Cursor) Done() bool { return c.pos+1 >= len(c.snaps) }

func (c *Cursor) Reset() { c.pos = -1 }

func formatValues(vals []float64, limit int) string {
	parts := make([]string, 0, limit+1)
	for i, v := range vals {
		if i == limit {
			parts = append(parts, "…")
			break
		}
		parts = append(parts, fmt.Sprintf("%.2f", v))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
