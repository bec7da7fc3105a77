// Package gpu holds first-order models of NVIDIA datacenter GPUs: tensor
// core throughput, the SM die map, warp occupancy and MMA routing cost.
package gpu

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownModel = errors.New("unknown gpu model")

type Model string

const (
	V100 Model = "v100"
	A100 Model = "a100"
	H100 Model = "h100"
)

// WarpsPerSMShown is the number of resident warp slots drawn per SM.
const WarpsPerSMShown = 8

// Spec describes one GPU generation. Clock is the boost clock in Hz.
type Spec struct {
	Model            Model
	Name             string
	SMs              int
	TensorCoresPerSM int
	FMAPerTensorCore int
	ClockHz          float64
	Process          string

	// FP32TFLOPS is the CUDA-core FP32 rate, for comparison only.
	FP32TFLOPS float64
	// InferenceTFLOPS is the published dense FP16 tensor rate used for
	// workload time estimates.
	InferenceTFLOPS float64
}

var specs = map[Model]Spec{
	V100: {Model: V100, Name: "V100", SMs: 80, TensorCoresPerSM: 8, FMAPerTensorCore: 64, ClockHz: 1.53e9, Process: "12nm", FP32TFLOPS: 14, InferenceTFLOPS: 125},
	A100: {Model: A100, Name: "A100", SMs: 108, TensorCoresPerSM: 4, FMAPerTensorCore: 256, ClockHz: 1.41e9, Process: "7nm", FP32TFLOPS: 19.5, InferenceTFLOPS: 312},
	H100: {Model: H100, Name: "H100", SMs: 132, TensorCoresPerSM: 4, FMAPerTensorCore: 512, ClockHz: 1.83e9, Process: "4nm", FP32TFLOPS: 67, InferenceTFLOPS: 989},
}

// Models lists the known generations oldest first.
func Models() []Model {
	return []Model{V100, A100, H100}
}

// ParseModel accepts "h100", "H100" and similar.
func ParseModel(s string) (Model, error) {
	m := Model(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := specs[m]; !ok {
		return "", fmt.Errorf("%q: %w", s, ErrUnknownModel)
	}
	return m, nil
}

func LookupSpec(m Model) (Spec, error) {
	s, ok := specs[m]
	if !ok {
		return Spec{}, fmt.Errorf("%q: %w", string(m), ErrUnknownModel)
	}
	return s, nil
}

// TensorCores is the die-wide tensor core count.
func (s Spec) TensorCores() int { return s.SMs * s.TensorCoresPerSM }

// TFLOPS is the FP16 tensor rate at the given SM utilization (0..1):
// SMs × TC/SM × FMA/TC × 2 × clock × util.
func (s Spec) TFLOPS(util float64) float64 {
	return float64(s.SMs) * s.smFlops() * util / 1e12
}

func (s Spec) PeakTFLOPS() float64 { return s.TFLOPS(1) }

// SMGFLOPS is the rate of a single fully busy SM.
func (s Spec) SMGFLOPS() float64 { return s.smFlops() / 1e9 }

func (s Spec) smFlops() float64 {
	return float64(s.TensorCoresPerSM*s.FMAPerTensorCore*2) * s.ClockHz
}

// Comparison is one row of the tensor-core versus CUDA-core chart.
type Comparison struct {
	Name         string
	TensorTFLOPS float64
	FP32TFLOPS   float64
}

func CompareModels() []Comparison {
	out := make([]Comparison, 0, len(specs))
	for _, m := range Models() {
		s := specs[m]
		out = append(out, Comparison{Name: s.Name, TensorTFLOPS: s.PeakTFLOPS(), FP32TFLOPS: s.FP32TFLOPS})
	}
	return out
}
