// Package transformer estimates where a transformer forward pass spends
// its FLOPs and how much of that lands on tensor cores.
package transformer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/23skdu/longbow-tensorsim/internal/gpu"
)

var ErrUnknownModel = errors.New("unknown transformer model")

// Preset is a model shape. DFF is the MLP hidden width.
type Preset struct {
	Key    string
	Name   string
	DModel int64
	Layers int64
	Heads  int64
	DFF    int64
}

var presets = []Preset{
	{Key: "gpt2", Name: "GPT-2 1.5B", DModel: 1600, Layers: 48, Heads: 25, DFF: 6400},
	{Key: "gpt3", Name: "GPT-3 175B", DModel: 12288, Layers: 96, Heads: 96, DFF: 49152},
	{Key: "llama3", Name: "LLaMA-3 70B", DModel: 8192, Layers: 80, Heads: 64, DFF: 28672},
	{Key: "gpt4class", Name: "GPT-4 class", DModel: 18432, Layers: 120, Heads: 128, DFF: 73728},
}

func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

func LookupPreset(key string) (Preset, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, p := range presets {
		if p.Key == k {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%q: %w", key, ErrUnknownModel)
}

// HeadDim is DModel split across attention heads.
func (p Preset) HeadDim() int64 {
	if p.Heads == 0 {
		return 0
	}
	return p.DModel / p.Heads
}

// Component identifies one part of a layer.
type Component int

const (
	AttnQK Component = iota
	AttnV
	AttnOut
	MLPUp
	MLPDown
	Softmax
	LayerNorm
	numComponents
)

var componentLabels = [numComponents]string{
	"QKᵀ (TC)", "·V (TC)", "Out Proj (TC)", "MLP Up (TC)", "MLP Down (TC)", "Softmax", "LayerNorm",
}

func Components() []Component {
	out := make([]Component, numComponents)
	for i := range out {
		out[i] = Component(i)
	}
	return out
}

func (c Component) String() string {
	if c < 0 || c >= numComponents {
		return fmt.Sprintf("Component(%d)", int(c))
	}
	return componentLabels[c]
}

// TensorCore reports whether the component is a matmul.
func (c Component) TensorCore() bool { return c >= AttnQK && c <= MLPDown }

// Breakdown holds FLOPs per component summed over all layers.
type Breakdown [numComponents]int64

// ComputeFlops approximates one forward pass over seqLen tokens. Softmax
// and LayerNorm are elementwise and never reach the tensor cores.
func ComputeFlops(p Preset, seqLen int64) Breakdown {
	s, d, ff, l := seqLen, p.DModel, p.DFF, p.Layers
	var b Breakdown
	b[AttnQK] = l * 2 * s * d * d
	b[AttnV] = l * 2 * s * d * d
	b[AttnOut] = l * 2 * s * d * d
	b[MLPUp] = l * 2 * s * d * ff
	b[MLPDown] = l * 2 * s * ff * d
	b[Softmax] = l * s * s
	b[LayerNorm] = l * 10 * s * d
	return b
}

func (b Breakdown) Total() int64 {
	var t int64
	for _, v := range b {
		t += v
	}
	return t
}

func (b Breakdown) TensorCoreFlops() int64 {
	var t int64
	for c, v := range b {
		if Component(c).TensorCore() {
			t += v
		}
	}
	return t
}

// TensorCoreShare is the fraction of all FLOPs that run on tensor cores.
func (b Breakdown) TensorCoreShare() float64 {
	total := b.Total()
	if total == 0 {
		return 0
	}
	return float64(b.TensorCoreFlops()) / float64(total)
}

// Estimate is the headline of one workload on one GPU.
type Estimate struct {
	Preset    Preset
	SeqLen    int64
	GPU       gpu.Spec
	Flops     Breakdown
	TotalTime time.Duration
}

// EstimateTime divides total FLOPs by the GPU's published inference peak.
func EstimateTime(p Preset, seqLen int64, model gpu.Model) (*Estimate, error) {
	if seqLen <= 0 {
		return nil, fmt.Errorf("invalid sequence length: %d (must be positive)", seqLen)
	}
	spec, err := gpu.LookupSpec(model)
	if err != nil {
		return nil, err
	}
	b := ComputeFlops(p, seqLen)
	secs := float64(b.Total()) / (spec.InferenceTFLOPS * 1e12)
	return &Estimate{
		Preset:    p,
		SeqLen:    seqLen,
		GPU:       spec,
		Flops:     b,
		TotalTime: time.Duration(secs * float64(time.Second)),
	}, nil
}

// TimeString renders milliseconds below one second and seconds above.
func (e *Estimate) TimeString() string {
	ms := float64(e.TotalTime) / float64(time.Millisecond)
	if ms < 1000 {
		return fmt.Sprintf("%.1fms", ms)
	}
	return fmt.Sprintf("%.2fs", ms/1000)
}

func (e *Estimate) String() string {
	return fmt.Sprintf("%s seq=%d total=%s TC=%.0f%% on %s ≈ %s",
		e.Preset.Name, e.SeqLen, FormatSI(float64(e.Flops.Total()), 1),
		e.Flops.TensorCoreShare()*100, e.GPU.Name, e.TimeString())
}

// FormatSI renders n with a P/T/G/M/K suffix and d decimals.
func FormatSI(n float64, d int) string {
	units := []struct {
		scale  float64
		suffix string
	}{{1e15, "P"}, {1e12, "T"}, {1e9, "G"}, {1e6, "M"}, {1e3, "K"}}
	for _, u := range units {
		if n >= u.scale {
			return fmt.Sprintf("%.*f%s", d, n/u.scale, u.suffix)
		}
	}
	return fmt.Sprintf("%.*f", d, n)
}
