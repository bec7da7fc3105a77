package transformer

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/23skdu/longbow-tensorsim/internal/gpu"
)

func TestLookupPreset(t *testing.T) {
	p, err := LookupPreset("LLaMA3")
	if err != nil {
		t.Fatal(err)
	}
	if p.DModel != 8192 || p.HeadDim() != 128 {
		t.Errorf("llama3 = %+v", p)
	}
	if _, err := LookupPreset("bert"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
	if len(Presets()) != 4 {
		t.Errorf("expected 4 presets")
	}
}

func TestComputeFlopsGPT2(t *testing.T) {
	p, _ := LookupPreset("gpt2")
	b := ComputeFlops(p, 1024)

	want := Breakdown{
		AttnQK:    251_658_240_000,
		AttnV:     251_658_240_000,
		AttnOut:   251_658_240_000,
		MLPUp:     1_006_632_960_000,
		MLPDown:   1_006_632_960_000,
		Softmax:   50_331_648,
		LayerNorm: 786_432_000,
	}
	if b != want {
		t.Fatalf("breakdown = %v, want %v", b, want)
	}
	if b.Total() != 2_769_077_403_648 {
		t.Errorf("total = %d", b.Total())
	}
	if b.TensorCoreFlops() != 2_768_240_640_000 {
		t.Errorf("tensor core flops = %d", b.TensorCoreFlops())
	}
	if share := b.TensorCoreShare(); share < 0.999 || share > 1 {
		t.Errorf("share = %v", share)
	}
}

func TestComponents(t *testing.T) {
	tc := 0
	for _, c := range Components() {
		if c.TensorCore() {
			tc++
		}
	}
	if tc != 5 {
		t.Errorf("expected 5 tensor-core components, got %d", tc)
	}
	if Softmax.String() != "Softmax" || Component(42).String() != "Component(42)" {
		t.Error("unexpected component names")
	}
}

func TestEstimateTime(t *testing.T) {
	p, _ := LookupPreset("gpt2")
	e, err := EstimateTime(p, 1024, gpu.H100)
	if err != nil {
		t.Fatal(err)
	}
	if e.TimeString() != "2.8ms" {
		t.Errorf("time = %s", e.TimeString())
	}
	if !strings.Contains(e.String(), "2.8T") || !strings.Contains(e.String(), "H100") {
		t.Errorf("summary %q", e.String())
	}

	big, _ := LookupPreset("gpt4class")
	e, err = EstimateTime(big, 32768, gpu.V100)
	if err != nil {
		t.Fatal(err)
	}
	if s := e.TimeString(); strings.HasSuffix(s, "ms") || !strings.HasSuffix(s, "s") {
		t.Errorf("expected seconds, got %s", s)
	}

	if _, err := EstimateTime(p, 0, gpu.H100); err == nil {
		t.Error("expected error for zero sequence length")
	}
	if _, err := EstimateTime(p, 128, "tpu"); !errors.Is(err, gpu.ErrUnknownModel) {
		t.Errorf("expected gpu.ErrUnknownModel, got %v", err)
	}
}

func TestFormatSI(t *testing.T) {
	tests := []struct {
		n    float64
		want string
	}{
		{2.5e15, "2.5P"},
		{1e12, "1.0T"},
		{3.21e9, "3.2G"},
		{4.5e6, "4.5M"},
		{1500, "1.5K"},
		{12, "12.0"},
	}
	for _, tt := range tests {
		if got := FormatSI(tt.n, 1); got != tt.want {
			t.Errorf("FormatSI(%v) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestRoofline(t *testing.T) {
	r := H100Roofline
	if got := r.Attainable(1); got != 3350 {
		t.Errorf("memory-bound point = %v", got)
	}
	if got := r.Attainable(1000); got != 989000 {
		t.Errorf("compute-bound point = %v", got)
	}
	if math.Abs(r.Ridge()-989000.0/3350) > 1e-9 {
		t.Errorf("ridge = %v", r.Ridge())
	}
	if !r.MemoryBound(100) {
		t.Error("100 FLOPs/byte is still under the H100 ridge")
	}

	pts := r.Curve(DefaultIntensities)
	for _, p := range pts {
		if p.Attainable > p.MemoryLine || p.Attainable > r.PeakGFLOPS {
			t.Errorf("point above roof: %+v", p)
		}
	}

	if !OperatingPoints[0].Contains(0.5) || OperatingPoints[0].Contains(5) || !OperatingPoints[1].Contains(100) {
		t.Error("unexpected operating point ranges")
	}
}
