package gpu

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestPeakTFLOPS(t *testing.T) {
	tests := []struct {
		model Model
		want  float64
	}{
		{V100, 80 * 8 * 64 * 2 * 1.53e9 / 1e12},
		{A100, 108 * 4 * 256 * 2 * 1.41e9 / 1e12},
		{H100, 132 * 4 * 512 * 2 * 1.83e9 / 1e12},
	}
	for _, tt := range tests {
		s, err := LookupSpec(tt.model)
		if err != nil {
			t.Fatal(err)
		}
		if got := s.PeakTFLOPS(); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("%s peak = %v, want %v", tt.model, got, tt.want)
		}
	}

	h, _ := LookupSpec(H100)
	if got := math.Round(h.PeakTFLOPS()); got != 989 {
		t.Errorf("H100 peak rounds to %v", got)
	}
	if got := h.TFLOPS(0.5); math.Abs(got-h.PeakTFLOPS()/2) > 1e-9 {
		t.Errorf("half utilization = %v", got)
	}
	if got := math.Round(h.SMGFLOPS()); got != 7496 {
		t.Errorf("H100 per-SM GFLOPS = %v", got)
	}
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel(" H100 ")
	if err != nil || m != H100 {
		t.Errorf("ParseModel = %v, %v", m, err)
	}
	if _, err := ParseModel("b200"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
	if _, err := LookupSpec("tpu"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
}

func TestCompareModels(t *testing.T) {
	rows := CompareModels()
	if len(rows) != 3 || rows[0].Name != "V100" || rows[2].FP32TFLOPS != 67 {
		t.Fatalf("unexpected rows %+v", rows)
	}
	for _, r := range rows {
		if r.TensorTFLOPS <= r.FP32TFLOPS {
			t.Errorf("%s tensor rate %v not above FP32 %v", r.Name, r.TensorTFLOPS, r.FP32TFLOPS)
		}
	}
}

func TestBuildDie(t *testing.T) {
	a, _ := LookupSpec(A100)
	d := BuildDie(a, 0.5)
	if d.ActiveSMs != 54 || len(d.SMs) != 108 {
		t.Fatalf("active %d of %d", d.ActiveSMs, len(d.SMs))
	}
	if !d.SMs[53].Active || d.SMs[54].Active {
		t.Error("active SMs should be the leading block")
	}
	if d.SMs[54].GFLOPS != 0 || d.SMs[0].GFLOPS != a.SMGFLOPS() {
		t.Errorf("unexpected per-SM rates %v %v", d.SMs[0].GFLOPS, d.SMs[54].GFLOPS)
	}
	if !strings.Contains(d.Summary(), "54/108") {
		t.Errorf("summary %q", d.Summary())
	}
	if d.SMs[100].String() != "SM 100 idle" {
		t.Errorf("idle SM renders as %q", d.SMs[100])
	}

	if BuildDie(a, 2).ActiveSMs != 108 || BuildDie(a, -1).ActiveSMs != 0 {
		t.Error("utilization should clamp to [0,1]")
	}
}

func TestOccupancy(t *testing.T) {
	pts := Occupancy(DefaultOccupancyWarps)
	if math.Abs(pts[0].ThroughputPct+pts[0].IdlePct-100) > 1e-9 {
		t.Errorf("1 warp: %+v", pts[0])
	}
	for _, p := range pts[3:] {
		if p.ThroughputPct != 100 || p.IdlePct != 0 {
			t.Errorf("%d warps should saturate: %+v", p.Warps, p)
		}
	}
}

func TestAreaBreakdown(t *testing.T) {
	a, ok := AreaBreakdown(16, 4)
	if !ok || a.Routing() != 26 {
		t.Errorf("16@4nm = %v, %v", a, ok)
	}
	for key, share := range areaTable {
		sum := 0
		for _, v := range share {
			sum += v
		}
		if sum != 100 {
			t.Errorf("%+v sums to %d", key, sum)
		}
	}
	d, ok := AreaBreakdown(32, 3)
	if ok || d != DefaultAreaShare {
		t.Errorf("fallback = %v, %v", d, ok)
	}
	if !strings.HasPrefix(a.String(), "Compute (multipliers+tree) 42%") {
		t.Errorf("rendering %q", a.String())
	}
}

func TestParseNode(t *testing.T) {
	if n, err := ParseNode("7nm"); err != nil || n != 7 {
		t.Errorf("ParseNode(7nm) = %d, %v", n, err)
	}
	if _, err := ParseNode("small"); err == nil {
		t.Error("expected error")
	}
}

func TestRouting(t *testing.T) {
	if Wires(4) != 512 {
		t.Errorf("Wires(4) = %d", Wires(4))
	}
	pts := RoutingCurve(DefaultRoutingSizes)
	last := pts[len(pts)-1]
	if last.Wires != 32768 || last.Multipliers != 1024 || last.FMAs != 32768 {
		t.Errorf("32x32 = %+v", last)
	}
	if !strings.HasSuffix(pts[0].String(), "= 512 wires") {
		t.Errorf("rendering %q", pts[0])
	}
}
