package precision

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestCast16Idempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 10000; i++ {
		v := (rng.Float64() - 0.5) * math.Pow(10, float64(rng.IntN(12)-6))
		once := Cast16(v)
		twice := Cast16(once)
		if once != twice {
			t.Fatalf("Cast16 not idempotent for %v: %v then %v", v, once, twice)
		}
	}
}

func TestCast16LowBitsZero(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	lowMask := uint32(1<<TruncatedBits - 1)
	for i := 0; i < 10000; i++ {
		v := (rng.Float64() - 0.5) * 6
		bits := math.Float32bits(float32(Cast16(v)))
		if bits&lowMask != 0 {
			t.Fatalf("Cast16(%v) kept low mantissa bits: %032b", v, bits)
		}
	}
}

func TestCast16TruncatesTowardZero(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	for i := 0; i < 10000; i++ {
		v := (rng.Float64() - 0.5) * 6
		f32 := float64(float32(v))
		c := Cast16(v)
		if math.Abs(c) > math.Abs(f32) {
			t.Fatalf("Cast16(%v) = %v grew in magnitude past %v", v, c, f32)
		}
		if math.Signbit(c) != math.Signbit(f32) && c != 0 {
			t.Fatalf("Cast16(%v) flipped sign: %v", v, c)
		}
	}
}

func TestCast16KnownValues(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"one", 1, 1},
		{"half", 0.5, 0.5},
		{"two", 2, 2},
		{"negative one point five", -1.5, -1.5},
		// 0.1 in float32 is 0x3dcccccd; truncation leaves 0x3dcc c000
		{"tenth", 0.1, float64(math.Float32frombits(0x3dccc000))},
		{"third", 1.0 / 3.0, float64(math.Float32frombits(0x3eaaa000))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cast16(tt.in); got != tt.want {
				t.Errorf("Cast16(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCast16NonFinitePassThrough(t *testing.T) {
	if got := Cast16(math.Inf(1)); !math.IsInf(got, 1) {
		t.Errorf("expected +Inf, got %v", got)
	}
	if got := Cast16(math.Inf(-1)); !math.IsInf(got, -1) {
		t.Errorf("expected -Inf, got %v", got)
	}
	if got := Cast16(math.NaN()); !math.IsNaN(got) {
		t.Errorf("expected NaN, got %v", got)
	}
}

func TestCast16Slice(t *testing.T) {
	src := []float64{0.1, 0.2, 1}
	dst := make([]float64, len(src))
	Cast16Slice(dst, src)
	for i := range src {
		if dst[i] != Cast16(src[i]) {
			t.Errorf("index %d: got %v want %v", i, dst[i], Cast16(src[i]))
		}
	}

	// mismatched lengths leave dst untouched
	short := []float64{42}
	Cast16Slice(short, src)
	if short[0] != 42 {
		t.Errorf("expected untouched dst, got %v", short[0])
	}
}

func TestIsExact(t *testing.T) {
	for _, v := range []float64{0, 0.5, 1, 1.5, 2, 1024, -0.25} {
		if !IsExact(v) {
			t.Errorf("expected %v to be exact", v)
		}
	}
	for _, v := range []float64{0.1, 0.3, 1.0 / 3.0} {
		if IsExact(v) {
			t.Errorf("expected %v to lose precision", v)
		}
	}
	if !IsExact(math.NaN()) {
		t.Error("NaN should pass through unchanged")
	}
}

func TestFormat(t *testing.T) {
	if FP16.Bits() != 16 || FP32.Bits() != 32 {
		t.Errorf("unexpected widths: %d %d", FP16.Bits(), FP32.Bits())
	}
	if FP16.String() != "FP16" || FP32.String() != "FP32" {
		t.Errorf("unexpected names: %s %s", FP16, FP32)
	}
	if Format(9).String() != "unknown" {
		t.Errorf("unexpected name for invalid format: %s", Format(9))
	}
}
