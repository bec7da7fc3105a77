package matrix

import (
	"errors"
	"testing"

	"github.com/23skdu/longbow-tensorsim/internal/precision"
)

// constSource always returns the same draw.
type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

func TestParseFillMode(t *testing.T) {
	tests := []struct {
		in      string
		want    FillMode
		wantErr bool
	}{
		{"random", FillRandom, false},
		{"Identity", FillIdentity, false},
		{" ones ", FillOnes, false},
		{"PATTERN", FillPattern, false},
		{"diagonal", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFillMode(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFillMode) {
					t.Errorf("expected ErrUnknownFillMode, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFillMode(%q) = %v, %v", tt.in, got, err)
			}
			if got.String() != fillNames[tt.want] {
				t.Errorf("String() = %q", got.String())
			}
		})
	}
}

func TestGenerateIdentity(t *testing.T) {
	m, err := Generate(FillIdentity, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			want := 0.0
			if r == c {
				want = 1.0
			}
			if m.At(r, c) != want {
				t.Errorf("(%d,%d) = %v want %v", r, c, m.At(r, c), want)
			}
		}
	}
}

func TestGenerateOnes(t *testing.T) {
	m, _ := Generate(FillOnes, 3, nil)
	for _, v := range m.Data() {
		if v != 1 {
			t.Fatalf("ones cell = %v", v)
		}
	}
}

func TestGeneratePattern(t *testing.T) {
	raw, _ := GenerateRaw(FillPattern, 4, nil)
	cast, _ := Generate(FillPattern, 4, nil)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			want := float64(r+c) * 0.1
			if r == c {
				want = float64(r+1) * 0.5
			}
			if raw.At(r, c) != want {
				t.Errorf("raw (%d,%d) = %v want %v", r, c, raw.At(r, c), want)
			}
			if cast.At(r, c) != precision.Cast16(want) {
				t.Errorf("cast (%d,%d) = %v want %v", r, c, cast.At(r, c), precision.Cast16(want))
			}
		}
	}
	// diagonal multiples of 0.5 are exact, 0.1 steps are not
	if !precision.IsExact(cast.At(2, 2)) || raw.At(0, 1) == cast.At(0, 1) {
		t.Error("expected exact diagonal and truncated off-diagonal")
	}
}

func TestGenerateRandomRange(t *testing.T) {
	src := NewSeededSource(7)
	m, err := Generate(FillRandom, 16, src)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range m.Data() {
		if v < -3 || v >= 3 {
			t.Fatalf("random cell %v outside [-3, 3)", v)
		}
		if !precision.IsExact(v) {
			t.Fatalf("random cell %v was not cast", v)
		}
	}
}

func TestGenerateRandomReproducible(t *testing.T) {
	a, _ := Generate(FillRandom, 4, NewSeededSource(42))
	b, _ := Generate(FillRandom, 4, NewSeededSource(42))
	if !a.Equal(b) {
		t.Error("same seed produced different matrices")
	}
	c, _ := Generate(FillRandom, 4, NewSeededSource(43))
	if a.Equal(c) {
		t.Error("different seeds produced identical matrices")
	}
}

func TestGenerateRandomExtremes(t *testing.T) {
	lo, _ := GenerateRaw(FillRandom, 2, constSource(0))
	hi, _ := GenerateRaw(FillRandom, 2, constSource(0.5))
	if lo.At(0, 0) != -3 || hi.At(1, 1) != 0 {
		t.Errorf("unexpected mapping: %v %v", lo.At(0, 0), hi.At(1, 1))
	}
}

func TestGenerateUnknownMode(t *testing.T) {
	if _, err := Generate(FillMode(99), 4, nil); !errors.Is(err, ErrUnknownFillMode) {
		t.Errorf("expected ErrUnknownFillMode, got %v", err)
	}
	if FillMode(99).String() != "FillMode(99)" {
		t.Errorf("unexpected String: %s", FillMode(99))
	}
}

func TestGenerateEmpty(t *testing.T) {
	m, err := Generate(FillOnes, 0, nil)
	if err != nil || !m.Empty() {
		t.Errorf("expected empty matrix, got n=%d err=%v", m.N(), err)
	}
}

func TestDeterministic(t *testing.T) {
	for _, mode := range FillModes() {
		if mode.Deterministic() == (mode == FillRandom) {
			t.Errorf("%v: Deterministic() = %v", mode, mode.Deterministic())
		}
	}
}
