package gemm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/23skdu/longbow-tensorsim/internal/matrix"
)

// Term is one multiplier lane of a dot-product unit.
type Term struct {
	K       int
	A       float64
	B       float64
	Product float64
}

// Dot is the breakdown of one output cell into its dot product.
type Dot struct {
	Row, Col int
	Terms    []Term
	Sum      float64
}

// Explain decomposes (a×b)[row][col] into the row·column dot product a
// single dot-product unit (n multipliers plus a reduction tree) computes.
func Explain(a, b matrix.Matrix, row, col int) (Dot, error) {
	n := a.N()
	if b.N() != n {
		return Dot{}, fmt.Errorf("operands %dx%d and %dx%d differ", n, n, b.N(), b.N())
	}
	if row < 0 || row >= n || col < 0 || col >= n {
		return Dot{}, fmt.Errorf("cell (%d,%d) outside %dx%d", row, col, n, n)
	}
	d := Dot{Row: row, Col: col, Terms: make([]Term, n)}
	for k := 0; k < n; k++ {
		t := Term{K: k, A: a.At(row, k), B: b.At(k, col)}
		t.Product = t.A * t.B
		d.Terms[k] = t
		d.Sum += t.Product
	}
	return d, nil
}

func (d Dot) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "C[%d][%d] = dot(A row %d, B col %d)\n", d.Row, d.Col, d.Row, d.Col)
	for _, t := range d.Terms {
		fmt.Fprintf(&sb, "  A[%d][%d](%.1f) × B[%d][%d](%.1f) = %.2f\n", d.Row, t.K, t.A, t.K, d.Col, t.B, t.Product)
	}
	fmt.Fprintf(&sb, "  Sum = %.3f → one dot product unit (%d multipliers + reduction tree)", d.Sum, len(d.Terms))
	return sb.String()
}

// RandomOperand fills an n×n matrix with values in [-2, 2) rounded to one
// decimal, the operand style of the dot-product walkthrough.
func RandomOperand(n int, src matrix.Source) matrix.Matrix {
	if src == nil {
		src = matrix.DefaultSource
	}
	b := matrix.NewBuilder(n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			v := src.Float64()*4 - 2
			b.Set(r, c, roundTenth(v))
		}
	}
	return b.Build()
}

// roundTenth rounds through the decimal rendering so the stored value is
// exactly what "%.1f" prints.
func roundTenth(v float64) float64 {
	out, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	return out
}
