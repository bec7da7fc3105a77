package matrix

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/23skdu/longbow-tensorsim/internal/precision"
)

// DefaultSize is the tile edge of the modeled tensor core.
const DefaultSize = 4

var ErrNotSquare = errors.New("matrix is not square")

// Matrix is an immutable square grid stored row-major.
// The zero value is the empty 0×0 matrix.
type Matrix struct {
	n    int
	data []float64
}

// Zero returns an n×n matrix of zeros. Non-positive n yields the empty matrix.
func Zero(n int) Matrix {
	if n <= 0 {
		return Matrix{}
	}
	return Matrix{n: n, data: make([]float64, n*n)}
}

// FromData builds an n×n matrix from a row-major slice. The slice is copied.
func FromData(n int, data []float64) (Matrix, error) {
	if n <= 0 {
		if len(data) != 0 {
			return Matrix{}, fmt.Errorf("%d values for empty matrix: %w", len(data), ErrNotSquare)
		}
		return Matrix{}, nil
	}
	if len(data) != n*n {
		return Matrix{}, fmt.Errorf("%d values for %dx%d matrix: %w", len(data), n, n, ErrNotSquare)
	}
	m := Zero(n)
	copy(m.data, data)
	return m, nil
}

// FromRows builds a matrix from nested rows.
func FromRows(rows [][]float64) (Matrix, error) {
	n := len(rows)
	m := Zero(n)
	for r, row := range rows {
		if len(row) != n {
			return Matrix{}, fmt.Errorf("row %d has %d columns, want %d: %w", r, len(row), n, ErrNotSquare)
		}
		copy(m.data[r*n:(r+1)*n], row)
	}
	return m, nil
}

func (m Matrix) N() int { return m.n }

func (m Matrix) Empty() bool { return m.n == 0 }

func (m Matrix) At(r, c int) float64 { return m.data[r*m.n+c] }

// Row returns a copy of row r.
func (m Matrix) Row(r int) []float64 {
	out := make([]float64, m.n)
	copy(out, m.data[r*m.n:(r+1)*m.n])
	return out
}

// Col returns a copy of column c.
func (m Matrix) Col(c int) []float64 {
	out := make([]float64, m.n)
	for r := 0; r < m.n; r++ {
		out[r] = m.data[r*m.n+c]
	}
	return out
}

// Rows returns a nested copy, the shape renderers usually want.
func (m Matrix) Rows() [][]float64 {
	out := make([][]float64, m.n)
	for r := range out {
		out[r] = m.Row(r)
	}
	return out
}

// Data returns a row-major copy of the values.
func (m Matrix) Data() []float64 {
	out := make([]float64, len(m.data))
	copy(out, m.data)
	return out
}

// Map returns a new matrix with f applied to every cell.
func (m Matrix) Map(f func(float64) float64) Matrix {
	out := Zero(m.n)
	for i, v := range m.data {
		out.data[i] = f(v)
	}
	return out
}

// Cast16 returns the matrix with every cell passed through precision.Cast16.
func (m Matrix) Cast16() Matrix {
	out := Zero(m.n)
	precision.Cast16Slice(out.data, m.data)
	return out
}

// Scale multiplies every cell by s.
func (m Matrix) Scale(s float64) Matrix {
	out := Zero(m.n)
	if m.n == 0 {
		return out
	}
	vecmath.ScaleBlock(out.data, m.data, s)
	return out
}

// Block returns the size×size sub-matrix whose top-left cell is (r0, c0).
// Cells outside m read as zero.
func (m Matrix) Block(r0, c0, size int) Matrix {
	out := Zero(size)
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			rr, cc := r0+r, c0+c
			if rr < m.n && cc < m.n {
				out.data[r*size+c] = m.data[rr*m.n+cc]
			}
		}
	}
	return out
}

// SameShape reports whether m and o have the same dimension.
func (m Matrix) SameShape(o Matrix) bool { return m.n == o.n }

// Equal reports exact cell-wise equality. NaN cells never compare equal.
func (m Matrix) Equal(o Matrix) bool {
	if m.n != o.n {
		return false
	}
	for i := range m.data {
		if m.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// CountNonFinite returns the number of NaN and Inf cells.
func (m Matrix) CountNonFinite() (nans, infs int) {
	for _, v := range m.data {
		switch {
		case math.IsNaN(v):
			nans++
		case math.IsInf(v, 0):
			infs++
		}
	}
	return nans, infs
}

// Builder fills a matrix cell by cell before freezing it.
type Builder struct {
	m Matrix
}

func NewBuilder(n int) *Builder {
	return &Builder{m: Zero(n)}
}

func (b *Builder) Set(r, c int, v float64) {
	b.m.data[r*b.m.n+c] = v
}

// SetBlock copies src into the builder with its top-left cell at (r0, c0),
// clipping anything that falls outside.
func (b *Builder) SetBlock(r0, c0 int, src Matrix) {
	n := b.m.n
	for r := 0; r < src.n; r++ {
		for c := 0; c < src.n; c++ {
			rr, cc := r0+r, c0+c
			if rr < n && cc < n {
				b.m.data[rr*n+cc] = src.data[r*src.n+c]
			}
		}
	}
}

// Build returns the finished matrix. The builder must not be used afterwards.
func (b *Builder) Build() Matrix {
	m := b.m
	b.m = Matrix{}
	return m
}
