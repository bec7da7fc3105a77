package precision

import (
	"math"
)

// Format tags a value with the precision it is logically held in.
type Format int

const (
	FP16 Format = iota
	FP32
)

func (f Format) String() string {
	switch f {
	case FP16:
		return "FP16"
	case FP32:
		return "FP32"
	default:
		return "unknown"
	}
}

// Bits returns the storage width of the format.
func (f Format) Bits() int {
	if f == FP16 {
		return 16
	}
	return 32
}

const (
	// MantissaBits is the number of explicit mantissa bits kept by Cast16.
	MantissaBits = 10
	// ExponentBits is the binary16 exponent width.
	ExponentBits = 5

	// TruncatedBits is how many low float32 mantissa bits Cast16 zeroes.
	TruncatedBits = 23 - MantissaBits

	truncateMask uint32 = ^uint32(1<<TruncatedBits - 1)
)

// Cast16 returns v as if it had been stored with a 10-bit mantissa.
// The value goes through float32 and the low 13 mantissa bits are zeroed,
// which rounds toward zero. The float32 exponent is kept as is.
// Inf and NaN are returned unchanged.
func Cast16(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	bits := math.Float32bits(float32(v))
	return float64(math.Float32frombits(bits & truncateMask))
}

// Cast16Slice writes Cast16(src[i]) into dst. Lengths must match.
func Cast16Slice(dst, src []float64) {
	n := len(src)
	if n != len(dst) {
		return
	}
	for i := 0; i < n; i++ {
		dst[i] = Cast16(src[i])
	}
}

// IsExact reports whether v survives Cast16 unchanged.
func IsExact(v float64) bool {
	c := Cast16(v)
	if math.IsNaN(v) {
		return math.IsNaN(c)
	}
	return c == v
}
