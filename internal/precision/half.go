package precision

import (
	"fmt"
	"math"
)

// ToHalfBits encodes v as IEEE 754 binary16 bits. The mantissa is
// truncated, values beyond the binary16 range become ±Inf and values
// below the normal range become subnormals or signed zero.
func ToHalfBits(v float64) uint16 {
	bits := math.Float32bits(float32(v))
	sign := bits >> 31
	exp := (bits >> 23) & 0xFF
	mant := bits & 0x7FFFFF

	switch {
	case exp == 0:
		return uint16(sign << 15)
	case exp == 0xFF:
		if mant == 0 {
			return uint16(sign<<15) | 0x7C00
		}
		// keep NaN quiet even when the payload lives in the low bits
		return uint16(sign<<15) | 0x7E00 | uint16(mant>>13)
	}

	newExp := int(exp) - 127 + 15
	if newExp >= 31 {
		return uint16(sign<<15) | 0x7C00
	}
	if newExp <= 0 {
		shift := uint32(1 - newExp)
		if shift > 24 {
			return uint16(sign << 15)
		}
		m := mant | 0x800000
		return uint16(sign<<15) | uint16(m>>(13+shift))
	}
	return uint16(sign<<15) | uint16(newExp<<10) | uint16(mant>>13)
}

// FromHalfBits decodes IEEE 754 binary16 bits.
func FromHalfBits(h uint16) float64 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1F
	mant := uint32(h) & 0x3FF

	var f32 uint32
	switch {
	case exp == 0 && mant == 0:
		f32 = sign << 31
	case exp == 0:
		shift := uint32(0)
		m := mant
		for m < 0x400 {
			m <<= 1
			shift++
		}
		m = (m & 0x3FF) << 13
		e := uint32(127 - 14 - shift)
		f32 = (sign << 31) | (e << 23) | m
	case exp == 31:
		f32 = (sign << 31) | 0x7F800000 | (mant << 13)
	default:
		f32 = (sign << 31) | ((exp - 15 + 127) << 23) | (mant << 13)
	}
	return float64(math.Float32frombits(f32))
}

// HalfHex formats v as its binary16 bit pattern, e.g. "0x3c00".
func HalfHex(v float64) string {
	return fmt.Sprintf("0x%04x", ToHalfBits(v))
}
