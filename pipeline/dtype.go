package pipeline

import (
	"fmt"
	"math"
)

// DType is the element type a pipeline emits.
type DType int

const (
	Float32 DType = iota
	Float16
)

// ParseDType parses the textual dtype names used on the command line.
func ParseDType(s string) (DType, error) {
	switch s {
	case "", "float32":
		return Float32, nil
	case "float16":
		return Float16, nil
	default:
		return Float32, fmt.Errorf("pipeline: unknown dtype %q", s)
	}
}

func (d DType) String() string {
	if d == Float16 {
		return "float16"
	}
	return "float32"
}

// Size returns the element size in bytes.
func (d DType) Size() int {
	if d == Float16 {
		return 2
	}
	return 4
}

// Float16Bits converts a float32 to IEEE 754 half precision with
// round-to-nearest-even. Overflow saturates to infinity.
func Float16Bits(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits >> 16 & 0x8000)
	exp := int32(bits>>23&0xff) - 127
	mant := bits & 0x7fffff

	switch {
	case exp == 128: // Inf or NaN
		if mant != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp > 15: // overflow
		return sign | 0x7c00
	case exp >= -14: // normal
		out := sign | uint16(exp+15)<<10 | uint16(mant>>13)
		// 13 mantissa bits are dropped; round to nearest even. A carry out
		// of the mantissa bumps the exponent, which is still correct.
		rem := mant & 0x1fff
		if rem > 0x1000 || (rem == 0x1000 && out&1 == 1) {
			out++
		}
		return out
	case exp >= -24: // subnormal
		mant |= 0x800000
		shift := uint32(-exp - 1) // 13..23
		half := uint16(mant >> shift)
		rem := mant & (1<<shift - 1)
		halfway := uint32(1) << (shift - 1)
		if rem > halfway || (rem == halfway && half&1 == 1) {
			half++
		}
		return sign | half
	default: // underflow to zero
		return sign
	}
}

// Float16Slice converts src into half-precision bit patterns.
func Float16Slice(src []float32) []uint16 {
	dst := make([]uint16, len(src))
	for i, f := range src {
		dst[i] = Float16Bits(f)
	}
	return dst
}
