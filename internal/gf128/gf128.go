// Package gf128 implements arithmetic in GF(2^128) as used by the wide-block
// modes. Elements are 16 byte little-endian polynomials: bit i of the 128-bit
// integer is the coefficient of x^i, reduced modulo x^128 + x^7 + x^2 + x + 1.
// This is the representation of the IEEE P1619 XTS tweak.
package gf128

import "encoding/binary"

// Size is the byte length of an element.
const Size = 16

// Element is a field element in little-endian byte order.
type Element [Size]byte

// FromBytes copies the first Size bytes of b into an Element.
func FromBytes(b []byte) Element {
	var e Element
	copy(e[:], b[:Size])
	return e
}

// FromUint64 returns the element whose low 64 coefficients are v.
func FromUint64(v uint64) Element {
	var e Element
	binary.LittleEndian.PutUint64(e[:8], v)
	return e
}

func (e *Element) split() (lo, hi uint64) {
	return binary.LittleEndian.Uint64(e[:8]), binary.LittleEndian.Uint64(e[8:])
}

func join(lo, hi uint64) Element {
	var e Element
	binary.LittleEndian.PutUint64(e[:8], lo)
	binary.LittleEndian.PutUint64(e[8:], hi)
	return e
}

// Xor returns a + b.
func Xor(a, b Element) Element {
	alo, ahi := a.split()
	blo, bhi := b.split()
	return join(alo^blo, ahi^bhi)
}

func mulX(lo, hi uint64) (uint64, uint64) {
	carry := hi >> 63
	hi = hi<<1 | lo>>63
	lo = lo<<1 ^ 0x87&-carry
	return lo, hi
}

// MulX returns a * x, the product with the primitive element.
func MulX(a Element) Element {
	return join(mulX(a.split()))
}

// Mul returns a * b. It runs in time independent of both operands.
func Mul(a, b Element) Element {
	alo, ahi := a.split()
	blo, bhi := b.split()

	var rlo, rhi uint64
	for _, word := range [2]uint64{blo, bhi} {
		for i := 0; i < 64; i++ {
			mask := -(word >> i & 1)
			rlo ^= alo & mask
			rhi ^= ahi & mask
			alo, ahi = mulX(alo, ahi)
		}
	}

	return join(rlo, rhi)
}
