package cipher

import (
	stdcipher "crypto/cipher"
	"fmt"

	"github.com/GeorgyFirsov/bcm-lib/internal/secure"
)

const (
	// KuznyechikBlockSize is the Kuznyechik block size in bytes.
	KuznyechikBlockSize = 16

	// KuznyechikKeySize is the Kuznyechik key size in bytes.
	KuznyechikKeySize = 32

	kuznyechikRounds = 10
)

// Kuznyechik returns the GOST R 34.12-2015 128-bit block cipher capability.
//
// The implementation is table driven: every round indexes precomputed tables
// with key dependent bytes, so it is not constant time and may leak key
// material through cache timing to code sharing the CPU. Use AES or
// BitslicedAES where that matters.
func Kuznyechik() Cipher {
	return FromBlock("kuznyechik", KuznyechikBlockSize, []int{KuznyechikKeySize}, NewKuznyechik)
}

// Substitution pi from GOST R 34.12-2015.
var kuznyechikPi = [256]byte{
	0xfc, 0xee, 0xdd, 0x11, 0xcf, 0x6e, 0x31, 0x16, 0xfb, 0xc4, 0xfa, 0xda, 0x23, 0xc5, 0x04, 0x4d,
	0xe9, 0x77, 0xf0, 0xdb, 0x93, 0x2e, 0x99, 0xba, 0x17, 0x36, 0xf1, 0xbb, 0x14, 0xcd, 0x5f, 0xc1,
	0xf9, 0x18, 0x65, 0x5a, 0xe2, 0x5c, 0xef, 0x21, 0x81, 0x1c, 0x3c, 0x42, 0x8b, 0x01, 0x8e, 0x4f,
	0x05, 0x84, 0x02, 0xae, 0xe3, 0x6a, 0x8f, 0xa0, 0x06, 0x0b, 0xed, 0x98, 0x7f, 0xd4, 0xd3, 0x1f,
	0xeb, 0x34, 0x2c, 0x51, 0xea, 0xc8, 0x48, 0xab, 0xf2, 0x2a, 0x68, 0xa2, 0xfd, 0x3a, 0xce, 0xcc,
	0xb5, 0x70, 0x0e, 0x56, 0x08, 0x0c, 0x76, 0x12, 0xbf, 0x72, 0x13, 0x47, 0x9c, 0xb7, 0x5d, 0x87,
	0x15, 0xa1, 0x96, 0x29, 0x10, 0x7b, 0x9a, 0xc7, 0xf3, 0x91, 0x78, 0x6f, 0x9d, 0x9e, 0xb2, 0xb1,
	0x32, 0x75, 0x19, 0x3d, 0xff, 0x35, 0x8a, 0x7e, 0x6d, 0x54, 0xc6, 0x80, 0xc3, 0xbd, 0x0d, 0x57,
	0xdf, 0xf5, 0x24, 0xa9, 0x3e, 0xa8, 0x43, 0xc9, 0xd7, 0x79, 0xd6, 0xf6, 0x7c, 0x22, 0xb9, 0x03,
	0xe0, 0x0f, 0xec, 0xde, 0x7a, 0x94, 0xb0, 0xbc, 0xdc, 0xe8, 0x28, 0x50, 0x4e, 0x33, 0x0a, 0x4a,
	0xa7, 0x97, 0x60, 0x73, 0x1e, 0x00, 0x62, 0x44, 0x1a, 0xb8, 0x38, 0x82, 0x64, 0x9f, 0x26, 0x41,
	0xad, 0x45, 0x46, 0x92, 0x27, 0x5e, 0x55, 0x2f, 0x8c, 0xa3, 0xa5, 0x7d, 0x69, 0xd5, 0x95, 0x3b,
	0x07, 0x58, 0xb3, 0x40, 0x86, 0xac, 0x1d, 0xf7, 0x30, 0x37, 0x6b, 0xe4, 0x88, 0xd9, 0xe7, 0x89,
	0xe1, 0x1b, 0x83, 0x49, 0x4c, 0x3f, 0xf8, 0xfe, 0x8d, 0x53, 0xaa, 0x90, 0xca, 0xd8, 0x85, 0x61,
	0x20, 0x71, 0x67, 0xa4, 0x2d, 0x2b, 0x09, 0x5b, 0xcb, 0x9b, 0x25, 0xd0, 0xbe, 0xe5, 0x6c, 0x52,
	0x59, 0xa6, 0x74, 0xd2, 0xe6, 0xf4, 0xb4, 0xc0, 0xd1, 0x66, 0xaf, 0xc2, 0x39, 0x4b, 0x63, 0xb6,
}

// Coefficients of the linear transformation l.
var kuznyechikLVec = [KuznyechikBlockSize]byte{
	148, 32, 133, 16, 194, 192, 1, 251, 1, 192, 194, 16, 133, 32, 148, 1,
}

var (
	kuznyechikPiInv [256]byte

	// kuznyechikLS[j][v] is L(S(x)) for x holding v at position j and zeroes
	// elsewhere, kuznyechikLInv the same for the inverse of L alone. Both
	// transforms are linear, so a full block is the XOR of 16 lookups.
	kuznyechikLS   [KuznyechikBlockSize][256][KuznyechikBlockSize]byte
	kuznyechikLInv [KuznyechikBlockSize][256][KuznyechikBlockSize]byte

	kuznyechikC [32][KuznyechikBlockSize]byte
)

func init() {
	for i, v := range kuznyechikPi {
		kuznyechikPiInv[v] = byte(i)
	}

	var l [KuznyechikBlockSize][256][KuznyechikBlockSize]byte
	for j := 0; j < KuznyechikBlockSize; j++ {
		for v := 0; v < 256; v++ {
			var a [KuznyechikBlockSize]byte
			a[j] = byte(v)
			b := a
			for r := 0; r < KuznyechikBlockSize; r++ {
				kuznyechikR(&a)
				kuznyechikRInv(&b)
			}
			l[j][v] = a
			kuznyechikLInv[j][v] = b
		}
	}
	for j := 0; j < KuznyechikBlockSize; j++ {
		for v := 0; v < 256; v++ {
			kuznyechikLS[j][v] = l[j][kuznyechikPi[v]]
		}
	}

	for i := range kuznyechikC {
		var a [KuznyechikBlockSize]byte
		a[KuznyechikBlockSize-1] = byte(i + 1)
		for r := 0; r < KuznyechikBlockSize; r++ {
			kuznyechikR(&a)
		}
		kuznyechikC[i] = a
	}
}

// gf256Mul multiplies in GF(2^8) modulo x^8 + x^7 + x^6 + x + 1.
func gf256Mul(a, b byte) byte {
	var r byte
	for b != 0 {
		if b&1 != 0 {
			r ^= a
		}
		hi := a & 0x80
		a <<= 1
		if hi != 0 {
			a ^= 0xc3
		}
		b >>= 1
	}
	return r
}

func kuznyechikR(a *[KuznyechikBlockSize]byte) {
	var x byte
	for i, v := range a {
		x ^= gf256Mul(v, kuznyechikLVec[i])
	}
	copy(a[1:], a[:KuznyechikBlockSize-1])
	a[0] = x
}

func kuznyechikRInv(a *[KuznyechikBlockSize]byte) {
	first := a[0]
	copy(a[:KuznyechikBlockSize-1], a[1:])
	a[KuznyechikBlockSize-1] = first

	var x byte
	for i, v := range a {
		x ^= gf256Mul(v, kuznyechikLVec[i])
	}
	a[KuznyechikBlockSize-1] = x
}

func kuznyechikApply(tab *[KuznyechikBlockSize][256][KuznyechikBlockSize]byte, a *[KuznyechikBlockSize]byte) {
	var out [KuznyechikBlockSize]byte
	for j, v := range a {
		t := &tab[j][v]
		for i := range out {
			out[i] ^= t[i]
		}
	}
	*a = out
}

func kuznyechikXOR(a, k *[KuznyechikBlockSize]byte) {
	for i := range a {
		a[i] ^= k[i]
	}
}

type kuznyechikBlock struct {
	rk [kuznyechikRounds][KuznyechikBlockSize]byte
}

// NewKuznyechik expands a 256-bit key into a crypto/cipher.Block.
func NewKuznyechik(key []byte) (stdcipher.Block, error) {
	if len(key) != KuznyechikKeySize {
		return nil, fmt.Errorf("kuznyechik: %w: %d", ErrInvalidKeySize, len(key))
	}

	b := new(kuznyechikBlock)
	var k1, k2 [KuznyechikBlockSize]byte
	copy(k1[:], key[:KuznyechikBlockSize])
	copy(k2[:], key[KuznyechikBlockSize:])
	defer secure.ZeroAll(k1[:], k2[:])

	b.rk[0], b.rk[1] = k1, k2
	for i := 0; i < 4; i++ {
		for j := 0; j < 8; j++ {
			t := k1
			kuznyechikXOR(&t, &kuznyechikC[8*i+j])
			kuznyechikApply(&kuznyechikLS, &t)
			kuznyechikXOR(&t, &k2)
			k1, k2 = t, k1
		}
		b.rk[2+2*i], b.rk[3+2*i] = k1, k2
	}

	return b, nil
}

func (b *kuznyechikBlock) BlockSize() int {
	return KuznyechikBlockSize
}

func (b *kuznyechikBlock) Encrypt(dst, src []byte) {
	if len(src) < KuznyechikBlockSize || len(dst) < KuznyechikBlockSize {
		panic("kuznyechik: short buffer")
	}

	var a [KuznyechikBlockSize]byte
	copy(a[:], src)
	for i := 0; i < kuznyechikRounds-1; i++ {
		kuznyechikXOR(&a, &b.rk[i])
		kuznyechikApply(&kuznyechikLS, &a)
	}
	kuznyechikXOR(&a, &b.rk[kuznyechikRounds-1])
	copy(dst, a[:])
}

func (b *kuznyechikBlock) Decrypt(dst, src []byte) {
	if len(src) < KuznyechikBlockSize || len(dst) < KuznyechikBlockSize {
		panic("kuznyechik: short buffer")
	}

	var a [KuznyechikBlockSize]byte
	copy(a[:], src)
	kuznyechikXOR(&a, &b.rk[kuznyechikRounds-1])
	for i := kuznyechikRounds - 2; i >= 0; i-- {
		kuznyechikApply(&kuznyechikLInv, &a)
		for j, v := range a {
			a[j] = kuznyechikPiInv[v]
		}
		kuznyechikXOR(&a, &b.rk[i])
	}
	copy(dst, a[:])
}

// Reset clears the round keys.
func (b *kuznyechikBlock) Reset() {
	for i := range b.rk {
		secure.Zero(b.rk[i][:])
	}
}
