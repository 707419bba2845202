package cipher

import (
	stdcipher "crypto/cipher"
	"encoding/binary"
	"fmt"
	"math/bits"
)

const (
	// MagmaBlockSize is the Magma block size in bytes.
	MagmaBlockSize = 8

	// MagmaKeySize is the Magma key size in bytes.
	MagmaKeySize = 32

	magmaRounds = 32
)

// Magma returns the GOST R 34.12-2015 64-bit block cipher capability.
// Its S-box lookups are indexed by key dependent data and are not constant
// time.
func Magma() Cipher {
	return FromBlock("magma", MagmaBlockSize, []int{MagmaKeySize}, NewMagma)
}

// S-boxes pi_0 .. pi_7 from GOST R 34.12-2015 (id-tc26-gost-28147-param-Z).
var magmaPi = [8][16]byte{
	{0xc, 0x4, 0x6, 0x2, 0xa, 0x5, 0xb, 0x9, 0xe, 0x8, 0xd, 0x7, 0x0, 0x3, 0xf, 0x1},
	{0x6, 0x8, 0x2, 0x3, 0x9, 0xa, 0x5, 0xc, 0x1, 0xe, 0x4, 0x7, 0xb, 0xd, 0x0, 0xf},
	{0xb, 0x3, 0x5, 0x8, 0x2, 0xf, 0xa, 0xd, 0xe, 0x1, 0x7, 0x4, 0xc, 0x9, 0x6, 0x0},
	{0xc, 0x8, 0x2, 0x1, 0xd, 0x4, 0xf, 0x6, 0x7, 0x0, 0xa, 0x5, 0x3, 0xe, 0x9, 0xb},
	{0x7, 0xf, 0x5, 0xa, 0x8, 0x1, 0x6, 0xd, 0x0, 0x9, 0x3, 0xe, 0xb, 0x4, 0x2, 0xc},
	{0x5, 0xd, 0xf, 0x6, 0x9, 0x2, 0xc, 0xa, 0xb, 0x7, 0x8, 0x1, 0x4, 0x3, 0xe, 0x0},
	{0x8, 0xe, 0x2, 0x5, 0x6, 0x9, 0x1, 0xc, 0xf, 0x4, 0xb, 0x0, 0xd, 0xa, 0x3, 0x7},
	{0x1, 0x7, 0xe, 0xd, 0x0, 0x5, 0x8, 0x3, 0x4, 0xf, 0xa, 0x6, 0x9, 0xc, 0xb, 0x2},
}

func magmaT(a uint32) uint32 {
	var r uint32
	for i := 0; i < 8; i++ {
		r |= uint32(magmaPi[i][(a>>(4*i))&0xf]) << (4 * i)
	}
	return r
}

func magmaG(k, a uint32) uint32 {
	return bits.RotateLeft32(magmaT(a+k), 11)
}

type magmaBlock struct {
	k [8]uint32
}

// NewMagma expands a 256-bit key into a crypto/cipher.Block.
func NewMagma(key []byte) (stdcipher.Block, error) {
	if len(key) != MagmaKeySize {
		return nil, fmt.Errorf("magma: %w: %d", ErrInvalidKeySize, len(key))
	}

	b := new(magmaBlock)
	for i := range b.k {
		b.k[i] = binary.BigEndian.Uint32(key[4*i:])
	}
	return b, nil
}

func (b *magmaBlock) BlockSize() int {
	return MagmaBlockSize
}

// Round keys run K1..K8 three times, then K8..K1.
func (b *magmaBlock) encryptKey(i int) uint32 {
	if i < 24 {
		return b.k[i%8]
	}
	return b.k[7-i%8]
}

func (b *magmaBlock) decryptKey(i int) uint32 {
	if i < 8 {
		return b.k[i]
	}
	return b.k[7-i%8]
}

func (b *magmaBlock) crypt(dst, src []byte, key func(int) uint32) {
	if len(src) < MagmaBlockSize || len(dst) < MagmaBlockSize {
		panic("magma: short buffer")
	}

	a1 := binary.BigEndian.Uint32(src[0:])
	a0 := binary.BigEndian.Uint32(src[4:])
	for i := 0; i < magmaRounds-1; i++ {
		a1, a0 = a0, magmaG(key(i), a0)^a1
	}
	a1 ^= magmaG(key(magmaRounds-1), a0)

	binary.BigEndian.PutUint32(dst[0:], a1)
	binary.BigEndian.PutUint32(dst[4:], a0)
}

func (b *magmaBlock) Encrypt(dst, src []byte) {
	b.crypt(dst, src, b.encryptKey)
}

func (b *magmaBlock) Decrypt(dst, src []byte) {
	b.crypt(dst, src, b.decryptKey)
}

// Reset clears the key.
func (b *magmaBlock) Reset() {
	for i := range b.k {
		b.k[i] = 0
	}
}
