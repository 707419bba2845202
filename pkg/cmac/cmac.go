// Package cmac implements the CMAC message authentication code (OMAC1, NIST
// SP 800-38B, GOST R 34.13-2015 section 5.6) over any block cipher capability
// with a 64 or 128-bit block.
package cmac

import (
	"crypto/subtle"
	"fmt"

	"github.com/GeorgyFirsov/bcm-lib/internal/secure"
	"github.com/GeorgyFirsov/bcm-lib/pkg/cipher"
)

// MAC computes CMAC tags under a single key. A MAC holds no mutable state
// after construction and Sum may be called concurrently.
type MAC struct {
	s         cipher.Schedule
	blockSize int
	owned     bool

	k1, k2 []byte
}

// rb returns the constant for subkey generation, the low bits of the
// lexicographically first irreducible polynomial of degree n.
func rb(blockSize int) (byte, error) {
	switch blockSize {
	case 8:
		return 0x1b, nil
	case 16:
		return 0x87, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedBlockSize, blockSize)
	}
}

// New expands key with c and returns a MAC that owns the resulting schedule.
func New(c cipher.Cipher, key []byte) (*MAC, error) {
	s, err := c.Schedule(key)
	if err != nil {
		return nil, err
	}

	m, err := NewWithSchedule(s, c.BlockSize())
	if err != nil {
		s.Reset()
		return nil, err
	}
	m.owned = true
	return m, nil
}

// NewWithSchedule returns a MAC over an already expanded key. The schedule is
// not reset by (*MAC).Reset.
func NewWithSchedule(s cipher.Schedule, blockSize int) (*MAC, error) {
	r, err := rb(blockSize)
	if err != nil {
		return nil, err
	}

	m := &MAC{
		s:         s,
		blockSize: blockSize,
		k1:        make([]byte, blockSize),
		k2:        make([]byte, blockSize),
	}

	// L = E(K, 0^n), K1 = L << 1 (^ Rb), K2 = K1 << 1 (^ Rb).
	l := make([]byte, blockSize)
	defer secure.Zero(l)
	if err := s.EncryptBlock(l, l); err != nil {
		return nil, fmt.Errorf("cmac: failed to derive subkeys: %w", err)
	}
	double(m.k1, l, r)
	double(m.k2, m.k1, r)

	return m, nil
}

// double sets dst = src << 1 in GF(2^n), reducing by r on carry.
func double(dst, src []byte, r byte) {
	carry := src[0] >> 7
	for i := 0; i < len(src)-1; i++ {
		dst[i] = src[i]<<1 | src[i+1]>>7
	}
	dst[len(src)-1] = src[len(src)-1] << 1
	// Constant time: mask is 0xff iff the top bit was set.
	dst[len(src)-1] ^= r & (0 - carry)
}

// Size returns the full tag size in bytes, equal to the cipher block size.
func (m *MAC) Size() int {
	return m.blockSize
}

// Sum returns the full CMAC tag of msg.
func (m *MAC) Sum(msg []byte) ([]byte, error) {
	bs := m.blockSize
	n := (len(msg) + bs - 1) / bs
	complete := n > 0 && len(msg)%bs == 0
	if n == 0 {
		n = 1
	}

	c := make([]byte, bs)
	for i := 0; i < n-1; i++ {
		secure.XOR(c, c, msg[i*bs:])
		if err := m.s.EncryptBlock(c, c); err != nil {
			return nil, fmt.Errorf("cmac: %w", err)
		}
	}

	last := make([]byte, bs)
	defer secure.Zero(last)
	tail := msg[(n-1)*bs:]
	if complete {
		secure.XOR(last, tail, m.k1)
	} else {
		copy(last, tail)
		last[len(tail)] = 0x80
		secure.XOR(last, last, m.k2)
	}
	secure.XOR(c, c, last)
	if err := m.s.EncryptBlock(c, c); err != nil {
		return nil, fmt.Errorf("cmac: %w", err)
	}

	return c, nil
}

// Reset clears the subkeys, and the key schedule if the MAC owns it.
func (m *MAC) Reset() {
	secure.ZeroAll(m.k1, m.k2)
	if m.owned {
		m.s.Reset()
	}
}

// Digest returns the CMAC tag of msg under key, truncated to its tagSize most
// significant bytes.
func Digest(c cipher.Cipher, key, msg []byte, tagSize int) ([]byte, error) {
	if tagSize <= 0 || tagSize > c.BlockSize() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTagSize, tagSize)
	}

	m, err := New(c, key)
	if err != nil {
		return nil, err
	}
	defer m.Reset()

	tag, err := m.Sum(msg)
	if err != nil {
		return nil, err
	}
	return tag[:tagSize], nil
}

// Verify checks tag against the CMAC of msg under key. The tag may be
// truncated. The comparison takes constant time.
func Verify(c cipher.Cipher, key, msg, tag []byte) error {
	expected, err := Digest(c, key, msg, len(tag))
	if err != nil {
		return err
	}
	defer secure.Zero(expected)

	if subtle.ConstantTimeCompare(expected, tag) != 1 {
		return ErrInvalidTag
	}
	return nil
}
