// Package cmc implements the CMC wide-block tweakable mode over any 128-bit
// block cipher capability. A sector is encrypted as one unit: changing any
// plaintext bit changes every ciphertext block.
//
// Encryption runs a CBC pass seeded with the encrypted tweak, masks every
// block with 2 * (first ^ last), then runs a second chained pass from the
// last block back to the first.
package cmc

import (
	"errors"
	"fmt"

	"github.com/GeorgyFirsov/bcm-lib/internal/gf128"
	"github.com/GeorgyFirsov/bcm-lib/internal/secure"
	"github.com/GeorgyFirsov/bcm-lib/pkg/cipher"
)

// BlockSize is the only cipher block size CMC is defined for here.
const BlockSize = 16

var (
	// ErrUnsupportedBlockSize is returned for ciphers without a 128-bit block.
	ErrUnsupportedBlockSize = errors.New("cmc: unsupported block size")

	// ErrInvalidKeySize is returned when the data and tweak keys differ in
	// size or are not accepted by the cipher.
	ErrInvalidKeySize = errors.New("cmc: invalid key size")

	// ErrInvalidLength is returned when data is empty, is not a multiple of
	// BlockSize, or dst and src differ in length.
	ErrInvalidLength = errors.New("cmc: invalid data length")
)

// Cipher encrypts and decrypts whole sectors. It may be used concurrently.
type Cipher struct {
	data  cipher.Schedule
	tweak cipher.Schedule
}

// New returns a CMC instance over c with the given data and tweak keys.
func New(c cipher.Cipher, dataKey, tweakKey []byte) (*Cipher, error) {
	if c.BlockSize() != BlockSize {
		return nil, fmt.Errorf("%w: %s has %d byte blocks", ErrUnsupportedBlockSize, c.Name(), c.BlockSize())
	}
	if len(dataKey) != len(tweakKey) || !cipher.ValidKeySize(c, len(dataKey)) {
		return nil, fmt.Errorf("%w: data %d, tweak %d", ErrInvalidKeySize, len(dataKey), len(tweakKey))
	}

	data, err := c.Schedule(dataKey)
	if err != nil {
		return nil, fmt.Errorf("cmc: %w", err)
	}
	tweak, err := c.Schedule(tweakKey)
	if err != nil {
		data.Reset()
		return nil, fmt.Errorf("cmc: %w", err)
	}

	return &Cipher{data: data, tweak: tweak}, nil
}

func check(dst, src []byte) error {
	if len(src) == 0 || len(src)%BlockSize != 0 || len(dst) != len(src) {
		return fmt.Errorf("%w: dst %d, src %d", ErrInvalidLength, len(dst), len(src))
	}
	return nil
}

func block(b []byte, i int) []byte {
	return b[i*BlockSize : (i+1)*BlockSize]
}

// encryptTweak returns E(tweak key, tweak) with the tweak laid out as a
// little-endian 64-bit integer in the first half of the block.
func (m *Cipher) encryptTweak(tweak uint64) (gf128.Element, error) {
	t := gf128.FromUint64(tweak)
	if err := m.tweak.EncryptBlock(t[:], t[:]); err != nil {
		return gf128.Element{}, fmt.Errorf("cmc: %w", err)
	}
	return t, nil
}

// mask XORs 2 * (first ^ last) into every block of b.
func mask(b []byte, n int) {
	var mm gf128.Element
	secure.XOR(mm[:], block(b, 0), block(b, n-1))
	mm = gf128.MulX(mm)
	for i := 0; i < n; i++ {
		secure.XOR(block(b, i), block(b, i), mm[:])
	}
	secure.Zero(mm[:])
}

// Encrypt encrypts one sector of src into dst under tweak. dst and src must
// either be the same slice or not overlap at all.
func (m *Cipher) Encrypt(dst, src []byte, tweak uint64) error {
	if err := check(dst, src); err != nil {
		return err
	}
	n := len(src) / BlockSize

	t, err := m.encryptTweak(tweak)
	if err != nil {
		return err
	}
	defer secure.Zero(t[:])

	// First pass: CBC chained from the encrypted tweak.
	prev := t[:]
	for i := 0; i < n; i++ {
		out := block(dst, i)
		secure.XOR(out, prev, block(src, i))
		if err := m.data.EncryptBlock(out, out); err != nil {
			return fmt.Errorf("cmc: %w", err)
		}
		prev = out
	}

	mask(dst, n)

	// Second pass: every block is chained with the masked value of its
	// successor, the last one with the encrypted tweak.
	for i := 0; i < n; i++ {
		out := block(dst, i)
		if err := m.data.EncryptBlock(out, out); err != nil {
			return fmt.Errorf("cmc: %w", err)
		}
		next := t[:]
		if i+1 < n {
			next = block(dst, i+1)
		}
		secure.XOR(out, out, next)
	}

	return nil
}

// Decrypt decrypts one sector of src into dst under tweak.
func (m *Cipher) Decrypt(dst, src []byte, tweak uint64) error {
	if err := check(dst, src); err != nil {
		return err
	}
	n := len(src) / BlockSize

	t, err := m.encryptTweak(tweak)
	if err != nil {
		return err
	}
	defer secure.Zero(t[:])

	// Undo the second pass from the last block back to the first.
	next := t[:]
	for i := n - 1; i >= 0; i-- {
		out := block(dst, i)
		secure.XOR(out, block(src, i), next)
		if err := m.data.DecryptBlock(out, out); err != nil {
			return fmt.Errorf("cmc: %w", err)
		}
		next = out
	}

	// The mask is its own inverse: first ^ last is unchanged by it.
	mask(dst, n)

	// Undo the CBC pass. Walking backwards keeps the previous ciphertext
	// block available.
	for i := n - 1; i >= 0; i-- {
		out := block(dst, i)
		if err := m.data.DecryptBlock(out, out); err != nil {
			return fmt.Errorf("cmc: %w", err)
		}
		prev := t[:]
		if i > 0 {
			prev = block(dst, i-1)
		}
		secure.XOR(out, out, prev)
	}

	return nil
}

// Reset clears both key schedules. The Cipher must not be used afterwards.
func (m *Cipher) Reset() {
	m.data.Reset()
	m.tweak.Reset()
}
