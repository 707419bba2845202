// Package heh implements the HEH (hash-encrypt-hash) wide-block tweakable
// mode over any 128-bit block cipher capability, with a single key.
//
// The tweak is encrypted into tau, and beta = x * tau. The sector is mixed by
// the polynomial hash psi keyed with tau, encrypted block by block, then
// unmixed by the inverse of psi.
package heh

import (
	"errors"
	"fmt"

	"github.com/GeorgyFirsov/bcm-lib/internal/gf128"
	"github.com/GeorgyFirsov/bcm-lib/internal/secure"
	"github.com/GeorgyFirsov/bcm-lib/pkg/cipher"
)

// BlockSize is the only cipher block size HEH is defined for here.
const BlockSize = 16

var (
	// ErrUnsupportedBlockSize is returned for ciphers without a 128-bit block.
	ErrUnsupportedBlockSize = errors.New("heh: unsupported block size")

	// ErrInvalidKeySize is returned for keys not accepted by the cipher.
	ErrInvalidKeySize = errors.New("heh: invalid key size")

	// ErrInvalidLength is returned when data is empty, is not a multiple of
	// BlockSize, or dst and src differ in length.
	ErrInvalidLength = errors.New("heh: invalid data length")
)

// Cipher encrypts and decrypts whole sectors. It may be used concurrently.
type Cipher struct {
	s cipher.Schedule
}

// New returns a HEH instance over c keyed with key.
func New(c cipher.Cipher, key []byte) (*Cipher, error) {
	if c.BlockSize() != BlockSize {
		return nil, fmt.Errorf("%w: %s has %d byte blocks", ErrUnsupportedBlockSize, c.Name(), c.BlockSize())
	}
	if !cipher.ValidKeySize(c, len(key)) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKeySize, len(key))
	}

	s, err := c.Schedule(key)
	if err != nil {
		return nil, fmt.Errorf("heh: %w", err)
	}
	return &Cipher{s: s}, nil
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

func (h *Cipher) tweaks(tweak uint64) (tau, beta gf128.Element, err error) {
	tau = gf128.FromUint64(tweak)
	if err := h.s.EncryptBlock(tau[:], tau[:]); err != nil {
		return tau, beta, fmt.Errorf("heh: %w", err)
	}
	return tau, gf128.MulX(tau), nil
}

// hash returns x[0]*tau^(n-1) + ... + x[n-2]*tau over the blocks of b, plus
// x[n-1] when withLast is set.
func hash(b []byte, n int, tau gf128.Element, withLast bool) gf128.Element {
	var y gf128.Element
	for i := 0; i < n-1; i++ {
		y = gf128.Mul(gf128.Xor(y, gf128.FromBytes(block(b, i))), tau)
	}
	if withLast {
		y = gf128.Xor(y, gf128.FromBytes(block(b, n-1)))
	}
	return y
}

// psi maps src into dst as (x[0]+Y, ..., x[n-2]+Y, Y) masked with
// (x^2*tau, ..., x^n*tau, beta), where Y is the tau hash of src.
func psi(dst, src []byte, n int, tau, beta gf128.Element) {
	y := hash(src, n, tau, true)

	acc := gf128.MulX(beta)
	for i := 0; i < n-1; i++ {
		secure.XOR(block(dst, i), block(src, i), y[:])
		secure.XOR(block(dst, i), block(dst, i), acc[:])
		acc = gf128.MulX(acc)
	}
	secure.XOR(block(dst, n-1), y[:], beta[:])

	secure.Zero(y[:])
}

// psiInverse removes the psi mask from b in place and recovers the blocks
// psi was applied to.
func psiInverse(b []byte, n int, tau, beta gf128.Element) {
	acc := gf128.MulX(beta)
	for i := 0; i < n-1; i++ {
		secure.XOR(block(b, i), block(b, i), acc[:])
		acc = gf128.MulX(acc)
	}
	last := block(b, n-1)
	secure.XOR(last, last, beta[:])

	for i := 0; i < n-1; i++ {
		secure.XOR(block(b, i), block(b, i), last)
	}

	y := hash(b, n, tau, false)
	secure.XOR(last, last, y[:])

	secure.Zero(y[:])
}

func (h *Cipher) transform(dst, src []byte, tweak uint64, ecb func(dst, src []byte) error) error {
	if err := check(dst, src); err != nil {
		return err
	}
	n := len(src) / BlockSize

	tau, beta, err := h.tweaks(tweak)
	if err != nil {
		return err
	}
	defer secure.ZeroAll(tau[:], beta[:])

	psi(dst, src, n, tau, beta)
	for i := 0; i < n; i++ {
		if err := ecb(block(dst, i), block(dst, i)); err != nil {
			return fmt.Errorf("heh: %w", err)
		}
	}
	psiInverse(dst, n, tau, beta)

	return nil
}

// Encrypt encrypts one sector of src into dst under tweak. dst and src must
// either be the same slice or not overlap at all.
func (h *Cipher) Encrypt(dst, src []byte, tweak uint64) error {
	return h.transform(dst, src, tweak, h.s.EncryptBlock)
}

// Decrypt decrypts one sector of src into dst under tweak.
func (h *Cipher) Decrypt(dst, src []byte, tweak uint64) error {
	return h.transform(dst, src, tweak, h.s.DecryptBlock)
}

// Reset clears the key schedule. The Cipher must not be used afterwards.
func (h *Cipher) Reset() {
	h.s.Reset()
}
