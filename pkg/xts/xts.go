// Package xts implements XTS (IEEE P1619) sector encryption over any 128-bit
// block cipher capability, on top of golang.org/x/crypto/xts.
package xts

import (
	stdcipher "crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/xts"

	"github.com/GeorgyFirsov/bcm-lib/internal/secure"
	"github.com/GeorgyFirsov/bcm-lib/pkg/cipher"
)

// BlockSize is the only cipher block size XTS is defined for.
const BlockSize = 16

var (
	// ErrUnsupportedBlockSize is returned for ciphers without a 128-bit block.
	ErrUnsupportedBlockSize = errors.New("xts: unsupported block size")

	// ErrInvalidKeySize is returned when the data and tweak keys differ in
	// size or are not accepted by the cipher.
	ErrInvalidKeySize = errors.New("xts: invalid key size")

	// ErrInvalidLength is returned when sector data is empty, is not a
	// multiple of BlockSize, or dst and src differ in length.
	ErrInvalidLength = errors.New("xts: invalid data length")
)

// Cipher encrypts and decrypts whole sectors. It may be used concurrently.
type Cipher struct {
	c         *xts.Cipher
	schedules []cipher.Schedule
}

// New returns an XTS instance over c with the given data and tweak keys.
func New(c cipher.Cipher, dataKey, tweakKey []byte) (*Cipher, error) {
	if c.BlockSize() != BlockSize {
		return nil, fmt.Errorf("%w: %s has %d byte blocks", ErrUnsupportedBlockSize, c.Name(), c.BlockSize())
	}
	if len(dataKey) != len(tweakKey) || !cipher.ValidKeySize(c, len(dataKey)) {
		return nil, fmt.Errorf("%w: data %d, tweak %d", ErrInvalidKeySize, len(dataKey), len(tweakKey))
	}

	x := &Cipher{}
	newBlock := func(key []byte) (stdcipher.Block, error) {
		s, err := c.Schedule(key)
		if err != nil {
			return nil, err
		}
		x.schedules = append(x.schedules, s)
		return cipher.AsBlock(s, BlockSize), nil
	}

	key := make([]byte, 0, 2*len(dataKey))
	key = append(key, dataKey...)
	key = append(key, tweakKey...)
	defer secure.Zero(key)

	xc, err := xts.NewCipher(newBlock, key)
	if err != nil {
		x.Reset()
		return nil, fmt.Errorf("xts: %w", err)
	}
	x.c = xc

	return x, nil
}

func check(dst, src []byte) error {
	if len(src) == 0 || len(src)%BlockSize != 0 || len(dst) != len(src) {
		return fmt.Errorf("%w: dst %d, src %d", ErrInvalidLength, len(dst), len(src))
	}
	return nil
}

// Encrypt encrypts one sector of src into dst. dst and src must either be
// the same slice or not overlap at all.
func (x *Cipher) Encrypt(dst, src []byte, sector uint64) error {
	if err := check(dst, src); err != nil {
		return err
	}
	x.c.Encrypt(dst, src, sector)
	return nil
}

// Decrypt decrypts one sector of src into dst.
func (x *Cipher) Decrypt(dst, src []byte, sector uint64) error {
	if err := check(dst, src); err != nil {
		return err
	}
	x.c.Decrypt(dst, src, sector)
	return nil
}

// Reset clears both key schedules. The Cipher must not be used afterwards.
func (x *Cipher) Reset() {
	for _, s := range x.schedules {
		s.Reset()
	}
}
