package cipher

import (
	stdcipher "crypto/cipher"
	"fmt"
)

type resetable interface {
	Reset()
}

// blockCipher adapts a crypto/cipher.Block constructor to the Cipher
// interface.
type blockCipher struct {
	name      string
	blockSize int
	keySizes  []int
	newBlock  func(key []byte) (stdcipher.Block, error)
}

// FromBlock returns a Cipher backed by a crypto/cipher.Block constructor.
// keySizes must be in ascending order.
func FromBlock(name string, blockSize int, keySizes []int, newBlock func(key []byte) (stdcipher.Block, error)) Cipher {
	return &blockCipher{
		name:      name,
		blockSize: blockSize,
		keySizes:  append([]int(nil), keySizes...),
		newBlock:  newBlock,
	}
}

func (c *blockCipher) Name() string {
	return c.name
}

func (c *blockCipher) BlockSize() int {
	return c.blockSize
}

func (c *blockCipher) KeySizes() []int {
	return append([]int(nil), c.keySizes...)
}

func (c *blockCipher) Schedule(key []byte) (Schedule, error) {
	if !ValidKeySize(c, len(key)) {
		return nil, fmt.Errorf("%s: %w: got %d, want one of %v", c.name, ErrInvalidKeySize, len(key), c.keySizes)
	}

	blk, err := c.newBlock(key)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to expand key: %w", c.name, err)
	}

	if blk.BlockSize() != c.blockSize {
		return nil, fmt.Errorf("%s: %w: implementation reports %d, want %d", c.name, ErrInvalidBlockSize, blk.BlockSize(), c.blockSize)
	}

	return &blockSchedule{name: c.name, blk: blk}, nil
}

type blockSchedule struct {
	name string
	blk  stdcipher.Block
}

func (s *blockSchedule) check(dst, src []byte) error {
	bs := s.blk.BlockSize()
	if len(src) != bs || len(dst) != bs {
		return fmt.Errorf("%s: %w: got dst %d, src %d, want %d", s.name, ErrInvalidBlockSize, len(dst), len(src), bs)
	}
	return nil
}

func (s *blockSchedule) EncryptBlock(dst, src []byte) error {
	if err := s.check(dst, src); err != nil {
		return err
	}
	s.blk.Encrypt(dst, src)
	return nil
}

func (s *blockSchedule) DecryptBlock(dst, src []byte) error {
	if err := s.check(dst, src); err != nil {
		return err
	}
	s.blk.Decrypt(dst, src)
	return nil
}

// Reset clears the key schedule. bsaes and the GOST ciphers in this package
// expose this, crypto/aes does not, c'est la vie.
func (s *blockSchedule) Reset() {
	if r, ok := s.blk.(resetable); ok {
		r.Reset()
	}
}

// AsBlock exposes a Schedule as a crypto/cipher.Block, for use with modes
// from the standard library and golang.org/x/crypto. Like every
// crypto/cipher.Block, the returned value panics on short buffers.
func AsBlock(s Schedule, blockSize int) stdcipher.Block {
	return &scheduleBlock{s: s, blockSize: blockSize}
}

type scheduleBlock struct {
	s         Schedule
	blockSize int
}

func (b *scheduleBlock) BlockSize() int {
	return b.blockSize
}

func (b *scheduleBlock) Encrypt(dst, src []byte) {
	if err := b.s.EncryptBlock(dst[:b.blockSize], src[:b.blockSize]); err != nil {
		panic("cipher: " + err.Error())
	}
}

func (b *scheduleBlock) Decrypt(dst, src []byte) {
	if err := b.s.DecryptBlock(dst[:b.blockSize], src[:b.blockSize]); err != nil {
		panic("cipher: " + err.Error())
	}
}
