package dec

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/GeorgyFirsov/bcm-lib/internal/secure"
	"github.com/GeorgyFirsov/bcm-lib/pkg/cipher"
	"github.com/GeorgyFirsov/bcm-lib/pkg/cmac"
	"github.com/GeorgyFirsov/bcm-lib/pkg/kdf"
)

var (
	labelPartition = []byte("partition")
	labelSector    = []byte("sector")
)

type options struct {
	ctx     context.Context
	workers int
}

// Option configures a transform.
type Option func(*options)

// WithContext makes the transform stop dispatching blocks once ctx is done.
// A block that has started is always completed.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

// WithWorkers processes blocks on up to n goroutines. n <= 1 processes them
// sequentially on the calling goroutine.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		ctx:     context.Background(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.ctx == nil {
		o.ctx = context.Background()
	}
	return o
}

// Encrypt derives the key for master and encrypts blocks blocks of src into
// dst, starting at at. dst and src must both hold exactly
// blocks * c.BlockSize() bytes and may be the same slice.
func Encrypt(c cipher.Cipher, master []byte, at Coordinate, dst, src []byte, blocks uint64, opts ...Option) error {
	return transform(c, master, at, dst, src, blocks, true, opts)
}

// Decrypt is the inverse of Encrypt.
func Decrypt(c cipher.Cipher, master []byte, at Coordinate, dst, src []byte, blocks uint64, opts ...Option) error {
	return transform(c, master, at, dst, src, blocks, false, opts)
}

// EncryptPerform encrypts with an already derived key.
//
// On ErrCipherFailure the contents of dst are unspecified from the failing
// block onwards and must be discarded. Length errors are reported before
// anything is written.
func EncryptPerform(c cipher.Cipher, key *DerivedKey, at Coordinate, dst, src []byte, blocks uint64, opts ...Option) error {
	return perform(c, key, at, dst, src, blocks, true, newOptions(opts))
}

// DecryptPerform decrypts with an already derived key. It shares the error
// contract of EncryptPerform.
func DecryptPerform(c cipher.Cipher, key *DerivedKey, at Coordinate, dst, src []byte, blocks uint64, opts ...Option) error {
	return perform(c, key, at, dst, src, blocks, false, newOptions(opts))
}

func transform(c cipher.Cipher, master []byte, at Coordinate, dst, src []byte, blocks uint64, encrypt bool, opts []Option) error {
	if blocks == 0 {
		return nil
	}
	if err := checkBuffers(c, dst, src, blocks); err != nil {
		return err
	}

	key, err := InitializeKey(c, master)
	if err != nil {
		return err
	}
	defer key.Reset()

	return perform(c, key, at, dst, src, blocks, encrypt, newOptions(opts))
}

func checkBuffers(c cipher.Cipher, dst, src []byte, blocks uint64) error {
	bs := c.BlockSize()
	if bs <= 0 {
		return fmt.Errorf("%w: %w: %d", ErrCipherFailure, cipher.ErrInvalidBlockSize, bs)
	}
	if blocks > uint64(math.MaxInt/bs) {
		return fmt.Errorf("%w: %d blocks of %d bytes", ErrBufferLengthMismatch, blocks, bs)
	}

	want := int(blocks) * bs
	if len(src) != want || len(dst) != want {
		return fmt.Errorf("%w: src %d, dst %d, want %d", ErrBufferLengthMismatch, len(src), len(dst), want)
	}
	return nil
}

func perform(c cipher.Cipher, key *DerivedKey, at Coordinate, dst, src []byte, blocks uint64, encrypt bool, o *options) error {
	if blocks == 0 {
		return nil
	}
	if err := checkBuffers(c, dst, src, blocks); err != nil {
		return err
	}
	if err := key.Verify(); err != nil {
		return err
	}
	if key.cipherName != c.Name() {
		return fmt.Errorf("%w: key for %q used with %q", ErrCipherMismatch, key.cipherName, c.Name())
	}
	if err := o.ctx.Err(); err != nil {
		return err
	}

	sk, err := newSectorKeys(c, key.working, at, blocks)
	if err != nil {
		return err
	}
	defer sk.reset()

	bs := c.BlockSize()
	process := func(t uint64) error {
		off := int(t) * bs
		return sk.block(at, t, dst[off:off+bs], src[off:off+bs], encrypt)
	}

	if o.workers <= 1 {
		for t := uint64(0); t < blocks; t++ {
			if err := o.ctx.Err(); err != nil {
				return err
			}
			if err := process(t); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(o.ctx)
	g.SetLimit(o.workers)

	var dispatched uint64
	for ; dispatched < blocks; dispatched++ {
		if gctx.Err() != nil {
			break
		}
		t := dispatched
		g.Go(func() error {
			return process(t)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if dispatched < blocks {
		return o.ctx.Err()
	}
	return nil
}

// sectorKeys holds the expanded keys of one transfer.
type sectorKeys struct {
	bs    int
	data  cipher.Schedule
	tweak *cmac.MAC
}

func newSectorKeys(c cipher.Cipher, working []byte, at Coordinate, blocks uint64) (*sectorKeys, error) {
	prf := kdf.CMAC(c)
	bs := c.BlockSize()
	keyLen := len(working)

	var info [16]byte
	binary.BigEndian.PutUint64(info[0:], at.Partition)
	binary.BigEndian.PutUint64(info[8:], at.PartitionCounter)

	partitionKey, err := kdf.Feedback(prf, working, make([]byte, bs), labelPartition, info[:], keyLen)
	if err != nil {
		return nil, fmt.Errorf("%w: partition key: %w", ErrCipherFailure, err)
	}
	defer secure.Zero(partitionKey)

	v, err := RekeyInterval(blocks, bs)
	if err != nil {
		return nil, err
	}

	var partition [8]byte
	binary.BigEndian.PutUint64(partition[:], at.Partition)
	iv := make([]byte, bs)
	copy(iv, partition[:])

	binary.BigEndian.PutUint64(info[0:], at.SectorCounter/v)
	binary.BigEndian.PutUint64(info[8:], at.Sector)

	keys, err := kdf.Feedback(prf, partitionKey, iv, labelSector, info[:], 2*keyLen)
	if err != nil {
		return nil, fmt.Errorf("%w: sector key: %w", ErrCipherFailure, err)
	}
	defer secure.Zero(keys)

	data, err := c.Schedule(keys[:keyLen])
	if err != nil {
		return nil, fmt.Errorf("%w: data key: %w", ErrCipherFailure, err)
	}

	tweak, err := cmac.New(c, keys[keyLen:])
	if err != nil {
		data.Reset()
		return nil, fmt.Errorf("%w: tweak key: %w", ErrCipherFailure, err)
	}

	return &sectorKeys{bs: bs, data: data, tweak: tweak}, nil
}

// block transforms a single block. dst and src may be the same slice.
func (sk *sectorKeys) block(at Coordinate, t uint64, dst, src []byte, encrypt bool) error {
	v := CalculateV(at, t)
	delta, err := sk.tweak.Sum(v[:])
	if err != nil {
		return fmt.Errorf("%w: block %d: %w", ErrCipherFailure, t, err)
	}
	defer secure.Zero(delta)

	buf := make([]byte, sk.bs)
	defer secure.Zero(buf)

	secure.XOR(buf, src, delta)
	if encrypt {
		err = sk.data.EncryptBlock(buf, buf)
	} else {
		err = sk.data.DecryptBlock(buf, buf)
	}
	if err != nil {
		return fmt.Errorf("%w: block %d: %w", ErrCipherFailure, t, err)
	}
	secure.XOR(dst, buf, delta)

	return nil
}

func (sk *sectorKeys) reset() {
	sk.data.Reset()
	sk.tweak.Reset()
}
