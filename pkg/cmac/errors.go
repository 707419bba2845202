package cmac

import "errors"

var (
	// ErrUnsupportedBlockSize is returned for ciphers whose block size has
	// no subkey generation constant defined.
	ErrUnsupportedBlockSize = errors.New("cmac: unsupported block size")

	// ErrInvalidTagSize is returned for a tag size of zero or larger than
	// the block size.
	ErrInvalidTagSize = errors.New("cmac: invalid tag size")

	// ErrInvalidTag is returned when a tag does not verify.
	ErrInvalidTag = errors.New("cmac: invalid tag")
)
