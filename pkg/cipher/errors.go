package cipher

import "errors"

var (
	// ErrInvalidKeySize is returned when a key is not one of the sizes
	// accepted by the algorithm.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidBlockSize is returned when a block buffer does not match the
	// block size of the algorithm.
	ErrInvalidBlockSize = errors.New("invalid block size")

	// ErrUnknownCipher is returned when a cipher name is not registered.
	ErrUnknownCipher = errors.New("unknown cipher")
)
