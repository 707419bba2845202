package dec

import "errors"

var (
	// ErrInvalidKeyLength is returned when the master key size is not accepted
	// by the cipher.
	ErrInvalidKeyLength = errors.New("dec: invalid key length")

	// ErrInvalidMac is returned when a derived key fails authentication.
	ErrInvalidMac = errors.New("dec: derived key authentication failed")

	// ErrMalformedKey is returned, wrapped in ErrInvalidMac, when a serialized
	// derived key cannot be parsed.
	ErrMalformedKey = errors.New("dec: malformed derived key")

	// ErrDivideByZero is returned by FractionCeil for a zero denominator.
	ErrDivideByZero = errors.New("dec: division by zero")

	// ErrBufferLengthMismatch is returned when src or dst does not hold
	// exactly the requested number of blocks.
	ErrBufferLengthMismatch = errors.New("dec: buffer length mismatch")

	// ErrCipherFailure wraps errors reported by the cipher capability.
	ErrCipherFailure = errors.New("dec: cipher failure")

	// ErrCipherMismatch is returned when a derived key is used with a cipher
	// other than the one it was derived for.
	ErrCipherMismatch = errors.New("dec: cipher mismatch")
)
