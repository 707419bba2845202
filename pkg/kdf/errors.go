package kdf

import "errors"

var (
	// ErrInvalidLength is returned when the requested output length is zero
	// or cannot be encoded in the derivation input.
	ErrInvalidLength = errors.New("kdf: invalid output length")

	// ErrInvalidIV is returned when the feedback IV is not empty and not
	// exactly one PRF output long.
	ErrInvalidIV = errors.New("kdf: invalid iv length")
)
