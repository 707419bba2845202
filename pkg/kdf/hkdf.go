package kdf

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF derives length bytes from secret using HKDF-SHA-256 with an all-zero
// salt.
func HKDF(secret, info []byte, length int) ([]byte, error) {
	if length <= 0 || length > 255*sha256.Size {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}

	reader := hkdf.New(sha256.New, secret, make([]byte, sha256.Size), info)
	key := make([]byte, length)

	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	return key, nil
}
