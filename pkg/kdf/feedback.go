// Package kdf implements the key derivation functions used by the sector
// modes: a feedback-mode KDF over a pluggable PRF (NIST SP 800-108, the KDF2
// construction of R 1323665.1.022-2018) and an HKDF-SHA-256 helper.
package kdf

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/GeorgyFirsov/bcm-lib/internal/secure"
)

// Feedback derives length bytes from key.
//
// z_0 = iv, z_i = PRF(key, z_{i-1} || [i]_32 || label || 0x00 || context || [L]_32)
// and the output is the leading length bytes of z_1 || z_2 || ..., where L is
// length in bits. iv must be empty or exactly prf.Size() bytes long.
func Feedback(prf PRF, key, iv, label, context []byte, length int) ([]byte, error) {
	size := prf.Size()
	if length <= 0 || uint64(length)*8 > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	if len(iv) != 0 && len(iv) != size {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidIV, len(iv), size)
	}

	// z_{i-1} occupies the head of msg and is overwritten on every round.
	msg := make([]byte, size+4+len(label)+1+len(context)+4)
	defer secure.Zero(msg)

	prev := msg[:len(iv)]
	copy(prev, iv)

	out := make([]byte, 0, length+size)
	for i := uint32(1); len(out) < length; i++ {
		in := msg[:len(prev)]
		in = binary.BigEndian.AppendUint32(in, i)
		in = append(in, label...)
		in = append(in, 0x00)
		in = append(in, context...)
		in = binary.BigEndian.AppendUint32(in, uint32(length)*8)

		z, err := prf.Sum(key, in)
		if err != nil {
			secure.Zero(out[:cap(out)])
			return nil, fmt.Errorf("kdf: round %d: %w", i, err)
		}
		out = append(out, z...)

		prev = msg[:len(z)]
		copy(prev, z)
		secure.Zero(z)
	}

	secure.Zero(out[length:])
	return out[:length], nil
}
