package secure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}

func TestZeroAll(t *testing.T) {
	a := []byte{0xff, 0xfe}
	b := []byte{0x01}
	ZeroAll(a, nil, b)
	assert.Equal(t, []byte{0, 0}, a)
	assert.Equal(t, []byte{0}, b)
}

func TestXOR(t *testing.T) {
	a := []byte{0x0f, 0xf0, 0xaa}
	b := []byte{0xff, 0xff, 0xaa}
	dst := make([]byte, 3)
	XOR(dst, a, b)
	assert.Equal(t, []byte{0xf0, 0x0f, 0x00}, dst)

	// In place.
	XOR(a, a, b)
	assert.Equal(t, dst, a)
}
