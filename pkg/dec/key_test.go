package dec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeorgyFirsov/bcm-lib/pkg/cipher"
)

func masterKey(n int) []byte {
	k := make([]byte, n)
	for i := range k {
		k[i] = byte(0xa0 + i)
	}
	return k
}

func TestInitializeKeyDeterministic(t *testing.T) {
	t.Parallel()

	for _, name := range cipher.Names() {
		t.Run(name, func(t *testing.T) {
			c, err := cipher.Lookup(name)
			require.NoError(t, err)

			k1, err := InitializeKey(c, masterKey(32))
			require.NoError(t, err)
			k2, err := InitializeKey(c, masterKey(32))
			require.NoError(t, err)

			b1, err := k1.MarshalBinary()
			require.NoError(t, err)
			b2, err := k2.MarshalBinary()
			require.NoError(t, err)

			assert.Equal(t, b1, b2)
			assert.Equal(t, k1.mac, k2.mac)
			assert.Equal(t, k1.ID(), k2.ID())
			assert.Equal(t, name, k1.CipherName())
			assert.Equal(t, FormatVersion, k1.Version())
			assert.Equal(t, 32, k1.KeySize())
			assert.NoError(t, k1.Verify())
		})
	}
}

func TestInitializeKeySeparation(t *testing.T) {
	t.Parallel()

	master := masterKey(32)

	kz, err := InitializeKey(cipher.Kuznyechik(), master)
	require.NoError(t, err)
	aes, err := InitializeKey(cipher.AES(), master)
	require.NoError(t, err)
	assert.NotEqual(t, kz.working, aes.working)
	assert.NotEqual(t, kz.ID(), aes.ID())

	assert.NotEqual(t, master, kz.working, "working key must not be the master key")

	other := masterKey(32)
	other[0] ^= 0x80
	kz2, err := InitializeKey(cipher.Kuznyechik(), other)
	require.NoError(t, err)
	assert.NotEqual(t, kz.working, kz2.working)
}

func TestInitializeKeyInvalidLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		c    cipher.Cipher
		n    int
	}{
		{"empty", cipher.Kuznyechik(), 0},
		{"kuznyechik short", cipher.Kuznyechik(), 16},
		{"magma long", cipher.Magma(), 33},
		{"aes odd", cipher.AES(), 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := InitializeKey(tt.c, masterKey(tt.n))
			assert.ErrorIs(t, err, ErrInvalidKeyLength)
			assert.Nil(t, k)
		})
	}

	_, err := InitializeKey(cipher.AES(), masterKey(16))
	assert.NoError(t, err)
}

func TestVerifyRejectsSingleBitCorruption(t *testing.T) {
	t.Parallel()

	fields := map[string]func(k *DerivedKey) []byte{
		"working": func(k *DerivedKey) []byte { return k.working },
		"mac key": func(k *DerivedKey) []byte { return k.macKey },
		"mac":     func(k *DerivedKey) []byte { return k.mac },
	}

	for name, field := range fields {
		t.Run(name, func(t *testing.T) {
			k, err := InitializeKey(cipher.Kuznyechik(), masterKey(32))
			require.NoError(t, err)

			b := field(k)
			for i := 0; i < len(b)*8; i++ {
				b[i/8] ^= 1 << (i % 8)
				assert.ErrorIs(t, k.Verify(), ErrInvalidMac, "bit %d", i)
				b[i/8] ^= 1 << (i % 8)
			}
			assert.NoError(t, k.Verify())
		})
	}

	k, err := InitializeKey(cipher.Kuznyechik(), masterKey(32))
	require.NoError(t, err)
	k.cipherName = "kuznyechiK"
	assert.ErrorIs(t, k.Verify(), ErrInvalidMac)

	k.cipherName = "kuznyechik"
	k.version++
	assert.ErrorIs(t, k.Verify(), ErrInvalidMac)
}

func TestMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	k, err := InitializeKey(cipher.Magma(), masterKey(32))
	require.NoError(t, err)

	blob, err := k.MarshalBinary()
	require.NoError(t, err)

	var decoded DerivedKey
	require.NoError(t, decoded.UnmarshalBinary(blob))
	assert.Equal(t, k.ID(), decoded.ID())
	assert.Equal(t, "magma", decoded.CipherName())
	assert.Equal(t, k.working, decoded.working)

	// The decoded key must not alias the input.
	blob[len(blob)-1] ^= 0xff
	assert.NoError(t, decoded.Verify())
}

func TestUnmarshalRejectsSingleBitCorruption(t *testing.T) {
	t.Parallel()

	k, err := InitializeKey(cipher.Kuznyechik(), masterKey(32))
	require.NoError(t, err)
	blob, err := k.MarshalBinary()
	require.NoError(t, err)

	for i := 0; i < len(blob)*8; i++ {
		corrupted := bytes.Clone(blob)
		corrupted[i/8] ^= 1 << (i % 8)

		var decoded DerivedKey
		err := decoded.UnmarshalBinary(corrupted)
		require.ErrorIs(t, err, ErrInvalidMac, "bit %d", i)
		assert.Empty(t, decoded.working, "bit %d", i)
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	t.Parallel()

	k, err := InitializeKey(cipher.Kuznyechik(), masterKey(32))
	require.NoError(t, err)
	blob, err := k.MarshalBinary()
	require.NoError(t, err)

	inputs := map[string][]byte{
		"empty":     nil,
		"header":    blob[:2],
		"truncated": blob[:len(blob)-1],
		"extended":  append(bytes.Clone(blob), 0),
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			var decoded DerivedKey
			err := decoded.UnmarshalBinary(in)
			assert.ErrorIs(t, err, ErrInvalidMac)
			assert.ErrorIs(t, err, ErrMalformedKey)
		})
	}
}

func TestResetClearsKey(t *testing.T) {
	t.Parallel()

	k, err := InitializeKey(cipher.Kuznyechik(), masterKey(32))
	require.NoError(t, err)

	working, macKey, mac := k.working, k.macKey, k.mac
	k.Reset()

	assert.Equal(t, make([]byte, 32), working)
	assert.Equal(t, make([]byte, macKeySize), macKey)
	assert.Equal(t, make([]byte, macSize), mac)
	assert.ErrorIs(t, k.Verify(), ErrInvalidMac)

	var nilKey *DerivedKey
	nilKey.Reset()
	assert.ErrorIs(t, nilKey.Verify(), ErrInvalidMac)
}
