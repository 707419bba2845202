package cipher

import (
	"bytes"
	"encoding/hex"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestKnownAnswers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cipher     Cipher
		key        string
		plaintext  string
		ciphertext string
	}{
		{
			// FIPS-197 appendix C.1
			name:       "AES-128",
			cipher:     AES(),
			key:        "000102030405060708090a0b0c0d0e0f",
			plaintext:  "00112233445566778899aabbccddeeff",
			ciphertext: "69c4e0d86a7b0430d8cdb78070b4c55a",
		},
		{
			// FIPS-197 appendix C.3
			name:       "AES-256",
			cipher:     AES(),
			key:        "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
			plaintext:  "00112233445566778899aabbccddeeff",
			ciphertext: "8ea2b7ca516745bfeafc49904b496089",
		},
		{
			name:       "bitsliced AES-128",
			cipher:     BitslicedAES(),
			key:        "000102030405060708090a0b0c0d0e0f",
			plaintext:  "00112233445566778899aabbccddeeff",
			ciphertext: "69c4e0d86a7b0430d8cdb78070b4c55a",
		},
		{
			// GOST R 34.12-2015 appendix A.1
			name:       "Kuznyechik",
			cipher:     Kuznyechik(),
			key:        "8899aabbccddeeff0011223344556677fedcba98765432100123456789abcdef",
			plaintext:  "1122334455667700ffeeddccbbaa9988",
			ciphertext: "7f679d90bebc24305a468d42b9d4edcd",
		},
		{
			// GOST R 34.12-2015 appendix A.2
			name:       "Magma",
			cipher:     Magma(),
			key:        "ffeeddccbbaa99887766554433221100f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff",
			plaintext:  "fedcba9876543210",
			ciphertext: "4ee901e5c2d8ca3d",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := tt.cipher.Schedule(mustHex(t, tt.key))
			require.NoError(t, err)
			defer s.Reset()

			pt := mustHex(t, tt.plaintext)
			want := mustHex(t, tt.ciphertext)
			require.Len(t, pt, tt.cipher.BlockSize())

			ct := make([]byte, len(pt))
			require.NoError(t, s.EncryptBlock(ct, pt))
			assert.Equal(t, want, ct, "EncryptBlock() mismatch")

			back := make([]byte, len(ct))
			require.NoError(t, s.DecryptBlock(back, ct))
			assert.Equal(t, pt, back, "DecryptBlock() mismatch")

			// In place.
			buf := append([]byte(nil), pt...)
			require.NoError(t, s.EncryptBlock(buf, buf))
			assert.Equal(t, want, buf)
			require.NoError(t, s.DecryptBlock(buf, buf))
			assert.Equal(t, pt, buf)
		})
	}
}

func TestScheduleInvalidKeySize(t *testing.T) {
	t.Parallel()

	for _, c := range []Cipher{AES(), BitslicedAES(), Kuznyechik(), Magma()} {
		_, err := c.Schedule(make([]byte, 7))
		assert.True(t, errors.Is(err, ErrInvalidKeySize), "%s: expected ErrInvalidKeySize, got %v", c.Name(), err)
	}
}

func TestScheduleInvalidBlock(t *testing.T) {
	t.Parallel()

	s, err := Kuznyechik().Schedule(make([]byte, KuznyechikKeySize))
	require.NoError(t, err)

	err = s.EncryptBlock(make([]byte, 16), make([]byte, 15))
	assert.ErrorIs(t, err, ErrInvalidBlockSize)
	err = s.DecryptBlock(make([]byte, 8), make([]byte, 16))
	assert.ErrorIs(t, err, ErrInvalidBlockSize)
}

func TestValidKeySize(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidKeySize(AES(), 16))
	assert.True(t, ValidKeySize(AES(), 24))
	assert.True(t, ValidKeySize(AES(), 32))
	assert.False(t, ValidKeySize(AES(), 20))
	assert.True(t, ValidKeySize(Kuznyechik(), 32))
	assert.False(t, ValidKeySize(Kuznyechik(), 16))
	assert.Equal(t, 32, MaxKeySize(AES()))
	assert.Equal(t, 32, MaxKeySize(Magma()))
}

func TestKeySizesIsCopy(t *testing.T) {
	t.Parallel()

	c := AES()
	sizes := c.KeySizes()
	sizes[0] = 99
	assert.Equal(t, []int{16, 24, 32}, c.KeySizes())
}

func TestResetClearsGOSTSchedules(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{0x5a}, 32)

	kb, err := NewKuznyechik(key)
	require.NoError(t, err)
	kb.(*kuznyechikBlock).Reset()
	for _, rk := range kb.(*kuznyechikBlock).rk {
		assert.Equal(t, make([]byte, KuznyechikBlockSize), rk[:])
	}

	mb, err := NewMagma(key)
	require.NoError(t, err)
	mb.(*magmaBlock).Reset()
	assert.Equal(t, [8]uint32{}, mb.(*magmaBlock).k)
}

func TestAsBlock(t *testing.T) {
	t.Parallel()

	key := mustHex(t, "8899aabbccddeeff0011223344556677fedcba98765432100123456789abcdef")
	s, err := Kuznyechik().Schedule(key)
	require.NoError(t, err)

	blk := AsBlock(s, KuznyechikBlockSize)
	assert.Equal(t, KuznyechikBlockSize, blk.BlockSize())

	dst := make([]byte, 16)
	blk.Encrypt(dst, mustHex(t, "1122334455667700ffeeddccbbaa9988"))
	assert.Equal(t, mustHex(t, "7f679d90bebc24305a468d42b9d4edcd"), dst)

	assert.Panics(t, func() {
		blk.Encrypt(make([]byte, 4), make([]byte, 4))
	})
}

func TestConcurrentSchedule(t *testing.T) {
	t.Parallel()

	key := mustHex(t, "ffeeddccbbaa99887766554433221100f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff")
	s, err := Magma().Schedule(key)
	require.NoError(t, err)

	pt := mustHex(t, "fedcba9876543210")
	want := mustHex(t, "4ee901e5c2d8ca3d")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				out := make([]byte, MagmaBlockSize)
				if err := s.EncryptBlock(out, pt); err != nil {
					t.Error(err)
					return
				}
				if !bytes.Equal(want, out) {
					t.Errorf("EncryptBlock() = %x, want %x", out, want)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestLookup(t *testing.T) {
	t.Parallel()

	for _, name := range Names() {
		c, err := Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}

	c, err := Lookup(" Kuznyechik ")
	require.NoError(t, err)
	assert.Equal(t, "kuznyechik", c.Name())

	_, err = Lookup("rot13")
	assert.ErrorIs(t, err, ErrUnknownCipher)

	assert.Equal(t, []string{"aes", "aes-bitsliced", "kuznyechik", "magma"}, Names())
}

func BenchmarkKuznyechikEncrypt(b *testing.B) {
	s, err := Kuznyechik().Schedule(make([]byte, KuznyechikKeySize))
	if err != nil {
		b.Fatal(err)
	}
	blk := make([]byte, KuznyechikBlockSize)
	b.SetBytes(KuznyechikBlockSize)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.EncryptBlock(blk, blk)
	}
}
