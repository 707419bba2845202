package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"

	"gitlab.com/yawning/bsaes.git"
)

var aesKeySizes = []int{16, 24, 32}

// AES returns the AES capability backed by crypto/aes.
func AES() Cipher {
	return FromBlock("aes", aes.BlockSize, aesKeySizes, aes.NewCipher)
}

// BitslicedAES returns the AES capability backed by bsaes, a constant time
// implementation for systems without AES-NI. bsaes is smart enough to detect
// if the Go runtime and the CPU support AES-NI and call crypto/aes instead.
func BitslicedAES() Cipher {
	return FromBlock("aes-bitsliced", bsaes.BlockSize, aesKeySizes, func(key []byte) (stdcipher.Block, error) {
		return bsaes.NewCipher(key)
	})
}
