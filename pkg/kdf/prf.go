package kdf

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/GeorgyFirsov/bcm-lib/pkg/cipher"
	"github.com/GeorgyFirsov/bcm-lib/pkg/cmac"
)

// PRF is a keyed pseudorandom function with a fixed output size.
type PRF interface {
	Size() int
	Sum(key, msg []byte) ([]byte, error)
}

type cmacPRF struct {
	c cipher.Cipher
}

// CMAC returns a PRF computing full-block CMAC tags under c.
func CMAC(c cipher.Cipher) PRF {
	return cmacPRF{c: c}
}

func (p cmacPRF) Size() int { return p.c.BlockSize() }

func (p cmacPRF) Sum(key, msg []byte) ([]byte, error) {
	return cmac.Digest(p.c, key, msg, p.c.BlockSize())
}

type hmacPRF struct{}

// HMACSHA256 returns a PRF computing HMAC-SHA-256.
func HMACSHA256() PRF {
	return hmacPRF{}
}

func (hmacPRF) Size() int { return sha256.Size }

func (hmacPRF) Sum(key, msg []byte) ([]byte, error) {
	m := hmac.New(sha256.New, key)
	m.Write(msg)
	return m.Sum(nil), nil
}
