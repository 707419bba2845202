// Package secure holds helpers for handling key material in memory.
package secure

import "runtime"

// Zero explicitly clears out the buffer b, by filling it with 0x00 bytes.
//
//go:noinline
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// ZeroAll clears every buffer in bs.
func ZeroAll(bs ...[]byte) {
	for _, b := range bs {
		Zero(b)
	}
}

// XOR sets dst[i] = a[i] ^ b[i] for the length of dst. a and b must be at
// least as long as dst.
func XOR(dst, a, b []byte) {
	for i := range dst {
		dst[i] = a[i] ^ b[i]
	}
}
