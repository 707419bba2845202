// Package cipher defines the block cipher capability consumed by the modes of
// operation in this module, together with the algorithms shipped with it.
//
// A Cipher describes an algorithm: its name, its block size and the key sizes
// it accepts. Schedule expands a key into a Schedule, which performs raw
// single block transforms. Schedules hold no mutable state once created, so a
// single Schedule may be shared by concurrent callers.
package cipher

// Cipher is a block cipher algorithm.
type Cipher interface {
	// Name returns the registry name of the algorithm.
	Name() string

	// BlockSize returns the block size in bytes.
	BlockSize() int

	// KeySizes returns the accepted key sizes in bytes, in ascending order.
	KeySizes() []int

	// Schedule expands key into a Schedule bound to this algorithm.
	Schedule(key []byte) (Schedule, error)
}

// Schedule is an expanded key capable of transforming single blocks.
type Schedule interface {
	// EncryptBlock encrypts exactly one block from src into dst.
	// dst and src may overlap entirely.
	EncryptBlock(dst, src []byte) error

	// DecryptBlock decrypts exactly one block from src into dst.
	// dst and src may overlap entirely.
	DecryptBlock(dst, src []byte) error

	// Reset clears the expanded key such that no sensitive data is left in
	// memory, where the underlying implementation allows it.
	Reset()
}

// ValidKeySize reports whether n is one of the key sizes accepted by c.
func ValidKeySize(c Cipher, n int) bool {
	for _, sz := range c.KeySizes() {
		if sz == n {
			return true
		}
	}
	return false
}

// MaxKeySize returns the largest key size accepted by c.
func MaxKeySize(c Cipher) int {
	sizes := c.KeySizes()
	if len(sizes) == 0 {
		return 0
	}
	return sizes[len(sizes)-1]
}
