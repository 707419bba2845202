package dec

import (
	"encoding/binary"
	"fmt"

	"github.com/GeorgyFirsov/bcm-lib/pkg/cipher"
)

// TweakSize is the size of an encoded tweak in bytes.
const TweakSize = 40

// maxRekeyExponent keeps 2 * ceil(2^e / blocks) within 64 bits.
const maxRekeyExponent = 62

// Coordinate addresses the first block of a transfer.
type Coordinate struct {
	Partition        uint64
	PartitionCounter uint64
	Sector           uint64
	SectorCounter    uint64
}

// Tweak is the position dependent value of a single block.
type Tweak [TweakSize]byte

// CalculateV returns the tweak of the block at offset block from at. The
// encoding is the big-endian concatenation of partition, partition counter,
// sector, sector counter and block offset, so distinct inputs always give
// distinct tweaks.
func CalculateV(at Coordinate, block uint64) Tweak {
	var v Tweak
	binary.BigEndian.PutUint64(v[0:], at.Partition)
	binary.BigEndian.PutUint64(v[8:], at.PartitionCounter)
	binary.BigEndian.PutUint64(v[16:], at.Sector)
	binary.BigEndian.PutUint64(v[24:], at.SectorCounter)
	binary.BigEndian.PutUint64(v[32:], block)
	return v
}

// FractionCeil returns the smallest integer not less than
// numerator / denominator.
func FractionCeil(numerator, denominator uint64) (uint64, error) {
	if denominator == 0 {
		return 0, fmt.Errorf("%w: %d / 0", ErrDivideByZero, numerator)
	}

	q := numerator / denominator
	if numerator%denominator != 0 {
		q++
	}
	return q, nil
}

// RekeyInterval returns the number of consecutive sector counter values that
// share a sector key for transfers of the given number of blocks. With an
// n-bit block it is 2 * ceil(2^(n/2-1) / blocks), the exponent being capped
// at 62.
func RekeyInterval(blocks uint64, blockSize int) (uint64, error) {
	if blockSize <= 0 {
		return 0, fmt.Errorf("%w: %d", cipher.ErrInvalidBlockSize, blockSize)
	}

	exp := min(4*blockSize-1, maxRekeyExponent)
	q, err := FractionCeil(uint64(1)<<exp, blocks)
	if err != nil {
		return 0, err
	}
	return q << 1, nil
}

// SectorBlocks returns the number of whole cipher blocks covering a sector of
// sectorBytes bytes.
func SectorBlocks(sectorBytes uint64, c cipher.Cipher) (uint64, error) {
	return FractionCeil(sectorBytes, uint64(c.BlockSize()))
}
