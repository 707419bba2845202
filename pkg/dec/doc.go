// Package dec implements DEC, a sector encryption mode for block devices.
//
// A master key is turned into a DerivedKey once by InitializeKey. Each
// transfer starts at a Coordinate made of the partition number, the partition
// counter, the sector number and the sector counter. Per transfer a partition
// key is derived from the working key and the partition coordinates, and a
// pair of sector keys (data and tweak) is derived from the partition key, the
// sector number and the sector counter epoch. Sector keys rotate every
// RekeyInterval sector counter values, which keeps the number of blocks
// processed under one key below the birthday bound of the cipher.
//
// Every block t of a transfer is encrypted as
//
//	Δ = CMAC(K_tweak, CalculateV(at, t))
//	C = E(K_data, P ⊕ Δ) ⊕ Δ
//
// so that blocks are independent and may be processed in any order.
//
// The storage layer must never reuse a coordinate for different data under
// the same key.
package dec
