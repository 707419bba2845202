package dec

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/GeorgyFirsov/bcm-lib/pkg/kdf"
)

const (
	// FormatVersion is the version of the derivation format produced by
	// InitializeKey.
	FormatVersion uint16 = 1

	formatTag  = "bcm-lib/dec"
	macKeySize = sha256.Size
	macSize    = sha256.Size
)

// kdfFormat returns the canonical derivation input for a working key of
// keyLen bytes bound to the named cipher:
//
//	tag || 0x00 || version || name || 0x00 || keyLen
func kdfFormat(cipherName string, keyLen int) []byte {
	b := make([]byte, 0, len(formatTag)+1+2+len(cipherName)+1+2)
	b = append(b, formatTag...)
	b = append(b, 0x00)
	b = binary.BigEndian.AppendUint16(b, FormatVersion)
	b = append(b, cipherName...)
	b = append(b, 0x00)
	b = binary.BigEndian.AppendUint16(b, uint16(keyLen))
	return b
}

// kdfInitializeKey derives the working key followed by the MAC key from the
// master key.
func kdfInitializeKey(master, formatted []byte, keyLen int) ([]byte, error) {
	raw, err := kdf.HKDF(master, formatted, keyLen+macKeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key: %w", err)
	}
	return raw, nil
}

// kdfMAC authenticates the working key together with its derivation format.
func kdfMAC(macKey, formatted, working []byte) []byte {
	m := hmac.New(sha256.New, macKey)
	m.Write(formatted)
	m.Write(working)
	return m.Sum(nil)
}
