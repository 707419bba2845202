package dec

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/GeorgyFirsov/bcm-lib/internal/secure"
	"github.com/GeorgyFirsov/bcm-lib/pkg/cipher"
)

var keyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/GeorgyFirsov/bcm-lib/dec"))

// DerivedKey is the working key produced from a master key, together with
// the value authenticating it. A DerivedKey is not modified after creation
// other than by Reset, and may be shared by concurrent transforms.
type DerivedKey struct {
	version    uint16
	cipherName string

	working []byte
	macKey  []byte
	mac     []byte
}

// InitializeKey derives the working key for c from master. The result is a
// deterministic function of master and the cipher.
func InitializeKey(c cipher.Cipher, master []byte) (*DerivedKey, error) {
	if !cipher.ValidKeySize(c, len(master)) {
		return nil, fmt.Errorf("%w: got %d, want one of %v", ErrInvalidKeyLength, len(master), c.KeySizes())
	}

	keyLen := len(master)
	formatted := kdfFormat(c.Name(), keyLen)

	raw, err := kdfInitializeKey(master, formatted, keyLen)
	if err != nil {
		return nil, err
	}

	k := &DerivedKey{
		version:    FormatVersion,
		cipherName: c.Name(),
		working:    raw[:keyLen:keyLen],
		macKey:     raw[keyLen:],
	}
	k.mac = kdfMAC(k.macKey, formatted, k.working)

	return k, nil
}

// Verify recomputes the authentication value of the key and compares it with
// the stored one in constant time.
func (k *DerivedKey) Verify() error {
	if k == nil || len(k.working) == 0 || len(k.mac) != macSize {
		return fmt.Errorf("%w: empty key", ErrInvalidMac)
	}

	expected := kdfMAC(k.macKey, kdfFormat(k.cipherName, len(k.working)), k.working)
	defer secure.Zero(expected)

	if subtle.ConstantTimeCompare(expected, k.mac) != 1 || k.version != FormatVersion {
		return ErrInvalidMac
	}
	return nil
}

// CipherName returns the name of the cipher the key was derived for.
func (k *DerivedKey) CipherName() string {
	return k.cipherName
}

// Version returns the derivation format version.
func (k *DerivedKey) Version() uint16 {
	return k.version
}

// KeySize returns the working key size in bytes.
func (k *DerivedKey) KeySize() int {
	return len(k.working)
}

// ID returns a non-secret identifier of the key, suitable for logs.
func (k *DerivedKey) ID() uuid.UUID {
	return uuid.NewSHA1(keyNamespace, k.mac)
}

// Reset clears the key material. A reset key fails Verify.
func (k *DerivedKey) Reset() {
	if k == nil {
		return
	}
	secure.ZeroAll(k.working, k.macKey, k.mac)
}

// MarshalBinary encodes the key as
//
//	version(2) || len(name)(1) || name || len(working)(2) || working || macKey || mac
//
// The encoding contains the working key in the clear.
func (k *DerivedKey) MarshalBinary() ([]byte, error) {
	if len(k.cipherName) > 0xff {
		return nil, fmt.Errorf("%w: cipher name too long", ErrMalformedKey)
	}

	b := make([]byte, 0, 2+1+len(k.cipherName)+2+len(k.working)+len(k.macKey)+len(k.mac))
	b = binary.BigEndian.AppendUint16(b, k.version)
	b = append(b, byte(len(k.cipherName)))
	b = append(b, k.cipherName...)
	b = binary.BigEndian.AppendUint16(b, uint16(len(k.working)))
	b = append(b, k.working...)
	b = append(b, k.macKey...)
	b = append(b, k.mac...)
	return b, nil
}

// UnmarshalBinary decodes a key produced by MarshalBinary and verifies it.
// Any corruption of data is reported as ErrInvalidMac.
func (k *DerivedKey) UnmarshalBinary(data []byte) error {
	k.Reset()
	*k = DerivedKey{}

	malformed := func(reason string) error {
		return fmt.Errorf("%w: %w: %s", ErrInvalidMac, ErrMalformedKey, reason)
	}

	if len(data) < 3 {
		return malformed("short header")
	}
	version := binary.BigEndian.Uint16(data)
	if version != FormatVersion {
		return malformed(fmt.Sprintf("unsupported version %d", version))
	}
	nameLen := int(data[2])
	data = data[3:]

	if len(data) < nameLen+2 {
		return malformed("short cipher name")
	}
	name := string(data[:nameLen])
	keyLen := int(binary.BigEndian.Uint16(data[nameLen:]))
	data = data[nameLen+2:]

	if keyLen == 0 || len(data) != keyLen+macKeySize+macSize {
		return malformed("key length does not match encoding")
	}

	raw := make([]byte, len(data))
	copy(raw, data)

	candidate := DerivedKey{
		version:    version,
		cipherName: name,
		working:    raw[:keyLen:keyLen],
		macKey:     raw[keyLen : keyLen+macKeySize : keyLen+macKeySize],
		mac:        raw[keyLen+macKeySize:],
	}
	if err := candidate.Verify(); err != nil {
		candidate.Reset()
		return err
	}

	*k = candidate
	return nil
}
