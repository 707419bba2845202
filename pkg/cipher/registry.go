package cipher

import (
	"fmt"
	"sort"
	"strings"
)

var registry = map[string]func() Cipher{
	"aes":           AES,
	"aes-bitsliced": BitslicedAES,
	"kuznyechik":    Kuznyechik,
	"magma":         Magma,
}

// Lookup returns the registered cipher with the given name. Names are case
// insensitive.
func Lookup(name string) (Cipher, error) {
	ctor, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, name)
	}
	return ctor(), nil
}

// Names returns the names of all registered ciphers, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
