// address.go - Merchant identity validation and encoding.

package commitment

import (
	"fmt"
	"strings"
)

const (
	// AddressPrefix is the scheme identifier every merchant address
	// starts with.
	AddressPrefix = "pay1"

	// AddressLen is the full fixed length of an address string.
	AddressLen = 63
)

// addressCharset is the bech32 data charset; everything after the prefix
// must come from this set.
const addressCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// Address is a merchant identity. Immutable once bound into a commitment.
type Address string

// ParseAddress validates s and returns it as an Address.
// Returns ErrFormat if s is not a well-formed address.
func ParseAddress(s string) (Address, error) {
	if err := ValidateAddress(s); err != nil {
		return "", err
	}
	return Address(s), nil
}

// ValidateAddress checks the fixed format: prefix, length, charset.
func ValidateAddress(s string) error {
	if len(s) != AddressLen {
		return fmt.Errorf("%w: address must be %d characters, got %d", ErrFormat, AddressLen, len(s))
	}
	if !strings.HasPrefix(s, AddressPrefix) {
		return fmt.Errorf("%w: address must start with %q", ErrFormat, AddressPrefix)
	}
	for i := len(AddressPrefix); i < len(s); i++ {
		if !strings.ContainsRune(addressCharset, rune(s[i])) {
			return fmt.Errorf("%w: address contains invalid character %q at position %d", ErrFormat, s[i], i)
		}
	}
	return nil
}

// String returns the address string.
func (a Address) String() string { return string(a) }
