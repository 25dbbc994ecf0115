// salt.go - Random blinding salts for invoice commitments.
//
// A salt is a 128-bit value drawn from crypto/rand and embedded as a
// BW6-761 scalar field element. Salts are never reused across invoices;
// at 2^128 space the collision probability is negligible.

package commitment

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	fr "github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
)

// saltByteLen is the number of random bytes drawn per salt.
const saltByteLen = 16

// saltSuffix is the wire-encoding suffix of a field-element literal.
const saltSuffix = "field"

// Salt is the random blinding value of a commitment.
// The zero value is not a valid salt; use GenerateSalt.
type Salt struct {
	elem fr.Element
}

// GenerateSalt produces a fresh salt from the system CSPRNG.
// Interprets 16 random bytes as a big-endian unsigned integer and embeds
// it as a field element. An entropy-source failure is returned as an
// error; callers must abort, never fall back to weak randomness.
func GenerateSalt() (Salt, error) {
	buf := make([]byte, saltByteLen)
	if _, err := rand.Read(buf); err != nil {
		return Salt{}, fmt.Errorf("entropy source unavailable: %w", err)
	}
	var s Salt
	s.elem.SetBytes(buf)
	return s, nil
}

// ParseSalt decodes the wire form "<decimal>field".
// Returns ErrFormat for anything else.
func ParseSalt(s string) (Salt, error) {
	if !strings.HasSuffix(s, saltSuffix) {
		return Salt{}, fmt.Errorf("%w: salt %q missing %q suffix", ErrFormat, s, saltSuffix)
	}
	dec := strings.TrimSuffix(s, saltSuffix)
	if dec == "" {
		return Salt{}, fmt.Errorf("%w: salt %q has no integer part", ErrFormat, s)
	}
	n, ok := new(big.Int).SetString(dec, 10)
	if !ok || n.Sign() < 0 {
		return Salt{}, fmt.Errorf("%w: salt %q is not a non-negative decimal integer", ErrFormat, s)
	}
	if n.Cmp(fr.Modulus()) >= 0 {
		return Salt{}, fmt.Errorf("%w: salt %q exceeds the field modulus", ErrFormat, s)
	}
	var out Salt
	out.elem.SetBigInt(n)
	return out, nil
}

// String returns the wire form "<decimal>field".
func (s Salt) String() string {
	return s.elem.String() + saltSuffix
}

// BigInt returns the salt as a big integer.
func (s Salt) BigInt() *big.Int {
	return s.elem.BigInt(new(big.Int))
}

// IsZero reports whether s is the zero value.
func (s Salt) IsZero() bool {
	return s.elem.IsZero()
}

// MarshalText encodes the salt in its wire form.
func (s Salt) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes the wire form.
func (s *Salt) UnmarshalText(text []byte) error {
	parsed, err := ParseSalt(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// bytes returns the canonical 48-byte big-endian field encoding.
func (s Salt) bytes() [fr.Bytes]byte {
	return s.elem.Bytes()
}
