// hash.go - Commitment hashing: MiMC hash-to-field plus field addition.
//
// The invoice hash is H(merchant) + H(amount) + H(salt). Each input is
// hashed to a field element independently and the three are summed under
// the field modulus, so any verifier holding the same inputs reproduces
// the same commitment.

package commitment

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	fr "github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	mimcNative "github.com/consensys/gnark-crypto/ecc/bw6-761/fr/mimc"
)

// SchemeVersion pins the hash scheme used for both issuance and
// verification. Version 1 is the field-native MiMC scheme over BW6-761.
// A deployment must never mix scheme versions between creation time and
// verification time.
const SchemeVersion uint8 = 1

// hashChunk is the number of input bytes folded into one field element.
// 47 bytes is always strictly below the 377-bit modulus, so the embedding
// is injective per chunk.
const hashChunk = 47

// Hash is an invoice commitment: a single field element binding
// merchant, amount, and salt.
type Hash struct {
	elem fr.Element
}

// ComputeHash derives the commitment for (merchant, amountMicro, salt).
// The merchant address is validated first; malformed input propagates as
// ErrFormat and is never coerced. amountMicro > 0 is a caller
// precondition, not enforced here.
func ComputeHash(merchant Address, amountMicro uint64, salt Salt) (Hash, error) {
	if err := ValidateAddress(string(merchant)); err != nil {
		return Hash{}, err
	}
	hMerchant := hashToField([]byte(merchant))

	var amtBuf [8]byte
	binary.BigEndian.PutUint64(amtBuf[:], amountMicro)
	hAmount := hashToField(amtBuf[:])

	saltBytes := salt.bytes()
	hSalt := hashToField(saltBytes[:])

	var h Hash
	h.elem.Add(&hMerchant, &hAmount)
	h.elem.Add(&h.elem, &hSalt)
	return h, nil
}

// ReceiptKey derives the per-payment receipt commitment
// Com(paymentSecret, Derive(salt)). The key is unique per
// (paymentSecret, invoice) pair and is used to reject replay of the same
// payment secret against a fundraising invoice.
func ReceiptKey(paymentSecret []byte, salt Salt) Hash {
	saltBytes := salt.bytes()
	inner := hashToField(saltBytes[:])
	innerBytes := inner.Bytes()

	h := mimcNative.NewMiMC()
	writeChunked(h, paymentSecret)
	h.Write(innerBytes[:])

	var out Hash
	out.elem.SetBytes(h.Sum(nil))
	return out
}

// ParseHash decodes the wire form "<decimal>field".
func ParseHash(s string) (Hash, error) {
	if !strings.HasSuffix(s, saltSuffix) {
		return Hash{}, fmt.Errorf("%w: hash %q missing %q suffix", ErrFormat, s, saltSuffix)
	}
	dec := strings.TrimSuffix(s, saltSuffix)
	n, ok := new(big.Int).SetString(dec, 10)
	if !ok || n.Sign() < 0 {
		return Hash{}, fmt.Errorf("%w: hash %q is not a non-negative decimal integer", ErrFormat, s)
	}
	if n.Cmp(fr.Modulus()) >= 0 {
		return Hash{}, fmt.Errorf("%w: hash %q exceeds the field modulus", ErrFormat, s)
	}
	var h Hash
	h.elem.SetBigInt(n)
	return h, nil
}

// String returns the wire form "<decimal>field".
func (h Hash) String() string {
	return h.elem.String() + saltSuffix
}

// Equal reports whether two commitments are the same field element.
func (h Hash) Equal(other Hash) bool {
	return h.elem.Equal(&other.elem)
}

// IsZero reports whether h is the zero value.
func (h Hash) IsZero() bool {
	return h.elem.IsZero()
}

// BigInt returns the commitment as a big integer.
func (h Hash) BigInt() *big.Int {
	return h.elem.BigInt(new(big.Int))
}

// MarshalText encodes the commitment in its wire form.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes the wire form.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// hashToField applies MiMC to data and reduces the digest into the field.
// Input is folded in 47-byte chunks so every MiMC block is a canonical
// field element.
func hashToField(data []byte) fr.Element {
	h := mimcNative.NewMiMC()
	writeChunked(h, data)
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// writeChunked feeds arbitrary bytes to a MiMC instance as canonical
// field-element blocks.
func writeChunked(h interface{ Write([]byte) (int, error) }, data []byte) {
	for start := 0; start < len(data); start += hashChunk {
		end := start + hashChunk
		if end > len(data) {
			end = len(data)
		}
		var e fr.Element
		e.SetBytes(data[start:end])
		b := e.Bytes()
		h.Write(b[:])
	}
}
