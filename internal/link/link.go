// Package link builds and parses shareable payment links.
//
// A link carries exactly the commitment inputs - merchant, amount, salt,
// plus an optional memo and type discriminator - and never the commitment
// hash itself. The hash is always re-derived by the payer, which is the
// integrity mechanism: tampering with any parameter yields a hash that
// does not exist on chain.
package link

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"veilpay/internal/commitment"
)

// Micro is the fixed-point scale: one display unit is 10^6 micro-units.
const Micro = 1_000_000

const (
	paramMerchant = "merchant"
	paramAmount   = "amount"
	paramSalt     = "salt"
	paramMemo     = "memo"
	paramType     = "type"

	typeFundraising = "fundraising"
)

// Params are the decoded contents of a payment link.
type Params struct {
	Merchant    commitment.Address
	AmountMicro uint64
	Salt        commitment.Salt
	Memo        string
	Fundraising bool
}

// Build renders the link against a base URL. The amount is transmitted in
// whole display units.
func Build(base string, p Params) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base url: %v", commitment.ErrFormat, err)
	}
	if err := commitment.ValidateAddress(string(p.Merchant)); err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set(paramMerchant, string(p.Merchant))
	q.Set(paramAmount, FormatDisplayAmount(p.AmountMicro))
	q.Set(paramSalt, p.Salt.String())
	if p.Memo != "" {
		q.Set(paramMemo, p.Memo)
	}
	if p.Fundraising {
		q.Set(paramType, typeFundraising)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Parse decodes a payment link. Malformed parameters are rejected with
// commitment.ErrFormat, never silently normalized.
func Parse(raw string) (Params, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Params{}, fmt.Errorf("%w: invalid link: %v", commitment.ErrFormat, err)
	}
	q := u.Query()

	merchant, err := commitment.ParseAddress(q.Get(paramMerchant))
	if err != nil {
		return Params{}, err
	}
	amountMicro, err := ParseDisplayAmount(q.Get(paramAmount))
	if err != nil {
		return Params{}, err
	}
	salt, err := commitment.ParseSalt(q.Get(paramSalt))
	if err != nil {
		return Params{}, err
	}
	return Params{
		Merchant:    merchant,
		AmountMicro: amountMicro,
		Salt:        salt,
		Memo:        q.Get(paramMemo),
		Fundraising: q.Get(paramType) == typeFundraising,
	}, nil
}

// ParseDisplayAmount converts a decimal display-unit string to
// micro-units. At most six fractional digits are allowed; anything else
// is a format error.
func ParseDisplayAmount(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty amount", commitment.ErrFormat)
	}
	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
		if frac == "" {
			return 0, fmt.Errorf("%w: amount %q has a trailing decimal point", commitment.ErrFormat, s)
		}
	}
	if len(frac) > 6 {
		return 0, fmt.Errorf("%w: amount %q has more than 6 fractional digits", commitment.ErrFormat, s)
	}
	if whole == "" {
		whole = "0"
	}
	wholeUnits, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not a non-negative decimal", commitment.ErrFormat, s)
	}
	fracMicro := uint64(0)
	if frac != "" {
		padded := frac + strings.Repeat("0", 6-len(frac))
		fracMicro, err = strconv.ParseUint(padded, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: amount %q has a malformed fraction", commitment.ErrFormat, s)
		}
	}
	if wholeUnits > (1<<64-1-fracMicro)/Micro {
		return 0, fmt.Errorf("%w: amount %q overflows micro-units", commitment.ErrFormat, s)
	}
	return wholeUnits*Micro + fracMicro, nil
}

// FormatDisplayAmount renders micro-units as a display-unit decimal with
// trailing zeros trimmed.
func FormatDisplayAmount(amountMicro uint64) string {
	whole := amountMicro / Micro
	frac := amountMicro % Micro
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fracStr := strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	return fmt.Sprintf("%d.%s", whole, fracStr)
}
