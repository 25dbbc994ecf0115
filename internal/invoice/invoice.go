// Package invoice models the on-chain invoice lifecycle: an append-only
// map of commitment hash to invoice record, the Open/Settled state
// machine, and the per-payment receipt ledger used by fundraising
// invoices.
//
// The engine does not implement consensus ordering. All mutating
// operations are single-key compare-and-set contracts the state backend
// must honor: concurrent inserts on the same key resolve with exactly one
// winner, the loser observing the duplicate-key failure.
package invoice

import "veilpay/internal/commitment"

// Status is the lifecycle state of an invoice.
type Status byte

const (
	// StatusOpen means the invoice accepts payment.
	StatusOpen Status = 0x01
	// StatusSettled is terminal; no further transitions.
	StatusSettled Status = 0x02
)

// String returns the display name of the status.
func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Type discriminates single-payment invoices from multi-payment
// fundraising invoices.
type Type byte

const (
	// TypeStandard invoices settle on the first valid payment.
	TypeStandard Type = 0x01
	// TypeFundraising invoices stay open across payments and are closed
	// by an explicit merchant-authorized settle.
	TypeFundraising Type = 0x02
)

// String returns the display name of the invoice type.
func (t Type) String() string {
	switch t {
	case TypeStandard:
		return "standard"
	case TypeFundraising:
		return "fundraising"
	default:
		return "unknown"
	}
}

// Invoice is the on-chain record keyed by its commitment hash. The hash
// is the sole primary key; two invoices sharing a hash would merge, which
// salt entropy makes unreachable.
type Invoice struct {
	Hash   commitment.Hash `json:"hash"`
	Expiry uint64          `json:"expiry"` // block height; 0 = no expiry
	Status Status          `json:"status"`
	Type   Type            `json:"type"`
	Scheme uint8           `json:"scheme"` // commitment scheme version pinned at creation
}

// Expired reports whether the invoice can no longer be paid at height.
func (inv *Invoice) Expired(height uint64) bool {
	return inv.Expiry != 0 && height > inv.Expiry
}
