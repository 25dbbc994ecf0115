// receipts.go - Per-payment receipt ledger for fundraising invoices.
//
// Receipt keys are binding commitments over (payment secret, salt); the
// ledger is a set-once map, so the same payment secret can never be
// redeemed twice against one invoice.

package invoice

import (
	"fmt"

	"veilpay/internal/commitment"
)

// ReceiptLedger records fundraising contributions keyed by receipt
// commitment. First writer wins; a duplicate write is an error, never an
// overwrite.
type ReceiptLedger struct {
	state State
}

// NewReceiptLedger creates a receipt ledger over the given state backend.
func NewReceiptLedger(state State) *ReceiptLedger {
	return &ReceiptLedger{state: state}
}

// RecordPayment stores the receipt. Fails with ErrDuplicateReceipt if the
// key is already present.
func (r *ReceiptLedger) RecordPayment(key commitment.Hash, amountMicro uint64) error {
	if r.state == nil {
		return ErrNilState
	}
	inserted, err := r.state.ReceiptInsert(key, amountMicro)
	if err != nil {
		return fmt.Errorf("receipt insert: %w", err)
	}
	if !inserted {
		return fmt.Errorf("%w: %s", ErrDuplicateReceipt, key)
	}
	return nil
}

// HasReceipt reports whether the receipt key has been recorded.
func (r *ReceiptLedger) HasReceipt(key commitment.Hash) (bool, error) {
	if r.state == nil {
		return false, ErrNilState
	}
	_, ok, err := r.state.ReceiptGet(key)
	if err != nil {
		return false, fmt.Errorf("receipt get: %w", err)
	}
	return ok, nil
}
