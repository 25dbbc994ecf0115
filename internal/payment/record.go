// Package payment selects funding records against a target commitment
// and drives a submitted payment to a terminal status.
//
// The actual spend and the status source are external primitives; this
// package consumes their interfaces and owns the selection policy and the
// bounded polling state machine.
package payment

import "context"

// Record is an opaque unspent funding record from the external balance
// source.
type Record struct {
	ID           string
	BalanceMicro uint64
	Spent        bool
}

// RecordSource lists the caller's candidate funding records. Discovery is
// eventually consistent; a fresh poll may surface records a previous poll
// missed.
type RecordSource interface {
	Records(ctx context.Context) ([]Record, error)
}

// TransferOptions carries the optional auxiliary fields of a transfer.
type TransferOptions struct {
	// PaymentSecret binds the transfer to a fundraising receipt key.
	PaymentSecret []byte
	// Memo is an optional public message.
	Memo string
}

// TransferClient is the external transfer primitive. It spends a funding
// record toward a recipient and returns an asynchronous transaction
// identifier suitable for polling.
type TransferClient interface {
	Transfer(ctx context.Context, record Record, recipient string, amountMicro uint64, opts TransferOptions) (txID string, err error)
}

// StatusSource reports the status of a submitted transaction.
type StatusSource interface {
	TxStatus(ctx context.Context, txID string) (TxStatus, error)
}

// TxStatus is the observed state of a submitted transaction.
type TxStatus byte

const (
	// TxPending means the transaction has not reached a terminal state.
	TxPending TxStatus = iota
	// TxConfirmed is terminal success.
	TxConfirmed
	// TxRejected is terminal failure; never retried.
	TxRejected
)

// String returns the display name of the status.
func (s TxStatus) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxConfirmed:
		return "confirmed"
	case TxRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
