package invoice

import "errors"

var (
	// ErrNilState is returned when the engine has no state backend.
	ErrNilState = errors.New("invoice engine: state not configured")
	// ErrDuplicateKey is returned by create when the commitment hash is
	// already present.
	ErrDuplicateKey = errors.New("invoice engine: commitment already exists")
	// ErrNotFound is returned on lookup of an unknown commitment hash.
	ErrNotFound = errors.New("invoice engine: invoice not found")
	// ErrExpired is returned by pay once the current height passes the
	// invoice expiry.
	ErrExpired = errors.New("invoice engine: invoice expired")
	// ErrAlreadySettled is returned by pay on a settled invoice.
	ErrAlreadySettled = errors.New("invoice engine: invoice already settled")
	// ErrUnauthorizedSettle is returned when the caller-derived hash does
	// not match the invoice commitment.
	ErrUnauthorizedSettle = errors.New("invoice engine: caller-derived hash mismatch")
	// ErrDuplicateReceipt is returned when a receipt key is replayed.
	ErrDuplicateReceipt = errors.New("receipt ledger: receipt key already recorded")
)
