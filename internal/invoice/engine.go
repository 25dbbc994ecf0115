// engine.go - Invoice lifecycle state machine.
//
// Transitions:
//
//	create: absent -> Open
//	pay:    Open -> Settled (standard), Open -> Open (fundraising)
//	settle: any -> Settled, authorized by commitment recomputation
//
// Settled is terminal; re-settling an authorized fundraising invoice is
// an idempotent no-op.

package invoice

import (
	"fmt"

	"veilpay/internal/commitment"
)

// Engine wires the invoice business logic to an injected state backend.
// It holds no ambient session state; identity enters only as the
// caller-derived hash passed to Settle.
type Engine struct {
	state State
}

// NewEngine creates an engine over the given state backend.
func NewEngine(state State) *Engine {
	return &Engine{state: state}
}

// Create inserts a new Open invoice keyed by hash and indexes its salt so
// payers can recover the commitment from the shared link. Fails with
// ErrDuplicateKey if the hash is already present.
func (e *Engine) Create(hash commitment.Hash, salt commitment.Salt, expiry uint64, typ Type) error {
	if e.state == nil {
		return ErrNilState
	}
	inv := &Invoice{
		Hash:   hash,
		Expiry: expiry,
		Status: StatusOpen,
		Type:   typ,
		Scheme: commitment.SchemeVersion,
	}
	created, err := e.state.InvoiceInsert(inv)
	if err != nil {
		return fmt.Errorf("invoice insert: %w", err)
	}
	if !created {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, hash)
	}
	if _, err := e.state.SaltIndexInsert(salt, hash); err != nil {
		return fmt.Errorf("salt index insert: %w", err)
	}
	return nil
}

// Pay applies a payment to the invoice at the given chain height.
// Standard invoices transition irreversibly to Settled; fundraising
// invoices stay Open (the receipt ledger records the contribution).
// Returns the post-transition record.
func (e *Engine) Pay(hash commitment.Hash, height uint64) (*Invoice, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	inv, ok, err := e.state.InvoiceGet(hash)
	if err != nil {
		return nil, fmt.Errorf("invoice get: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if inv.Status == StatusSettled {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySettled, hash)
	}
	if inv.Expired(height) {
		return nil, fmt.Errorf("%w: %s expired at height %d, current %d", ErrExpired, hash, inv.Expiry, height)
	}
	if inv.Type == TypeStandard {
		inv.Status = StatusSettled
		if err := e.state.InvoicePut(inv); err != nil {
			return nil, fmt.Errorf("invoice put: %w", err)
		}
	}
	return inv, nil
}

// Settle closes the invoice. The caller proves merchant identity by
// recomputing the commitment with their own identity plus the known
// amount and salt; callerDerived must equal the stored hash. Once
// authorized the close is idempotent regardless of current status.
func (e *Engine) Settle(hash, callerDerived commitment.Hash) (*Invoice, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	inv, ok, err := e.state.InvoiceGet(hash)
	if err != nil {
		return nil, fmt.Errorf("invoice get: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if !callerDerived.Equal(hash) {
		return nil, fmt.Errorf("%w: derived %s, want %s", ErrUnauthorizedSettle, callerDerived, hash)
	}
	if inv.Status == StatusSettled {
		return inv, nil
	}
	inv.Status = StatusSettled
	if err := e.state.InvoicePut(inv); err != nil {
		return nil, fmt.Errorf("invoice put: %w", err)
	}
	return inv, nil
}

// Get returns the invoice record for hash.
func (e *Engine) Get(hash commitment.Hash) (*Invoice, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	inv, ok, err := e.state.InvoiceGet(hash)
	if err != nil {
		return nil, fmt.Errorf("invoice get: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return inv, nil
}

// HashForSalt resolves a salt to its canonical commitment hash. This is
// the one-way lookup payers use: the shared link carries the salt but
// never the merchant identity or the hash itself.
func (e *Engine) HashForSalt(salt commitment.Salt) (commitment.Hash, error) {
	if e.state == nil {
		return commitment.Hash{}, ErrNilState
	}
	hash, ok, err := e.state.SaltIndexGet(salt)
	if err != nil {
		return commitment.Hash{}, fmt.Errorf("salt index get: %w", err)
	}
	if !ok {
		return commitment.Hash{}, fmt.Errorf("%w: salt not indexed", ErrNotFound)
	}
	return hash, nil
}
