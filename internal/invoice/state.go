// state.go - State backend contract and the in-memory implementation.
//
// In a deployment the maps live in an external consensus-ordered store;
// the interface here pins the read/write contract the engine relies on.
// MemState is the reference implementation used by tests and the local
// daemon.

package invoice

import (
	"sync"

	"veilpay/internal/commitment"
)

// State is the storage backend for invoices, receipts, and the
// salt-to-commitment index. Insert methods follow compare-and-set
// semantics: they return false without modifying anything when the key
// is already present. Implementations must make each call atomic.
type State interface {
	// InvoiceInsert stores inv keyed by its hash. Returns false if the
	// hash is already present.
	InvoiceInsert(inv *Invoice) (bool, error)
	// InvoicePut overwrites an existing record.
	InvoicePut(inv *Invoice) error
	// InvoiceGet returns the record for hash, if any.
	InvoiceGet(hash commitment.Hash) (*Invoice, bool, error)

	// ReceiptInsert stores a payment receipt. Returns false if the
	// receipt key is already present (first writer wins).
	ReceiptInsert(key commitment.Hash, amountMicro uint64) (bool, error)
	// ReceiptGet returns the recorded amount for key, if any.
	ReceiptGet(key commitment.Hash) (uint64, bool, error)

	// SaltIndexInsert records the one-way salt -> hash mapping. Returns
	// false if the salt is already indexed.
	SaltIndexInsert(salt commitment.Salt, hash commitment.Hash) (bool, error)
	// SaltIndexGet resolves a salt to its commitment hash, if indexed.
	SaltIndexGet(salt commitment.Salt) (commitment.Hash, bool, error)
}

// MemState is an in-memory State guarded by a mutex. Single-process
// stand-in for the consensus store; safe for concurrent use.
type MemState struct {
	mu        sync.Mutex
	invoices  map[commitment.Hash]Invoice
	receipts  map[commitment.Hash]uint64
	saltIndex map[commitment.Salt]commitment.Hash
}

// NewMemState creates an empty in-memory state.
func NewMemState() *MemState {
	return &MemState{
		invoices:  make(map[commitment.Hash]Invoice),
		receipts:  make(map[commitment.Hash]uint64),
		saltIndex: make(map[commitment.Salt]commitment.Hash),
	}
}

// InvoiceInsert implements State.
func (s *MemState) InvoiceInsert(inv *Invoice) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.invoices[inv.Hash]; exists {
		return false, nil
	}
	s.invoices[inv.Hash] = *inv
	return true, nil
}

// InvoicePut implements State.
func (s *MemState) InvoicePut(inv *Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.Hash] = *inv
	return nil
}

// InvoiceGet implements State.
func (s *MemState) InvoiceGet(hash commitment.Hash) (*Invoice, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[hash]
	if !ok {
		return nil, false, nil
	}
	cp := inv
	return &cp, true, nil
}

// ReceiptInsert implements State.
func (s *MemState) ReceiptInsert(key commitment.Hash, amountMicro uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.receipts[key]; exists {
		return false, nil
	}
	s.receipts[key] = amountMicro
	return true, nil
}

// ReceiptGet implements State.
func (s *MemState) ReceiptGet(key commitment.Hash) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amt, ok := s.receipts[key]
	return amt, ok, nil
}

// SaltIndexInsert implements State.
func (s *MemState) SaltIndexInsert(salt commitment.Salt, hash commitment.Hash) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.saltIndex[salt]; exists {
		return false, nil
	}
	s.saltIndex[salt] = hash
	return true, nil
}

// SaltIndexGet implements State.
func (s *MemState) SaltIndexGet(salt commitment.Salt) (commitment.Hash, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ok := s.saltIndex[salt]
	return hash, ok, nil
}
