package invoice

import (
	"errors"
	"testing"

	"veilpay/internal/commitment"
)

// TestFundraisingReceipts covers the multi-payment flow: distinct payment
// secrets each contribute once, the invoice stays open, and replaying a
// secret is rejected.
func TestFundraisingReceipts(t *testing.T) {
	state := NewMemState()
	engine := NewEngine(state)
	receipts := NewReceiptLedger(state)
	hash, salt := newTestInvoice(t)

	if err := engine.Create(hash, salt, 0, TypeFundraising); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	secretA := []byte("payer-a-secret")
	secretB := []byte("payer-b-secret")
	keyA := commitment.ReceiptKey(secretA, salt)
	keyB := commitment.ReceiptKey(secretB, salt)

	t.Run("Two Distinct Payments", func(t *testing.T) {
		for _, key := range []commitment.Hash{keyA, keyB} {
			if _, err := engine.Pay(hash, 5); err != nil {
				t.Fatalf("Pay failed: %v", err)
			}
			if err := receipts.RecordPayment(key, 2_000_000); err != nil {
				t.Fatalf("RecordPayment failed: %v", err)
			}
		}
		inv, err := engine.Get(hash)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if inv.Status != StatusOpen {
			t.Error("fundraising invoice closed after two payments")
		}
	})

	t.Run("Replay Rejected", func(t *testing.T) {
		if err := receipts.RecordPayment(keyA, 2_000_000); !errors.Is(err, ErrDuplicateReceipt) {
			t.Errorf("expected ErrDuplicateReceipt, got %v", err)
		}
	})

	t.Run("HasReceipt", func(t *testing.T) {
		for _, key := range []commitment.Hash{keyA, keyB} {
			ok, err := receipts.HasReceipt(key)
			if err != nil {
				t.Fatalf("HasReceipt failed: %v", err)
			}
			if !ok {
				t.Errorf("receipt %s not found", key)
			}
		}
		unused := commitment.ReceiptKey([]byte("unused"), salt)
		ok, err := receipts.HasReceipt(unused)
		if err != nil {
			t.Fatalf("HasReceipt failed: %v", err)
		}
		if ok {
			t.Error("unrecorded receipt reported present")
		}
	})
}
