package invoice

import (
	"errors"
	"strings"
	"testing"

	"veilpay/internal/commitment"
)

func testMerchant(t *testing.T) commitment.Address {
	t.Helper()
	addr, err := commitment.ParseAddress("pay1" + strings.Repeat("q", 59))
	if err != nil {
		t.Fatalf("test merchant invalid: %v", err)
	}
	return addr
}

func newTestInvoice(t *testing.T) (commitment.Hash, commitment.Salt) {
	t.Helper()
	salt, err := commitment.GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}
	hash, err := commitment.ComputeHash(testMerchant(t), 10_000_000, salt)
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}
	return hash, salt
}

func TestStandardLifecycle(t *testing.T) {
	engine := NewEngine(NewMemState())
	hash, salt := newTestInvoice(t)

	if err := engine.Create(hash, salt, 0, TypeStandard); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("First Pay Settles", func(t *testing.T) {
		inv, err := engine.Pay(hash, 10)
		if err != nil {
			t.Fatalf("Pay failed: %v", err)
		}
		if inv.Status != StatusSettled {
			t.Errorf("standard invoice status after pay = %s, want settled", inv.Status)
		}
	})

	t.Run("Second Pay Rejected", func(t *testing.T) {
		if _, err := engine.Pay(hash, 11); !errors.Is(err, ErrAlreadySettled) {
			t.Errorf("expected ErrAlreadySettled, got %v", err)
		}
	})
}

func TestCreateDuplicate(t *testing.T) {
	engine := NewEngine(NewMemState())
	hash, salt := newTestInvoice(t)

	if err := engine.Create(hash, salt, 0, TypeStandard); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := engine.Create(hash, salt, 0, TypeStandard); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestPayUnknownHash(t *testing.T) {
	engine := NewEngine(NewMemState())
	hash, _ := newTestInvoice(t)
	if _, err := engine.Pay(hash, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExpiry(t *testing.T) {
	engine := NewEngine(NewMemState())
	hash, salt := newTestInvoice(t)

	if err := engine.Create(hash, salt, 100, TypeStandard); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("Past Expiry", func(t *testing.T) {
		if _, err := engine.Pay(hash, 150); !errors.Is(err, ErrExpired) {
			t.Errorf("expected ErrExpired at height 150, got %v", err)
		}
	})

	t.Run("Before Expiry", func(t *testing.T) {
		if _, err := engine.Pay(hash, 50); err != nil {
			t.Errorf("Pay at height 50 failed: %v", err)
		}
	})
}

func TestFundraisingStaysOpen(t *testing.T) {
	engine := NewEngine(NewMemState())
	hash, salt := newTestInvoice(t)

	if err := engine.Create(hash, salt, 0, TypeFundraising); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		inv, err := engine.Pay(hash, uint64(i+1))
		if err != nil {
			t.Fatalf("Pay %d failed: %v", i, err)
		}
		if inv.Status != StatusOpen {
			t.Fatalf("fundraising invoice closed after payment %d", i)
		}
	}
}

func TestSettleAuthorization(t *testing.T) {
	engine := NewEngine(NewMemState())
	hash, salt := newTestInvoice(t)

	if err := engine.Create(hash, salt, 0, TypeFundraising); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("Wrong Derived Hash", func(t *testing.T) {
		otherSalt, err := commitment.GenerateSalt()
		if err != nil {
			t.Fatalf("GenerateSalt failed: %v", err)
		}
		wrong, err := commitment.ComputeHash(testMerchant(t), 10_000_000, otherSalt)
		if err != nil {
			t.Fatalf("ComputeHash failed: %v", err)
		}
		if _, err := engine.Settle(hash, wrong); !errors.Is(err, ErrUnauthorizedSettle) {
			t.Errorf("expected ErrUnauthorizedSettle, got %v", err)
		}
		inv, err := engine.Get(hash)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if inv.Status != StatusOpen {
			t.Error("unauthorized settle changed invoice status")
		}
	})

	t.Run("Matching Derived Hash", func(t *testing.T) {
		inv, err := engine.Settle(hash, hash)
		if err != nil {
			t.Fatalf("Settle failed: %v", err)
		}
		if inv.Status != StatusSettled {
			t.Errorf("status after settle = %s, want settled", inv.Status)
		}
	})

	t.Run("Re-Settle Is Idempotent", func(t *testing.T) {
		inv, err := engine.Settle(hash, hash)
		if err != nil {
			t.Fatalf("idempotent re-settle failed: %v", err)
		}
		if inv.Status != StatusSettled {
			t.Errorf("status after re-settle = %s, want settled", inv.Status)
		}
	})
}

func TestSaltIndex(t *testing.T) {
	engine := NewEngine(NewMemState())
	hash, salt := newTestInvoice(t)

	if err := engine.Create(hash, salt, 0, TypeStandard); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := engine.HashForSalt(salt)
	if err != nil {
		t.Fatalf("HashForSalt failed: %v", err)
	}
	if !got.Equal(hash) {
		t.Errorf("HashForSalt = %s, want %s", got, hash)
	}

	unknown, err := commitment.GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}
	if _, err := engine.HashForSalt(unknown); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown salt, got %v", err)
	}
}

func TestEngineNilState(t *testing.T) {
	engine := NewEngine(nil)
	hash, salt := newTestInvoice(t)
	if err := engine.Create(hash, salt, 0, TypeStandard); !errors.Is(err, ErrNilState) {
		t.Errorf("expected ErrNilState, got %v", err)
	}
}
