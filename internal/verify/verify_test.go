package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"veilpay/internal/commitment"
	"veilpay/internal/invoice"
	"veilpay/internal/link"
)

func testMerchant(t *testing.T) commitment.Address {
	t.Helper()
	addr, err := commitment.ParseAddress("pay1" + strings.Repeat("x", 59))
	if err != nil {
		t.Fatalf("test merchant invalid: %v", err)
	}
	return addr
}

func setup(t *testing.T) (*invoice.Engine, *Service, commitment.Hash, link.Params) {
	t.Helper()
	engine := invoice.NewEngine(invoice.NewMemState())
	svc := NewService(EngineSource{Engine: engine}, zerolog.Nop())

	salt, err := commitment.GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}
	params := link.Params{Merchant: testMerchant(t), AmountMicro: 10_000_000, Salt: salt}
	hash, err := commitment.ComputeHash(params.Merchant, params.AmountMicro, params.Salt)
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}
	if err := engine.Create(hash, salt, 0, invoice.TypeStandard); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return engine, svc, hash, params
}

func TestVerify(t *testing.T) {
	engine, svc, hash, _ := setup(t)
	ctx := context.Background()
	open := invoice.StatusOpen
	settled := invoice.StatusSettled

	t.Run("Verified", func(t *testing.T) {
		if got := svc.Verify(ctx, hash, &open); got != ResultVerified {
			t.Errorf("Verify = %s, want verified", got)
		}
		if got := svc.Verify(ctx, hash, nil); got != ResultVerified {
			t.Errorf("Verify without expectation = %s, want verified", got)
		}
	})

	t.Run("Status Mismatch", func(t *testing.T) {
		if got := svc.Verify(ctx, hash, &settled); got != ResultStatusMismatch {
			t.Errorf("Verify = %s, want status_mismatch", got)
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		other, err := commitment.GenerateSalt()
		if err != nil {
			t.Fatalf("GenerateSalt failed: %v", err)
		}
		unknown, err := commitment.ComputeHash(testMerchant(t), 7_000_000, other)
		if err != nil {
			t.Fatalf("ComputeHash failed: %v", err)
		}
		if got := svc.Verify(ctx, unknown, &open); got != ResultNotFound {
			t.Errorf("Verify = %s, want not_found", got)
		}
	})

	t.Run("Mismatch After Settle", func(t *testing.T) {
		if _, err := engine.Pay(hash, 1); err != nil {
			t.Fatalf("Pay failed: %v", err)
		}
		if got := svc.Verify(ctx, hash, &open); got != ResultStatusMismatch {
			t.Errorf("Verify after settle = %s, want status_mismatch", got)
		}
	})
}

// TestVerifyLookupErrorIsNotFound pins the explorer-side rule: a failing
// status source must classify as not found, never as paid.
func TestVerifyLookupErrorIsNotFound(t *testing.T) {
	svc := NewService(failingReader{}, zerolog.Nop())
	salt, err := commitment.GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}
	hash, err := commitment.ComputeHash(testMerchant(t), 1_000_000, salt)
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}
	open := invoice.StatusOpen
	if got := svc.Verify(context.Background(), hash, &open); got != ResultNotFound {
		t.Errorf("Verify with failing reader = %s, want not_found", got)
	}
}

func TestVerifyLink(t *testing.T) {
	_, svc, hash, params := setup(t)
	ctx := context.Background()

	t.Run("Genuine Link", func(t *testing.T) {
		got, result, err := svc.VerifyLink(ctx, params)
		if err != nil {
			t.Fatalf("VerifyLink failed: %v", err)
		}
		if result != ResultVerified {
			t.Errorf("result = %s, want verified", result)
		}
		if !got.Equal(hash) {
			t.Errorf("recomputed hash %s, want %s", got, hash)
		}
	})

	t.Run("Tampered Amount", func(t *testing.T) {
		tampered := params
		tampered.AmountMicro = 100_000_000
		_, result, err := svc.VerifyLink(ctx, tampered)
		if err != nil {
			t.Fatalf("VerifyLink failed: %v", err)
		}
		if result != ResultNotFound {
			t.Errorf("tampered link result = %s, want not_found", result)
		}
	})

	t.Run("Zero Amount Rejected", func(t *testing.T) {
		zero := params
		zero.AmountMicro = 0
		if _, _, err := svc.VerifyLink(ctx, zero); !errors.Is(err, commitment.ErrFormat) {
			t.Errorf("expected ErrFormat for zero amount, got %v", err)
		}
	})
}

func TestChainLookup(t *testing.T) {
	engine, _, hash, params := setup(t)
	ctx := context.Background()

	t.Run("Short Circuit On First Hit", func(t *testing.T) {
		second := &countingStrategy{inner: EngineSource{Engine: engine}}
		chain := NewChainLookup(zerolog.Nop(), EngineSource{Engine: engine}, second)
		got, err := chain.HashForSalt(ctx, params.Salt)
		if err != nil {
			t.Fatalf("HashForSalt failed: %v", err)
		}
		if !got.Equal(hash) {
			t.Errorf("resolved %s, want %s", got, hash)
		}
		if second.calls != 0 {
			t.Errorf("second strategy consulted %d times after first hit", second.calls)
		}
	})

	t.Run("Failing Strategy Skipped", func(t *testing.T) {
		chain := NewChainLookup(zerolog.Nop(), brokenStrategy{}, EngineSource{Engine: engine})
		got, err := chain.HashForSalt(ctx, params.Salt)
		if err != nil {
			t.Fatalf("HashForSalt failed: %v", err)
		}
		if !got.Equal(hash) {
			t.Errorf("resolved %s, want %s", got, hash)
		}
	})

	t.Run("All Miss", func(t *testing.T) {
		unknown, err := commitment.GenerateSalt()
		if err != nil {
			t.Fatalf("GenerateSalt failed: %v", err)
		}
		chain := NewChainLookup(zerolog.Nop(), brokenStrategy{}, EngineSource{Engine: engine})
		if _, err := chain.HashForSalt(ctx, unknown); !errors.Is(err, invoice.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Empty Chain", func(t *testing.T) {
		chain := NewChainLookup(zerolog.Nop())
		if _, err := chain.HashForSalt(ctx, params.Salt); !errors.Is(err, ErrNoStrategy) {
			t.Errorf("expected ErrNoStrategy, got %v", err)
		}
	})
}

func TestExplorerLookup(t *testing.T) {
	_, _, hash, params := setup(t)
	ctx := context.Background()

	t.Run("Hit", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			want := "/v1/salts/" + params.Salt.String()
			if r.URL.Path != want {
				t.Errorf("explorer queried %s, want %s", r.URL.Path, want)
			}
			fmt.Fprintf(w, `{"hash":%q}`, hash.String())
		}))
		defer srv.Close()

		strat := ExplorerLookup{BaseURL: srv.URL, Client: srv.Client()}
		got, found, err := strat.HashForSalt(ctx, params.Salt)
		if err != nil {
			t.Fatalf("HashForSalt failed: %v", err)
		}
		if !found {
			t.Fatal("expected a hit")
		}
		if !got.Equal(hash) {
			t.Errorf("resolved %s, want %s", got, hash)
		}
	})

	t.Run("Unknown Salt", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		strat := ExplorerLookup{BaseURL: srv.URL, Client: srv.Client()}
		_, found, err := strat.HashForSalt(ctx, params.Salt)
		if err != nil {
			t.Fatalf("HashForSalt failed: %v", err)
		}
		if found {
			t.Error("expected a miss for unknown salt")
		}
	})

	t.Run("Explorer Down Skipped By Chain", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		engine, _, _, _ := setup(t)
		down := ExplorerLookup{BaseURL: srv.URL, Client: srv.Client()}
		chain := NewChainLookup(zerolog.Nop(), down, EngineSource{Engine: engine})
		unknown, err := commitment.GenerateSalt()
		if err != nil {
			t.Fatalf("GenerateSalt failed: %v", err)
		}
		if _, err := chain.HashForSalt(ctx, unknown); !errors.Is(err, invoice.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

type failingReader struct{}

func (failingReader) InvoiceStatus(ctx context.Context, hash commitment.Hash) (invoice.Status, bool, error) {
	return 0, false, errors.New("status source down")
}

type brokenStrategy struct{}

func (brokenStrategy) Name() string { return "broken" }
func (brokenStrategy) HashForSalt(ctx context.Context, salt commitment.Salt) (commitment.Hash, bool, error) {
	return commitment.Hash{}, false, errors.New("unreachable")
}

type countingStrategy struct {
	inner HashLookupStrategy
	calls int
}

func (c *countingStrategy) Name() string { return "counting" }
func (c *countingStrategy) HashForSalt(ctx context.Context, salt commitment.Salt) (commitment.Hash, bool, error) {
	c.calls++
	return c.inner.HashForSalt(ctx, salt)
}
