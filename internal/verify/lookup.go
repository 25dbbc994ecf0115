// lookup.go - Multi-strategy commitment recovery.
//
// A payer holds the salt from the shared link but must discover the
// canonical hash without the merchant identity being transmitted. The
// sources able to answer that query have uncertain availability, so they
// are modeled as an ordered capability set tried in sequence, not a
// hardcoded fallback chain.

package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"veilpay/internal/commitment"
	"veilpay/internal/invoice"
)

// ErrNoStrategy is returned by a ChainLookup with no strategies.
var ErrNoStrategy = errors.New("lookup: no strategies configured")

// HashLookupStrategy resolves a salt to its commitment hash. A strategy
// that cannot answer reports found=false; an error means the source was
// unreachable. Either way the chain moves on.
type HashLookupStrategy interface {
	Name() string
	HashForSalt(ctx context.Context, salt commitment.Salt) (hash commitment.Hash, found bool, err error)
}

// ChainLookup tries strategies in order and short-circuits on the first
// hit.
type ChainLookup struct {
	strategies []HashLookupStrategy
	log        zerolog.Logger
}

// NewChainLookup builds a chain over the given strategies, tried in the
// order given.
func NewChainLookup(log zerolog.Logger, strategies ...HashLookupStrategy) *ChainLookup {
	return &ChainLookup{strategies: strategies, log: log}
}

// HashForSalt walks the chain. Returns invoice.ErrNotFound when every
// strategy comes up empty.
func (c *ChainLookup) HashForSalt(ctx context.Context, salt commitment.Salt) (commitment.Hash, error) {
	if len(c.strategies) == 0 {
		return commitment.Hash{}, ErrNoStrategy
	}
	for _, strat := range c.strategies {
		hash, found, err := strat.HashForSalt(ctx, salt)
		if err != nil {
			c.log.Warn().Err(err).Str("strategy", strat.Name()).Msg("lookup strategy failed, trying next")
			continue
		}
		if found {
			c.log.Debug().Str("strategy", strat.Name()).Msg("commitment recovered")
			return hash, nil
		}
	}
	return commitment.Hash{}, fmt.Errorf("%w: no strategy resolved the salt", invoice.ErrNotFound)
}

// EngineSource adapts an invoice engine into both a StatusReader and a
// HashLookupStrategy backed by the on-chain salt index.
type EngineSource struct {
	Engine *invoice.Engine
}

// Name implements HashLookupStrategy.
func (e EngineSource) Name() string { return "salt-index" }

// HashForSalt implements HashLookupStrategy.
func (e EngineSource) HashForSalt(ctx context.Context, salt commitment.Salt) (commitment.Hash, bool, error) {
	hash, err := e.Engine.HashForSalt(salt)
	if errors.Is(err, invoice.ErrNotFound) {
		return commitment.Hash{}, false, nil
	}
	if err != nil {
		return commitment.Hash{}, false, err
	}
	return hash, true, nil
}

// ExplorerLookup resolves salts through a public explorer API. Used when
// the local salt index is cold, e.g. a payer recovering a link issued by
// another node.
type ExplorerLookup struct {
	BaseURL string
	Client  *http.Client
}

// Name implements HashLookupStrategy.
func (e ExplorerLookup) Name() string { return "explorer-api" }

// HashForSalt implements HashLookupStrategy. A 404 from the explorer
// means the salt is unknown; any other non-200 status is a source error.
func (e ExplorerLookup) HashForSalt(ctx context.Context, salt commitment.Salt) (commitment.Hash, bool, error) {
	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	u := e.BaseURL + "/v1/salts/" + url.PathEscape(salt.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return commitment.Hash{}, false, fmt.Errorf("explorer request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return commitment.Hash{}, false, fmt.Errorf("explorer lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return commitment.Hash{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return commitment.Hash{}, false, fmt.Errorf("explorer lookup: unexpected status %d", resp.StatusCode)
	}
	var body struct {
		Hash commitment.Hash `json:"hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return commitment.Hash{}, false, fmt.Errorf("explorer response: %w", err)
	}
	return body.Hash, true, nil
}

// InvoiceStatus implements StatusReader.
func (e EngineSource) InvoiceStatus(ctx context.Context, hash commitment.Hash) (invoice.Status, bool, error) {
	inv, err := e.Engine.Get(hash)
	if errors.Is(err, invoice.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return inv.Status, true, nil
}
