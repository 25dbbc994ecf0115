// matcher.go - Funding record selection.
//
// Policy: pick one unspent record whose balance strictly exceeds the
// target, leaving room for fee and change in the underlying transfer.
// Callers needing exact-spend must pre-split records.

package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrInsufficientBalance means the aggregate unspent balance is below
	// the target; no consolidation can help.
	ErrInsufficientBalance = errors.New("matcher: insufficient aggregate balance")
	// ErrInsufficientSingleRecord means the aggregate would cover the
	// target but no single record does; consolidate first.
	ErrInsufficientSingleRecord = errors.New("matcher: no single record covers the amount, consolidation required")
)

const (
	defaultScanAttempts = 3
	defaultScanInterval = 2 * time.Second
)

// Matcher selects funding records from an eventually consistent source.
// Selection is read-only; the spend itself belongs to the transfer
// primitive.
type Matcher struct {
	source   RecordSource
	attempts int
	interval time.Duration
	log      zerolog.Logger
}

// NewMatcher creates a matcher over the given record source.
func NewMatcher(source RecordSource, log zerolog.Logger) *Matcher {
	return &Matcher{
		source:   source,
		attempts: defaultScanAttempts,
		interval: defaultScanInterval,
		log:      log,
	}
}

// SetRetry overrides the re-poll bound used when the initial scan comes
// back empty-handed.
func (m *Matcher) SetRetry(attempts int, interval time.Duration) {
	if attempts > 0 {
		m.attempts = attempts
	}
	if interval > 0 {
		m.interval = interval
	}
}

// Select returns one unspent record with balance strictly greater than
// amountMicro. If the scan yields nothing it re-polls the source up to
// the configured bound before reporting failure, to tolerate lag in
// record discovery.
func (m *Matcher) Select(ctx context.Context, amountMicro uint64) (Record, error) {
	var lastErr error
	for attempt := 0; attempt < m.attempts; attempt++ {
		if attempt > 0 {
			m.log.Debug().Int("attempt", attempt).Msg("re-polling funding records")
			select {
			case <-ctx.Done():
				return Record{}, ctx.Err()
			case <-time.After(m.interval):
			}
		}
		records, err := m.source.Records(ctx)
		if err != nil {
			return Record{}, fmt.Errorf("record source: %w", err)
		}
		rec, scanErr := scan(records, amountMicro)
		if scanErr == nil {
			return rec, nil
		}
		lastErr = scanErr
	}
	return Record{}, lastErr
}

// scan applies the selection policy to one snapshot of records.
func scan(records []Record, amountMicro uint64) (Record, error) {
	var aggregate uint64
	for _, rec := range records {
		if rec.Spent {
			continue
		}
		if rec.BalanceMicro > amountMicro {
			return rec, nil
		}
		aggregate += rec.BalanceMicro
	}
	if aggregate >= amountMicro {
		return Record{}, fmt.Errorf("%w: aggregate %d covers target %d", ErrInsufficientSingleRecord, aggregate, amountMicro)
	}
	return Record{}, fmt.Errorf("%w: aggregate %d below target %d", ErrInsufficientBalance, aggregate, amountMicro)
}
