// poller.go - Bounded status polling for submitted transactions.
//
// The loop is an explicit state machine over named states rather than a
// nested retry chain, so it is testable without real network timing.

package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrPollingTimeout is returned when the attempt cap is exhausted
	// with the transaction still pending.
	ErrPollingTimeout = errors.New("poller: attempt cap exhausted, transaction still pending")
	// ErrTransactionRejected is returned when the status source reports a
	// terminal rejection. Never retried.
	ErrTransactionRejected = errors.New("poller: transaction rejected")
)

const (
	defaultPollInterval = time.Second
	defaultPollAttempts = 90
)

// PollState is the poller's view of a transaction.
type PollState byte

const (
	// StatePending means no terminal status observed yet.
	StatePending PollState = iota
	// StateConfirmed is terminal success.
	StateConfirmed
	// StateRejected is terminal failure.
	StateRejected
	// StateTimedOut means the attempt cap ran out while pending.
	StateTimedOut
)

// String returns the display name of the state.
func (s PollState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateRejected:
		return "rejected"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Poller drives a submitted transaction to a terminal state by polling a
// status source at a fixed interval under a capped attempt count.
type Poller struct {
	source   StatusSource
	interval time.Duration
	attempts int
	log      zerolog.Logger
}

// NewPoller creates a poller with the default one-second interval and
// 90-attempt cap.
func NewPoller(source StatusSource, log zerolog.Logger) *Poller {
	return &Poller{
		source:   source,
		interval: defaultPollInterval,
		attempts: defaultPollAttempts,
		log:      log,
	}
}

// SetBounds overrides the poll interval and attempt cap.
func (p *Poller) SetBounds(interval time.Duration, attempts int) {
	if interval > 0 {
		p.interval = interval
	}
	if attempts > 0 {
		p.attempts = attempts
	}
}

// Wait polls until the transaction reaches a terminal state or the
// attempt cap runs out. Transient lookup errors are logged and retried;
// an explicit rejection is immediately terminal. The returned state is
// never StatePending.
func (p *Poller) Wait(ctx context.Context, txID string) (PollState, error) {
	for attempt := 1; attempt <= p.attempts; attempt++ {
		status, err := p.source.TxStatus(ctx, txID)
		switch {
		case err != nil:
			// Transient lookup failure; keep polling.
			p.log.Warn().Err(err).Str("tx_id", txID).Int("attempt", attempt).Msg("status lookup failed, retrying")
		case status == TxConfirmed:
			p.log.Info().Str("tx_id", txID).Int("attempt", attempt).Msg("transaction confirmed")
			return StateConfirmed, nil
		case status == TxRejected:
			return StateRejected, fmt.Errorf("%w: %s", ErrTransactionRejected, txID)
		}
		if attempt == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return StateTimedOut, ctx.Err()
		case <-time.After(p.interval):
		}
	}
	return StateTimedOut, fmt.Errorf("%w: %s after %d attempts", ErrPollingTimeout, txID, p.attempts)
}
