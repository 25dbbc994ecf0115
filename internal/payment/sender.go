// sender.go - End-to-end payment submission: select funds, invoke the
// external transfer, wait for a terminal status.

package payment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Sender orchestrates one payment against a verified commitment. All
// capabilities are injected; the sender holds no ambient wallet state.
type Sender struct {
	matcher  *Matcher
	transfer TransferClient
	poller   *Poller
	log      zerolog.Logger
}

// NewSender wires a sender from its three capabilities.
func NewSender(matcher *Matcher, transfer TransferClient, poller *Poller, log zerolog.Logger) *Sender {
	return &Sender{matcher: matcher, transfer: transfer, poller: poller, log: log}
}

// Send picks a funding record covering amountMicro, submits the transfer
// toward recipient, and polls the transaction to a terminal state.
// Returns the transaction ID along with the terminal poll state; the
// error carries the precise failure cause (selection, submission,
// rejection, or timeout).
func (s *Sender) Send(ctx context.Context, recipient string, amountMicro uint64, opts TransferOptions) (string, PollState, error) {
	record, err := s.matcher.Select(ctx, amountMicro)
	if err != nil {
		return "", StatePending, fmt.Errorf("select funding record: %w", err)
	}
	s.log.Debug().Str("record", record.ID).Uint64("balance_micro", record.BalanceMicro).Msg("funding record selected")

	txID, err := s.transfer.Transfer(ctx, record, recipient, amountMicro, opts)
	if err != nil {
		return "", StatePending, fmt.Errorf("submit transfer: %w", err)
	}
	s.log.Info().Str("tx_id", txID).Uint64("amount_micro", amountMicro).Msg("transfer submitted")

	state, err := s.poller.Wait(ctx, txID)
	if err != nil {
		return txID, state, err
	}
	return txID, state, nil
}
