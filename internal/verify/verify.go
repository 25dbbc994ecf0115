// Package verify recomputes commitments from candidate inputs and checks
// them against on-chain state. It serves two callers: the payer before
// paying (does this link reproduce an open invoice?) and the explorer
// when classifying an invoice for display.
//
// A lookup that errors and a lookup that finds nothing are deliberately
// indistinguishable: both are NotFound, and NotFound is never surfaced as
// paid.
package verify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"veilpay/internal/commitment"
	"veilpay/internal/invoice"
	"veilpay/internal/link"
)

// Result classifies a verification attempt.
type Result byte

const (
	// ResultVerified means the commitment exists and matches the
	// expected status, if one was given.
	ResultVerified Result = iota
	// ResultNotFound means the commitment is unknown, or the lookup
	// failed. Treated identically; never reported as paid.
	ResultNotFound
	// ResultStatusMismatch means the commitment exists but its status is
	// not the expected one.
	ResultStatusMismatch
)

// String returns the display name of the result.
func (r Result) String() string {
	switch r {
	case ResultVerified:
		return "verified"
	case ResultNotFound:
		return "not_found"
	case ResultStatusMismatch:
		return "status_mismatch"
	default:
		return "unknown"
	}
}

// StatusReader looks up the on-chain status of a commitment.
type StatusReader interface {
	InvoiceStatus(ctx context.Context, hash commitment.Hash) (invoice.Status, bool, error)
}

// Service verifies commitments against a status source using the same
// hash scheme version as issuance; the scheme is pinned in the
// commitment package, so creation-time and verification-time hashing
// cannot drift within one build.
type Service struct {
	reader StatusReader
	log    zerolog.Logger
}

// NewService creates a verification service over the given status reader.
func NewService(reader StatusReader, log zerolog.Logger) *Service {
	return &Service{reader: reader, log: log}
}

// Verify checks that hash exists on chain and, when expected is non-nil,
// that its status matches.
func (s *Service) Verify(ctx context.Context, hash commitment.Hash, expected *invoice.Status) Result {
	status, ok, err := s.reader.InvoiceStatus(ctx, hash)
	if err != nil {
		s.log.Warn().Err(err).Str("hash", hash.String()).Msg("status lookup failed, reporting not found")
		return ResultNotFound
	}
	if !ok {
		return ResultNotFound
	}
	if expected != nil && status != *expected {
		return ResultStatusMismatch
	}
	return ResultVerified
}

// VerifyLink is the payer-side integrity check: recompute the commitment
// from the link parameters and confirm it exists on chain and is still
// open. A zero amount or malformed merchant is rejected before hashing.
func (s *Service) VerifyLink(ctx context.Context, p link.Params) (commitment.Hash, Result, error) {
	if p.AmountMicro == 0 {
		return commitment.Hash{}, ResultNotFound, fmt.Errorf("%w: amount must be positive", commitment.ErrFormat)
	}
	hash, err := commitment.ComputeHash(p.Merchant, p.AmountMicro, p.Salt)
	if err != nil {
		return commitment.Hash{}, ResultNotFound, err
	}
	open := invoice.StatusOpen
	return hash, s.Verify(ctx, hash, &open), nil
}
