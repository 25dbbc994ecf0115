// server.go - HTTP API for invoice issuance, payment, and verification.
//
// The daemon runs the invoice engine over its injected state backend and
// exposes the merchant-side (create, settle), payer-side (pay, verify),
// and explorer-side (status, fraud check) surfaces. The metadata cache is
// best-effort throughout: cache failures are counted and logged, never
// allowed to block or roll back the authoritative flow.

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"veilpay/internal/commitment"
	"veilpay/internal/invoice"
	"veilpay/internal/link"
	"veilpay/internal/metastore"
	"veilpay/internal/verify"
)

// Server wires the HTTP surface to the core services.
type Server struct {
	cfg      *Config
	log      zerolog.Logger
	engine   *invoice.Engine
	receipts *invoice.ReceiptLedger
	verifier *verify.Service
	lookup   *verify.ChainLookup
	store    *metastore.Store // nil when the cache is disabled or down
	metrics  *Metrics
	health   *HealthChecker
	limiter  *RateLimiter

	// heightFn supplies the current chain height. The local stand-in
	// uses unix seconds.
	heightFn func() uint64
}

// NewServer assembles the server.
func NewServer(cfg *Config, log zerolog.Logger, engine *invoice.Engine, receipts *invoice.ReceiptLedger,
	verifier *verify.Service, lookup *verify.ChainLookup, store *metastore.Store,
	metrics *Metrics, health *HealthChecker, limiter *RateLimiter) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		engine:   engine,
		receipts: receipts,
		verifier: verifier,
		lookup:   lookup,
		store:    store,
		metrics:  metrics,
		health:   health,
		limiter:  limiter,
		heightFn: func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.health.Handler())
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Post("/v1/invoices", s.handleCreateInvoice)
		r.Get("/v1/invoices/{hash}", s.handleGetInvoice)
		r.Get("/v1/salts/{salt}", s.handleSaltLookup)
		r.Post("/v1/invoices/{hash}/settle", s.handleSettleInvoice)
		r.Post("/v1/pay", s.handlePay)
		r.Post("/v1/verify", s.handleVerify)
	})
	return r
}

// observe logs each request and records its latency.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)
		route := r.URL.Path
		if ctx := chi.RouteContext(r.Context()); ctx != nil && ctx.RoutePattern() != "" {
			route = ctx.RoutePattern()
		}
		s.metrics.ObserveHTTP(route, strconv.Itoa(ww.Status()), elapsed)
		s.log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", ww.Status()).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

type createInvoiceRequest struct {
	Merchant string `json:"merchant"`
	Amount   string `json:"amount"` // display units
	Memo     string `json:"memo,omitempty"`
	Type     string `json:"type,omitempty"`   // "standard" (default) or "fundraising"
	Expiry   uint64 `json:"expiry,omitempty"` // chain height, 0 = none
}

type createInvoiceResponse struct {
	Hash   string `json:"hash"`
	Salt   string `json:"salt"`
	Link   string `json:"link"`
	Type   string `json:"type"`
	Expiry uint64 `json:"expiry"`
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	merchant, err := commitment.ParseAddress(req.Merchant)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amountMicro, err := link.ParseDisplayAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if amountMicro == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("amount must be positive"))
		return
	}
	typ := invoice.TypeStandard
	if req.Type == "fundraising" {
		typ = invoice.TypeFundraising
	} else if req.Type != "" && req.Type != "standard" {
		s.writeError(w, http.StatusBadRequest, errors.New("type must be standard or fundraising"))
		return
	}

	salt, err := commitment.GenerateSalt()
	if err != nil {
		// Entropy failure is fatal for issuance; never degrade.
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	hash, err := commitment.ComputeHash(merchant, amountMicro, salt)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Create(hash, salt, req.Expiry, typ); err != nil {
		s.writeStateError(w, err)
		return
	}
	s.metrics.InvoicesCreated.WithLabelValues(typ.String()).Inc()

	shareLink, err := link.Build(s.cfg.BaseLinkURL, link.Params{
		Merchant:    merchant,
		AmountMicro: amountMicro,
		Salt:        salt,
		Memo:        req.Memo,
		Fundraising: typ == invoice.TypeFundraising,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.cacheWrite("save invoice", func(store *metastore.Store) error {
		return store.SaveInvoice(r.Context(), hash.String(), string(merchant), amountMicro, req.Memo, invoice.StatusOpen.String(), "")
	})

	s.log.Info().Str("hash", hash.String()).Str("type", typ.String()).Msg("invoice created")
	s.writeJSON(w, http.StatusCreated, createInvoiceResponse{
		Hash:   hash.String(),
		Salt:   salt.String(),
		Link:   shareLink,
		Type:   typ.String(),
		Expiry: req.Expiry,
	})
}

type invoiceResponse struct {
	Hash         string   `json:"hash"`
	Status       string   `json:"status"`
	Type         string   `json:"type"`
	Expiry       uint64   `json:"expiry"`
	Memo         string   `json:"memo,omitempty"`
	AmountMicro  uint64   `json:"amount_micro,omitempty"`
	PaymentTxIDs []string `json:"payment_tx_ids,omitempty"`
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	hash, err := commitment.ParseHash(chi.URLParam(r, "hash"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	inv, err := s.engine.Get(hash)
	if err != nil {
		s.writeStateError(w, err)
		return
	}
	resp := invoiceResponse{
		Hash:   inv.Hash.String(),
		Status: inv.Status.String(),
		Type:   inv.Type.String(),
		Expiry: inv.Expiry,
	}
	// Cached metadata is display-only; its absence is not an error.
	if s.store != nil {
		if meta, err := s.store.GetInvoice(r.Context(), hash.String()); err == nil {
			resp.Memo = meta.Memo
			resp.AmountMicro = meta.AmountMicro
			resp.PaymentTxIDs = meta.PaymentTxIDs
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleSaltLookup is the explorer-facing salt resolver: payers holding
// only the link salt recover the canonical commitment here.
func (s *Server) handleSaltLookup(w http.ResponseWriter, r *http.Request) {
	salt, err := commitment.ParseSalt(chi.URLParam(r, "salt"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	hash, err := s.engine.HashForSalt(salt)
	if err != nil {
		s.writeStateError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"hash": hash.String()})
}

type payRequest struct {
	Merchant      string `json:"merchant"`
	Amount        string `json:"amount"`
	Salt          string `json:"salt"`
	PaymentSecret string `json:"payment_secret,omitempty"` // fundraising only
	TxID          string `json:"tx_id,omitempty"`          // confirmed transfer id, cached for display
}

type payResponse struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	params, err := payParams(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	// Payer-side integrity check: the link parameters must reproduce an
	// open on-chain commitment.
	hash, result, err := s.verifier.VerifyLink(r.Context(), params)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.metrics.VerifyResults.WithLabelValues(result.String()).Inc()
	if result != verify.ResultVerified {
		s.writeError(w, http.StatusConflict, errors.New("link parameters do not match an open invoice: "+result.String()))
		return
	}

	// Cross-check against the canonical salt index; a mismatch means the
	// link was manipulated after issuance.
	canonical, err := s.lookup.HashForSalt(r.Context(), params.Salt)
	if err == nil && !canonical.Equal(hash) {
		s.writeError(w, http.StatusConflict, errors.New("recomputed hash does not match on-chain commitment"))
		return
	}

	inv, err := s.engine.Pay(hash, s.heightFn())
	if err != nil {
		s.writeStateError(w, err)
		return
	}
	if inv.Type == invoice.TypeFundraising {
		if req.PaymentSecret == "" {
			s.writeError(w, http.StatusBadRequest, errors.New("fundraising payment requires a payment_secret"))
			return
		}
		key := commitment.ReceiptKey([]byte(req.PaymentSecret), params.Salt)
		if err := s.receipts.RecordPayment(key, params.AmountMicro); err != nil {
			s.writeStateError(w, err)
			return
		}
	}

	s.cacheWrite("record payment", func(store *metastore.Store) error {
		if req.TxID != "" {
			if err := store.AppendPaymentTx(r.Context(), hash.String(), req.TxID); err != nil {
				return err
			}
		}
		return store.UpdateStatus(r.Context(), hash.String(), inv.Status.String())
	})

	s.log.Info().Str("hash", hash.String()).Str("status", inv.Status.String()).Msg("payment applied")
	s.writeJSON(w, http.StatusOK, payResponse{Hash: hash.String(), Status: inv.Status.String()})
}

type settleRequest struct {
	Merchant string `json:"merchant"`
	Amount   string `json:"amount"`
	Salt     string `json:"salt"`
}

func (s *Server) handleSettleInvoice(w http.ResponseWriter, r *http.Request) {
	hash, err := commitment.ParseHash(chi.URLParam(r, "hash"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	// The caller authorizes the close by reconstructing the commitment
	// from their own identity; there is no separate signature scheme.
	merchant, err := commitment.ParseAddress(req.Merchant)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amountMicro, err := link.ParseDisplayAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	salt, err := commitment.ParseSalt(req.Salt)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	derived, err := commitment.ComputeHash(merchant, amountMicro, salt)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	inv, err := s.engine.Settle(hash, derived)
	if err != nil {
		if errors.Is(err, invoice.ErrUnauthorizedSettle) {
			s.metrics.SettleFailures.Inc()
		}
		s.writeStateError(w, err)
		return
	}

	s.cacheWrite("update status", func(store *metastore.Store) error {
		return store.UpdateStatus(r.Context(), hash.String(), inv.Status.String())
	})

	s.log.Info().Str("hash", hash.String()).Msg("invoice settled")
	s.writeJSON(w, http.StatusOK, payResponse{Hash: hash.String(), Status: inv.Status.String()})
}

type verifyRequest struct {
	Link string `json:"link"`
}

type verifyResponse struct {
	Result string `json:"result"`
	Hash   string `json:"hash,omitempty"`
}

// handleVerify is the explorer-side fraud check: decode a shared link and
// report whether its parameters reproduce a known commitment.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	params, err := link.Parse(req.Link)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	hash, result, err := s.verifier.VerifyLink(r.Context(), params)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.metrics.VerifyResults.WithLabelValues(result.String()).Inc()
	resp := verifyResponse{Result: result.String()}
	if result != verify.ResultNotFound {
		resp.Hash = hash.String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// payParams assembles link params from a pay request.
func payParams(req payRequest) (link.Params, error) {
	merchant, err := commitment.ParseAddress(req.Merchant)
	if err != nil {
		return link.Params{}, err
	}
	amountMicro, err := link.ParseDisplayAmount(req.Amount)
	if err != nil {
		return link.Params{}, err
	}
	salt, err := commitment.ParseSalt(req.Salt)
	if err != nil {
		return link.Params{}, err
	}
	return link.Params{Merchant: merchant, AmountMicro: amountMicro, Salt: salt}, nil
}

// cacheWrite performs a best-effort metadata cache write.
func (s *Server) cacheWrite(op string, fn func(*metastore.Store) error) {
	if s.store == nil {
		return
	}
	if err := fn(s.store); err != nil {
		s.metrics.MetaCacheErrors.Inc()
		s.log.Warn().Err(err).Str("op", op).Msg("metadata cache write failed, continuing")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeStateError maps the engine error taxonomy onto HTTP codes, keeping
// "will never succeed" conditions distinguishable from transient ones.
func (s *Server) writeStateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, invoice.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, invoice.ErrDuplicateKey), errors.Is(err, invoice.ErrDuplicateReceipt),
		errors.Is(err, invoice.ErrAlreadySettled):
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, invoice.ErrExpired):
		s.writeError(w, http.StatusGone, err)
	case errors.Is(err, invoice.ErrUnauthorizedSettle):
		s.writeError(w, http.StatusForbidden, err)
	case errors.Is(err, commitment.ErrFormat):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}
