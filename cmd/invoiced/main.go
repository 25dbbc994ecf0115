// main.go - Invoice daemon entrypoint.
//
// Wires the commitment engine, receipt ledger, verification service, and
// metadata cache behind the HTTP API. The metadata cache is optional at
// runtime: if it cannot be opened the daemon starts without it and the
// on-chain flow is unaffected.

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"veilpay/internal/invoice"
	"veilpay/internal/metastore"
	"veilpay/internal/verify"
)

const version = "0.3.0"

func main() {
	app := &cli.App{
		Name:    "invoiced",
		Usage:   "privacy-preserving invoice commitment daemon",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to TOML config file",
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "listen address override",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if addr := c.String("listen"); addr != "" {
		cfg.ListenAddr = addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := newLogger(cfg.LogLevel)
	log.Info().Str("version", version).Msg("starting invoiced")

	// Refuse to start if the entropy source is unusable; salts must never
	// come from a weak generator.
	if _, err := rand.Read(make([]byte, 1)); err != nil {
		return fmt.Errorf("entropy source unavailable: %w", err)
	}

	state := invoice.NewMemState()
	engine := invoice.NewEngine(state)
	receipts := invoice.NewReceiptLedger(state)

	source := verify.EngineSource{Engine: engine}
	verifier := verify.NewService(source, log)
	lookup := verify.NewChainLookup(log, source)

	var store *metastore.Store
	if cfg.MetaEnabled {
		key, err := cfg.MetaKey()
		if err != nil {
			return err
		}
		if len(key) == 0 {
			key = make([]byte, 32)
			if _, err := rand.Read(key); err != nil {
				return fmt.Errorf("entropy source unavailable: %w", err)
			}
			log.Warn().Msg("meta_key_hex not set, using an ephemeral key; cached rows will not survive a restart")
		}
		store, err = metastore.Open(cfg.MetaDBPath, key, log)
		if err != nil {
			// Cache unavailability never blocks the on-chain flow.
			log.Warn().Err(err).Msg("metadata cache unavailable, continuing without it")
			store = nil
		}
	}

	health := NewHealthChecker(version)
	health.RegisterComponent("entropy", func() error {
		_, err := rand.Read(make([]byte, 1))
		return err
	})
	health.RegisterComponent("meta_cache", func() error {
		if cfg.MetaEnabled && store == nil {
			return errors.New("metadata cache offline")
		}
		return nil
	})

	metrics := NewMetrics()
	limiter := NewRateLimiter(cfg.RateLimitTokens, cfg.RateLimitRefill, time.Second)
	server := NewServer(cfg, log, engine, receipts, verifier, lookup, store, metrics, health, limiter)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

// newLogger builds the daemon logger: console output with the configured
// level.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}
