package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Mindburn-Labs/tearframe/pkg/config"
	"github.com/Mindburn-Labs/tearframe/pkg/floors"
	"github.com/Mindburn-Labs/tearframe/pkg/limiter"
	"github.com/Mindburn-Labs/tearframe/pkg/observability"
	"github.com/Mindburn-Labs/tearframe/pkg/store"
	"github.com/Mindburn-Labs/tearframe/pkg/store/ledger"
)

// receiptCacheSize bounds the receipt resolution cache.
const receiptCacheSize = 4096

// app is the wiring shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	floors  floors.Config
	ledger  *ledger.FileLedger
	obs     *observability.Provider
	limiter *limiter.Limiter
	closers []func() error
}

func openApp(ctx context.Context, stderr io.Writer) (*app, error) {
	cfg := config.Load()
	logger := cfg.Logger(stderr)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}

	fl, err := floors.Load(cfg.FloorsPath)
	if err != nil {
		return nil, err
	}
	a.floors = fl

	receipts, closeReceipts, err := store.OpenReceiptStore(ctx, cfg.ReceiptsDSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeReceipts)
	if _, inMemory := receipts.(*store.MemoryReceiptStore); !inMemory {
		cached, err := store.NewCachedReceiptStore(receipts, receiptCacheSize)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, func() error { cached.Close(); return nil })
		receipts = cached
	}

	a.ledger = ledger.NewFileLedger(cfg.LedgerPath,
		ledger.WithLogger(logger.With("component", "ledger")),
		ledger.WithReceiptStore(receipts),
	)

	obsCfg := observability.DefaultConfig()
	obsCfg.Environment = cfg.Environment
	if cfg.OTLPEndpoint != "" {
		obsCfg.Enabled = true
		obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	}
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.obs = obs

	opts := []limiter.Option{limiter.WithLogger(logger.With("component", "limiter"))}
	if cfg.BackpressureEnabled() {
		policy := limiter.Policy{RPM: cfg.BackpressureRPM, Burst: cfg.BackpressureBurst}
		var bp limiter.Store = limiter.NewInMemoryStore()
		if cfg.RedisAddr != "" {
			rs := limiter.DialRedisStore(cfg.RedisAddr, "", 0)
			if err := rs.Ping(ctx); err != nil {
				_ = rs.Close()
				a.close(ctx)
				return nil, fmt.Errorf("backpressure redis: %w", err)
			}
			a.closers = append(a.closers, rs.Close)
			bp = rs
		}
		opts = append(opts, limiter.WithBackpressure(bp, policy))
	}
	a.limiter = limiter.New(a.ledger, a.floors, opts...)

	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.obs != nil {
		if err := a.obs.Shutdown(ctx); err != nil {
			a.logger.WarnContext(ctx, "telemetry shutdown", "error", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.WarnContext(ctx, "close", "error", err)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isNotFound(err error) bool {
	return errors.Is(err, ledger.ErrNotFound)
}
