package worker

import (
	"context"
	"time"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ActivatedWalletLister lists every wallet eligible for a cached-balance
// refresh.
type ActivatedWalletLister interface {
	ListActivated(ctx context.Context) ([]domain.Wallet, error)
}

// BalanceCacheUpdater persists a wallet's cached USDT balance.
type BalanceCacheUpdater interface {
	UpdateCachedBalance(ctx context.Context, id int64, balance decimal.Decimal, observedAt time.Time) error
}

// BalanceCache periodically refreshes domain.Wallet.CachedBalance for every
// activated wallet (spec 9's supplemented wallet-balance-cache feature,
// grounded on the teacher's CryptoWallet.Balance/LastBalanceUpdate). It is
// purely a read-path optimization: Orchestrator never consults it, always
// re-checking the live balance before moving funds.
type BalanceCache struct {
	wallets   ActivatedWalletLister
	updater   BalanceCacheUpdater
	balanceOf func(ctx context.Context, ownerHex string) (decimal.Decimal, error)
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
}

// NewBalanceCache builds a BalanceCache that sweeps every interval.
// balanceOf adapts a tronrpc.Client.BalanceOf call (already bound to the
// configured USDT contract and scaled to a decimal USDT amount) so this
// package stays free of a tronrpc import.
func NewBalanceCache(wallets ActivatedWalletLister, updater BalanceCacheUpdater, balanceOf func(ctx context.Context, ownerHex string) (decimal.Decimal, error), interval time.Duration, logger *zap.Logger) *BalanceCache {
	return &BalanceCache{
		wallets:   wallets,
		updater:   updater,
		balanceOf: balanceOf,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start runs the cache sweep on every tick until ctx is cancelled or Stop is
// called, matching the ticker/stopChan/ctx.Done() shape the teacher's
// SweepWorker uses.
func (b *BalanceCache) Start(ctx context.Context) {
	b.logger.Info("starting wallet balance cache", zap.Duration("interval", b.interval))

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.sweep(ctx)
		case <-b.stopChan:
			b.logger.Info("stopping wallet balance cache")
			return
		case <-ctx.Done():
			b.logger.Info("context cancelled, stopping wallet balance cache")
			return
		}
	}
}

// Stop signals Start's loop to return.
func (b *BalanceCache) Stop() {
	close(b.stopChan)
}

func (b *BalanceCache) sweep(ctx context.Context) {
	wallets, err := b.wallets.ListActivated(ctx)
	if err != nil {
		b.logger.Error("failed to list activated wallets", zap.Error(err))
		return
	}
	now := time.Now()

	// Wallets are refreshed concurrently, bounded, so one slow RPC call
	// doesn't serialize the whole sweep. Each goroutine handles its own
	// failure rather than returning it, so one wallet's RPC error never
	// cancels its siblings.
	var g errgroup.Group
	g.SetLimit(8)
	for _, w := range wallets {
		w := w
		g.Go(func() error {
			balance, err := b.balanceOf(ctx, w.HexAddress)
			if err != nil {
				b.logger.Warn("failed to refresh wallet balance", zap.Int64("wallet_id", w.ID), zap.Error(err))
				return nil
			}
			if err := b.updater.UpdateCachedBalance(ctx, w.ID, balance, now); err != nil {
				b.logger.Error("failed to persist cached balance", zap.Int64("wallet_id", w.ID), zap.Error(err))
			}
			return nil
		})
	}
	g.Wait()
}
