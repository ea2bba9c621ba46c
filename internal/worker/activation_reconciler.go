package worker

import (
	"context"
	"time"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/domain"
	"go.uber.org/zap"
)

// WalletActivator activates a single wallet and reports whether it now
// exists on-chain. internal/activator.Activator satisfies this.
type WalletActivator interface {
	Activate(ctx context.Context, wallet domain.Wallet) (txHash string, err error)
}

// UnactivatedWalletStore lists wallets still awaiting activation and
// records one once it completes.
type UnactivatedWalletStore interface {
	ListUnactivated(ctx context.Context) ([]domain.Wallet, error)
	MarkActivated(ctx context.Context, id int64) error
}

// ActivationReconciler periodically retries activation for wallets whose
// fire-and-forget activation (internal/walletcreate.Service.CreateWallet)
// never completed — the process crashed before the goroutine ran, or
// Activate returned a transient error. Grounded on Reconciler
// (internal/worker/reconciler.go)'s sweep shape.
type ActivationReconciler struct {
	wallets  UnactivatedWalletStore
	activate WalletActivator
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
}

// NewActivationReconciler builds an ActivationReconciler that sweeps every
// interval.
func NewActivationReconciler(wallets UnactivatedWalletStore, activate WalletActivator, interval time.Duration, logger *zap.Logger) *ActivationReconciler {
	return &ActivationReconciler{
		wallets:  wallets,
		activate: activate,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start runs once immediately, then on every tick thereafter, until ctx is
// cancelled or Stop is called.
func (r *ActivationReconciler) Start(ctx context.Context) {
	r.logger.Info("starting activation reconciler", zap.Duration("interval", r.interval))
	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep(ctx)
		case <-r.stopChan:
			r.logger.Info("stopping activation reconciler")
			return
		case <-ctx.Done():
			r.logger.Info("context cancelled, stopping activation reconciler")
			return
		}
	}
}

// Stop signals Start's loop to return.
func (r *ActivationReconciler) Stop() {
	close(r.stopChan)
}

func (r *ActivationReconciler) sweep(ctx context.Context) {
	pending, err := r.wallets.ListUnactivated(ctx)
	if err != nil {
		r.logger.Error("failed to list unactivated wallets", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}
	r.logger.Info("retrying wallet activation", zap.Int("count", len(pending)))
	for _, w := range pending {
		if _, err := r.activate.Activate(ctx, w); err != nil {
			r.logger.Error("failed to activate wallet",
				zap.Int64("wallet_id", w.ID), zap.Error(err))
			continue
		}
		if err := r.wallets.MarkActivated(ctx, w.ID); err != nil {
			r.logger.Error("failed to persist wallet activation",
				zap.Int64("wallet_id", w.ID), zap.Error(err))
		}
	}
}
