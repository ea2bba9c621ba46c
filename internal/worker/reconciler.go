// Package worker runs background reconciliation over the gateway's
// outstanding state. Grounded on the teacher's SweepWorker
// (internal/worker/sweep_worker.go): a ticker-driven Start(ctx) loop, a
// stopChan closed by Stop, and ctx.Done() handled alongside both.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// TransferResumer resumes a single in-flight transfer from wherever it was
// interrupted. internal/orchestrator.Orchestrator satisfies this by
// re-entering sponsorAndSend-equivalent logic keyed off the persisted
// status and tx hash (spec 4.9's restart-resume rule).
type TransferResumer interface {
	Resume(ctx context.Context, t domain.OutgoingTransfer) error
}

// InFlightLister lists every transfer left in SPONSORING or SENDING, the
// set a restart must resume.
type InFlightLister interface {
	ListInFlight(ctx context.Context) ([]domain.OutgoingTransfer, error)
}

// Reconciler periodically resumes transfers a prior process restart left
// mid-flight (spec 4.9, 9 — supplementing the distilled spec, which
// specifies the resume *rule* but not a scheduler to run it).
type Reconciler struct {
	transfers InFlightLister
	resumer   TransferResumer
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
}

// NewReconciler builds a Reconciler that sweeps every interval.
func NewReconciler(transfers InFlightLister, resumer TransferResumer, interval time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		transfers: transfers,
		resumer:   resumer,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start runs once immediately — so a freshly restarted process resumes
// in-flight transfers without waiting a full interval — then on every
// tick thereafter, until ctx is cancelled or Stop is called.
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("starting transfer reconciler", zap.Duration("interval", r.interval))
	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep(ctx)
		case <-r.stopChan:
			r.logger.Info("stopping transfer reconciler")
			return
		case <-ctx.Done():
			r.logger.Info("context cancelled, stopping transfer reconciler")
			return
		}
	}
}

// Stop signals Start's loop to return.
func (r *Reconciler) Stop() {
	close(r.stopChan)
}

func (r *Reconciler) sweep(ctx context.Context) {
	inFlight, err := r.transfers.ListInFlight(ctx)
	if err != nil {
		r.logger.Error("failed to list in-flight transfers", zap.Error(err))
		return
	}
	if len(inFlight) == 0 {
		return
	}
	r.logger.Info("resuming in-flight transfers", zap.Int("count", len(inFlight)))
	var combined error
	for _, t := range inFlight {
		if err := r.resumer.Resume(ctx, t); err != nil {
			combined = multierr.Append(combined, fmt.Errorf("transfer %d (%s): %w", t.ID, t.Status, err))
		}
	}
	if combined != nil {
		r.logger.Error("failed to resume one or more in-flight transfers",
			zap.Int("failed", len(multierr.Errors(combined))),
			zap.Error(combined))
	}
}
