package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/domain"
	"go.uber.org/zap"
)

type fakeInFlightLister struct {
	transfers []domain.OutgoingTransfer
}

func (f *fakeInFlightLister) ListInFlight(ctx context.Context) ([]domain.OutgoingTransfer, error) {
	return f.transfers, nil
}

type fakeTransferResumer struct {
	fail    map[int64]bool
	resumed []int64
}

func (f *fakeTransferResumer) Resume(ctx context.Context, t domain.OutgoingTransfer) error {
	f.resumed = append(f.resumed, t.ID)
	if f.fail[t.ID] {
		return errors.New("resume failed")
	}
	return nil
}

func TestReconcilerSweepResumesEveryInFlightTransferDespitePartialFailure(t *testing.T) {
	lister := &fakeInFlightLister{transfers: []domain.OutgoingTransfer{
		{ID: 1, Status: domain.TransferSponsoring},
		{ID: 2, Status: domain.TransferSending},
		{ID: 3, Status: domain.TransferSending},
	}}
	resumer := &fakeTransferResumer{fail: map[int64]bool{2: true}}

	r := NewReconciler(lister, resumer, time.Hour, zap.NewNop())
	r.sweep(context.Background())

	if len(resumer.resumed) != 3 {
		t.Fatalf("expected all 3 transfers to be resumed despite transfer 2 failing, got %d", len(resumer.resumed))
	}
}

func TestReconcilerStartStopsOnStop(t *testing.T) {
	lister := &fakeInFlightLister{}
	resumer := &fakeTransferResumer{}
	r := NewReconciler(lister, resumer, time.Millisecond, zap.NewNop())

	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	r.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
