package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/domain"
	"go.uber.org/zap"
)

type fakeUnactivatedWalletStore struct {
	mu        sync.Mutex
	wallets   []domain.Wallet
	activated map[int64]bool
}

func newFakeUnactivatedWalletStore(wallets []domain.Wallet) *fakeUnactivatedWalletStore {
	return &fakeUnactivatedWalletStore{wallets: wallets, activated: map[int64]bool{}}
}

func (f *fakeUnactivatedWalletStore) ListUnactivated(ctx context.Context) ([]domain.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wallets, nil
}

func (f *fakeUnactivatedWalletStore) MarkActivated(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated[id] = true
	return nil
}

func (f *fakeUnactivatedWalletStore) isActivated(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activated[id]
}

type fakeWalletActivator struct {
	fail map[int64]bool
}

func (f *fakeWalletActivator) Activate(ctx context.Context, wallet domain.Wallet) (string, error) {
	if f.fail[wallet.ID] {
		return "", errors.New("rpc unavailable")
	}
	return "txhash", nil
}

func TestActivationReconcilerSweepMarksEverySuccessfullyActivatedWallet(t *testing.T) {
	store := newFakeUnactivatedWalletStore([]domain.Wallet{{ID: 1}, {ID: 2}})
	activate := &fakeWalletActivator{}

	r := NewActivationReconciler(store, activate, time.Hour, zap.NewNop())
	r.sweep(context.Background())

	if !store.isActivated(1) || !store.isActivated(2) {
		t.Fatal("expected both wallets to be marked activated")
	}
}

func TestActivationReconcilerSweepLeavesFailedWalletUnmarked(t *testing.T) {
	store := newFakeUnactivatedWalletStore([]domain.Wallet{{ID: 1}, {ID: 2}})
	activate := &fakeWalletActivator{fail: map[int64]bool{1: true}}

	r := NewActivationReconciler(store, activate, time.Hour, zap.NewNop())
	r.sweep(context.Background())

	if store.isActivated(1) {
		t.Fatal("wallet 1's Activate failed, it should not be marked activated")
	}
	if !store.isActivated(2) {
		t.Fatal("wallet 2 should have been marked activated")
	}
}

func TestActivationReconcilerStartStopsOnStop(t *testing.T) {
	store := newFakeUnactivatedWalletStore(nil)
	activate := &fakeWalletActivator{}
	r := NewActivationReconciler(store, activate, time.Millisecond, zap.NewNop())

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
