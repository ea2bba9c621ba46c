package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/domain"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/fee"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/keygen"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/sponsor"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/tronrpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const usdtContractHex = "41a614f803b6fd780986a42c78ec9c7f77e6ded13c"

type memTransferStore struct {
	mu        sync.Mutex
	nextID    int64
	byID      map[int64]*domain.OutgoingTransfer
	byRefID   map[string]int64
}

func newMemTransferStore() *memTransferStore {
	return &memTransferStore{byID: map[int64]*domain.OutgoingTransfer{}, byRefID: map[string]int64{}}
}

func (m *memTransferStore) Create(ctx context.Context, t *domain.OutgoingTransfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	t.CreatedAt = time.Now()
	cp := *t
	m.byID[t.ID] = &cp
	if t.ReferenceID != nil {
		m.byRefID[*t.ReferenceID] = t.ID
	}
	return nil
}

func (m *memTransferStore) UpdateStatus(ctx context.Context, id int64, status domain.TransferStatus, txHash, errMsg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil
	}
	t.Status = status
	if txHash != nil {
		t.TxHash = txHash
	}
	t.ErrorMessage = errMsg
	return nil
}

// GetByReferenceID mirrors internal/repository.TransferRepository's
// FAILED-exclusion: a referenceId only ever identifies at most one
// non-FAILED transfer, so a prior FAILED attempt must not be returned
// here and must not block a fresh retry.
func (m *memTransferStore) GetByReferenceID(ctx context.Context, referenceID string) (*domain.OutgoingTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byRefID[referenceID]
	if !ok {
		return nil, nil
	}
	t := m.byID[id]
	if t.Status == domain.TransferFailed {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memTransferStore) ListInFlight(ctx context.Context) ([]domain.OutgoingTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OutgoingTransfer
	for _, t := range m.byID {
		if t.Status == domain.TransferSponsoring || t.Status == domain.TransferSending {
			out = append(out, *t)
		}
	}
	return out, nil
}

type memWalletStore struct {
	wallets map[int64]domain.Wallet
}

func (m *memWalletStore) GetByID(ctx context.Context, id int64) (*domain.Wallet, error) {
	w := m.wallets[id]
	return &w, nil
}

func testFeeConfig() fee.Config {
	return fee.Config{
		EnergyPriceSun: 420,
		TrxUsdtRate:    decimal.NewFromFloat(0.12),
		Percentage:     decimal.NewFromFloat(0.01),
		MinUsdt:        decimal.NewFromFloat(0.5),
		MaxUsdt:        decimal.NewFromFloat(50),
	}
}

func buildOrchestrator(t *testing.T, rpc *tronrpc.Fake) (*Orchestrator, domain.MasterWallet, domain.Wallet) {
	t.Helper()
	masterKp, _ := keygen.Generate()
	userKp, _ := keygen.Generate()

	master := domain.MasterWallet{Address: masterKp.Base58Address, HexAddress: masterKp.HexAddress, PrivateKey: masterKp.PrivateKeyHex}
	user := domain.Wallet{ID: 1, Address: userKp.Base58Address, HexAddress: userKp.HexAddress, PrivateKey: userKp.PrivateKeyHex, Activated: true}

	rpc.TrxBalances[master.Address] = 1_000_000_000 // 1000 TRX
	rpc.TokenBalances[user.HexAddress] = decimal.NewFromInt(1000).Shift(6).BigInt()

	sp := sponsor.New(rpc, master, sponsor.Config{AmountTrx: decimal.NewFromInt(15), VisibilityPollEvery: 5 * time.Millisecond, VisibilityTimeout: 200 * time.Millisecond})

	transfers := newMemTransferStore()
	wallets := &memWalletStore{wallets: map[int64]domain.Wallet{1: user}}

	cfg := Config{
		Fee:              testFeeConfig(),
		USDTContractHex:  usdtContractHex,
		ConfirmPollEvery: 5 * time.Millisecond,
		ConfirmTimeout:   200 * time.Millisecond,
	}

	o := New(rpc, sp, transfers, wallets, master, cfg, zap.NewNop())
	return o, master, user
}

func TestProcessSucceedsEndToEnd(t *testing.T) {
	rpc := tronrpc.NewFake()
	o, _, user := buildOrchestrator(t, rpc)

	// Let the sponsor's visibility poll and the send's confirmation poll
	// both observe success asynchronously.
	go func() {
		time.Sleep(10 * time.Millisecond)
		rpc.CreditTrx(user.Address, 15_000_000)
	}()

	req := Request{Wallet: user, OrderAmount: decimal.NewFromInt(100), ReferenceID: "ref-e2e-1"}

	result, err := o.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	deadline := time.Now().Add(1 * time.Second)
	for result.Status != domain.TransferConfirmed && result.Status != domain.TransferFailed && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if result.Status != domain.TransferConfirmed {
		t.Fatalf("expected CONFIRMED, got %s (err message: %v)", result.Status, result.ErrorMessage)
	}
}

func TestProcessRejectsInactiveWallet(t *testing.T) {
	rpc := tronrpc.NewFake()
	o, _, user := buildOrchestrator(t, rpc)
	user.Activated = false

	req := Request{Wallet: user, OrderAmount: decimal.NewFromInt(100), ReferenceID: "ref-inactive"}
	_, err := o.Process(context.Background(), req)
	if err == nil {
		t.Fatal("expected an inactive wallet error")
	}
}

func TestProcessIsIdempotentOnReferenceID(t *testing.T) {
	rpc := tronrpc.NewFake()
	o, _, user := buildOrchestrator(t, rpc)

	go func() {
		time.Sleep(10 * time.Millisecond)
		rpc.CreditTrx(user.Address, 15_000_000)
	}()

	req := Request{Wallet: user, OrderAmount: decimal.NewFromInt(50), ReferenceID: "ref-dup"}
	first, err := o.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}

	second, err := o.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the duplicate request to return the same transfer, got %d vs %d", second.ID, first.ID)
	}
}

func TestProcessAllowsRetryAfterFailedTransferUnderSameReferenceID(t *testing.T) {
	rpc := tronrpc.NewFake()
	o, _, user := buildOrchestrator(t, rpc)
	rpc.TokenBalances[user.HexAddress] = decimal.Zero.BigInt()

	req := Request{Wallet: user, OrderAmount: decimal.NewFromInt(100), ReferenceID: "ref-retry"}
	first, err := o.Process(context.Background(), req)
	if err == nil {
		t.Fatal("expected the first attempt to fail on insufficient balance")
	}
	if first.Status != domain.TransferFailed {
		t.Fatalf("expected FAILED status, got %s", first.Status)
	}

	// A fresh attempt with enough balance, under the same referenceId,
	// must not be short-circuited by the prior FAILED record (spec 6, 4.9:
	// a referenceId identifies at most one non-FAILED transfer).
	rpc.TokenBalances[user.HexAddress] = decimal.NewFromInt(1000).Shift(6).BigInt()
	go func() {
		time.Sleep(10 * time.Millisecond)
		rpc.CreditTrx(user.Address, 15_000_000)
	}()

	second, err := o.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected a new transfer record, got the same FAILED one back (id %d)", first.ID)
	}

	deadline := time.Now().Add(1 * time.Second)
	for second.Status != domain.TransferConfirmed && second.Status != domain.TransferFailed && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if second.Status != domain.TransferConfirmed {
		t.Fatalf("expected the retry to reach CONFIRMED, got %s (err message: %v)", second.Status, second.ErrorMessage)
	}
}

func TestProcessFailsOnInsufficientUserBalance(t *testing.T) {
	rpc := tronrpc.NewFake()
	o, _, user := buildOrchestrator(t, rpc)
	rpc.TokenBalances[user.HexAddress] = decimal.Zero.BigInt()

	req := Request{Wallet: user, OrderAmount: decimal.NewFromInt(100), ReferenceID: "ref-poor"}
	result, err := o.Process(context.Background(), req)
	if err == nil {
		t.Fatal("expected an insufficient balance error")
	}
	if result.Status != domain.TransferFailed {
		t.Fatalf("expected FAILED status, got %s", result.Status)
	}
}
