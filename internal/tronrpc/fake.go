package tronrpc

import (
	"context"
	"math/big"
	"sync"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/txbuilder"
)

// Fake is a deterministic, in-memory Client for tests (spec 9: "tests can
// substitute deterministic fakes" for TronRpc). It has no network
// dependency and every response is pre-programmed by the test.
type Fake struct {
	mu sync.Mutex

	NowBlock txbuilder.BlockRef
	Energy   int64

	// TokenBalances maps ownerHex -> TRC-20 balance.
	TokenBalances map[string]*big.Int
	// TrxBalances maps base58 address -> SUN balance. A missing entry
	// means the account does not exist.
	TrxBalances map[string]int64

	// Broadcasts records every BroadcastTransaction call's raw hex, keyed
	// by txID, so a test can assert what was submitted.
	Broadcasts map[string]string
	// BroadcastResults lets a test script a specific response per txID;
	// absent entries default to {Result: true}.
	BroadcastResults map[string]BroadcastResult
	// TxInfos lets a test script GetTransactionInfoByID responses.
	TxInfos map[string]TransactionInfo

	// FailNext, when set, is returned (and cleared) by the next call to
	// any method — used to simulate a single transient RPC failure.
	FailNext error

	// AutoConfirm, when true (the default), makes BroadcastTransaction
	// immediately record a SUCCESS receipt for the broadcast txID, since
	// most tests care about the orchestration logic around a send, not
	// about scripting block-inclusion timing. Set it to false to make
	// GetTransactionInfoByID report "not yet indexed" until a test calls
	// SetTxConfirmed/SetTxFailed itself.
	AutoConfirm bool
}

// NewFake returns a Fake with empty balance, broadcast, and receipt maps,
// a block reference at number 1, an energy estimate of 65000, and
// AutoConfirm enabled.
func NewFake() *Fake {
	return &Fake{
		NowBlock:         txbuilder.BlockRef{Number: 1, Hash: make([]byte, 32), Timestamp: 0},
		Energy:           65000,
		TokenBalances:    map[string]*big.Int{},
		TrxBalances:      map[string]int64{},
		Broadcasts:       map[string]string{},
		BroadcastResults: map[string]BroadcastResult{},
		TxInfos:          map[string]TransactionInfo{},
		AutoConfirm:      true,
	}
}

func (f *Fake) takeFailure() error {
	if f.FailNext == nil {
		return nil
	}
	err := f.FailNext
	f.FailNext = nil
	return err
}

func (f *Fake) GetNowBlock(ctx context.Context) (txbuilder.BlockRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return txbuilder.BlockRef{}, err
	}
	return f.NowBlock, nil
}

func (f *Fake) EstimateEnergy(ctx context.Context, ownerHex, contractHex string, calldata []byte) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return 0, err
	}
	return f.Energy, nil
}

func (f *Fake) BalanceOf(ctx context.Context, contractHex, ownerHex string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	if bal, ok := f.TokenBalances[ownerHex]; ok {
		return bal, nil
	}
	return big.NewInt(0), nil
}

func (f *Fake) BroadcastTransaction(ctx context.Context, rawHex string, txID string) (BroadcastResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return BroadcastResult{}, err
	}
	f.Broadcasts[txID] = rawHex
	if f.AutoConfirm {
		if _, ok := f.TxInfos[txID]; !ok {
			f.TxInfos[txID] = TransactionInfo{Indexed: true, BlockNumber: 1, Result: "SUCCESS"}
		}
	}
	if result, ok := f.BroadcastResults[txID]; ok {
		return result, nil
	}
	return BroadcastResult{Result: true, TxID: txID}, nil
}

func (f *Fake) GetTransactionInfoByID(ctx context.Context, txID string) (TransactionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return TransactionInfo{}, err
	}
	if info, ok := f.TxInfos[txID]; ok {
		return info, nil
	}
	return TransactionInfo{Indexed: false}, nil
}

func (f *Fake) GetAccount(ctx context.Context, base58Addr string) (AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return AccountInfo{}, err
	}
	bal, ok := f.TrxBalances[base58Addr]
	if !ok {
		return AccountInfo{Exists: false}, nil
	}
	return AccountInfo{Exists: true, BalanceSun: bal}, nil
}

// CreditTrx increments base58Addr's TRX balance, creating the account if it
// doesn't yet exist — used by tests to simulate a sponsor/activation landing.
func (f *Fake) CreditTrx(base58Addr string, amountSun int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TrxBalances[base58Addr] += amountSun
}

// SetTxConfirmed is a test convenience for scripting a successful receipt.
func (f *Fake) SetTxConfirmed(txID string, blockNumber int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TxInfos[txID] = TransactionInfo{Indexed: true, BlockNumber: blockNumber, Result: "SUCCESS"}
}

// SetTxFailed is a test convenience for scripting a reverted receipt.
func (f *Fake) SetTxFailed(txID string, blockNumber int64, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TxInfos[txID] = TransactionInfo{Indexed: true, BlockNumber: blockNumber, Result: reason}
}

var _ Client = (*Fake)(nil)
