// Package activator sends the minimal TRX transfer that brings a freshly
// generated TRON address into existence on-chain, a prerequisite for that
// address to receive or send TRC-20 tokens (spec 4.8).
//
// Grounded on spec 4.8; shares its build-sign-broadcast shape with
// internal/sponsor, which is itself grounded on the teacher's
// sendTRX (internal/chains/tron/tron.go).
package activator

import (
	"context"
	"fmt"
	"time"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/domain"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/gatewayerr"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/signer"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/tronrpc"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/txbuilder"
	"github.com/shopspring/decimal"
)

// Config holds the values spec 6 exposes under activation.*.
type Config struct {
	Enabled   bool
	AmountTrx decimal.Decimal
}

// DefaultConfig matches spec 4.8's default: activation enabled, 1 TRX.
func DefaultConfig() Config {
	return Config{Enabled: true, AmountTrx: decimal.NewFromInt(1)}
}

// Activator funds new wallets with the minimum TRX needed for on-chain
// existence.
type Activator struct {
	rpc    tronrpc.Client
	master domain.MasterWallet
	cfg    Config
}

// New builds an Activator that signs activation transfers with master's key.
func New(rpc tronrpc.Client, master domain.MasterWallet, cfg Config) *Activator {
	return &Activator{rpc: rpc, master: master, cfg: cfg}
}

// Activate sends cfg.AmountTrx to wallet if it does not already exist
// on-chain. Callers are expected to check wallet.Activated first (spec
// 4.8's idempotency contract is keyed on that persisted flag, not on
// re-checking chain state here) — Activate itself is safe to call again
// on an already-activated wallet; it is simply a no-op network round trip.
func (a *Activator) Activate(ctx context.Context, wallet domain.Wallet) (txHash string, err error) {
	if !a.cfg.Enabled {
		return "", nil
	}

	account, err := a.rpc.GetAccount(ctx, wallet.Address)
	if err != nil {
		return "", fmt.Errorf("%w: checking wallet existence: %v", gatewayerr.ErrRpcUnavailable, err)
	}
	if account.Exists {
		return "", nil
	}

	masterAccount, err := a.rpc.GetAccount(ctx, a.master.Address)
	if err != nil {
		return "", fmt.Errorf("%w: checking master balance: %v", gatewayerr.ErrRpcUnavailable, err)
	}
	amountSun := a.cfg.AmountTrx.Mul(decimal.NewFromInt(1_000_000)).IntPart()
	if masterAccount.BalanceSun < amountSun {
		return "", fmt.Errorf("%w: master has %d sun, needs %d", gatewayerr.ErrInsufficientMasterBalance, masterAccount.BalanceSun, amountSun)
	}

	block, err := a.rpc.GetNowBlock(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", gatewayerr.ErrRpcUnavailable, err)
	}

	tx, err := txbuilder.TRXTransfer(a.master.HexAddress, wallet.HexAddress, amountSun, block)
	if err != nil {
		return "", fmt.Errorf("failed to build activation transfer: %w", err)
	}
	if err := signer.Sign(tx, a.master.PrivateKey, a.master.HexAddress); err != nil {
		return "", err
	}
	txID, err := signer.TxID(tx)
	if err != nil {
		return "", err
	}
	rawHex, err := txbuilder.EncodedHex(tx)
	if err != nil {
		return "", err
	}

	result, err := a.rpc.BroadcastTransaction(ctx, rawHex, txID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", gatewayerr.ErrRpcUnavailable, err)
	}
	if !result.Result {
		return "", fmt.Errorf("%w: %s %s", gatewayerr.ErrBroadcastRejected, result.Code, result.Message)
	}

	if err := a.awaitExistence(ctx, wallet.Address); err != nil {
		return txID, err
	}
	return txID, nil
}

func (a *Activator) awaitExistence(ctx context.Context, base58Addr string) error {
	deadline := time.Now().Add(30 * time.Second)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		account, err := a.rpc.GetAccount(ctx, base58Addr)
		if err == nil && account.Exists {
			return nil
		}
		if time.Now().After(deadline) {
			return gatewayerr.ErrPollTimeout
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", gatewayerr.ErrClientCancelled, ctx.Err())
		case <-ticker.C:
		}
	}
}
