// Package sponsor funds a user wallet with enough TRX to cover the energy
// and bandwidth cost of the TRC-20 transfer it is about to make, and
// confirms the funds are visible on-chain before handing control back to
// the orchestrator.
//
// Grounded on spec 4.7; idiomatically modeled on the teacher's
// sendTRX/EstimateFee (internal/chains/tron/tron.go) for the build-sign-
// broadcast shape, generalized with the poll-for-visibility loop spec 4.7
// and 4.9 both require.
package sponsor

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

// Config holds the values spec 6 exposes under sponsor.*.
type Config struct {
	AmountTrx        decimal.Decimal
	VisibilityPollEvery time.Duration
	VisibilityTimeout   time.Duration
}

// DefaultConfig matches spec 4.7/6's defaults: 15 TRX, polled every 2s for
// up to 30s.
func DefaultConfig() Config {
	return Config{
		AmountTrx:           decimal.NewFromInt(15),
		VisibilityPollEvery: 2 * time.Second,
		VisibilityTimeout:   30 * time.Second,
	}
}

// Sponsor funds user wallets from the master wallet and waits for the
// transfer to become visible on-chain.
type Sponsor struct {
	rpc    tronrpc.Client
	master domain.MasterWallet
	cfg    Config
}

// New builds a Sponsor that signs sponsorship transfers with master's key.
func New(rpc tronrpc.Client, master domain.MasterWallet, cfg Config) *Sponsor {
	return &Sponsor{rpc: rpc, master: master, cfg: cfg}
}

// Fund sends cfg.AmountTrx from the master wallet to userHex and blocks
// until the user wallet's balance delta confirms the transfer landed, or
// cfg.VisibilityTimeout elapses. referenceID is used only for log
// correlation — on-chain idempotency for a sponsor transfer comes from the
// caller never invoking Fund twice for an already-sponsored transfer (spec
// 4.9 tracks that via OutgoingTransfer.status).
func (s *Sponsor) Fund(ctx context.Context, userBase58, userHex string, referenceID string) (txHash string, err error) {
	before, err := s.rpc.GetAccount(ctx, userBase58)
	if err != nil {
		return "", fmt.Errorf("%w: checking pre-sponsor balance: %v", gatewayerr.ErrRpcUnavailable, err)
	}

	masterAccount, err := s.rpc.GetAccount(ctx, s.master.Address)
	if err != nil {
		return "", fmt.Errorf("%w: checking master balance: %v", gatewayerr.ErrRpcUnavailable, err)
	}
	amountSun := s.cfg.AmountTrx.Mul(decimal.NewFromInt(1_000_000)).IntPart()
	if masterAccount.BalanceSun < amountSun {
		return "", fmt.Errorf("%w: master has %d sun, needs %d", gatewayerr.ErrInsufficientMasterBalance, masterAccount.BalanceSun, amountSun)
	}

	block, err := s.rpc.GetNowBlock(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", gatewayerr.ErrRpcUnavailable, err)
	}

	tx, err := txbuilder.TRXTransfer(s.master.HexAddress, userHex, amountSun, block)
	if err != nil {
		return "", fmt.Errorf("failed to build sponsor transfer: %w", err)
	}
	if err := signer.Sign(tx, s.master.PrivateKey, s.master.HexAddress); err != nil {
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

	result, err := s.rpc.BroadcastTransaction(ctx, rawHex, txID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", gatewayerr.ErrRpcUnavailable, err)
	}
	if !result.Result {
		return "", fmt.Errorf("%w: %s %s", gatewayerr.ErrBroadcastRejected, result.Code, result.Message)
	}

	if err := s.awaitVisibility(ctx, userBase58, before.BalanceSun, amountSun); err != nil {
		return txID, err
	}
	return txID, nil
}

// awaitVisibility polls userBase58's balance until it has grown by at least
// amountSun relative to before, or returns ErrPollTimeout.
func (s *Sponsor) awaitVisibility(ctx context.Context, userBase58 string, before, amountSun int64) error {
	deadline := time.Now().Add(s.cfg.VisibilityTimeout)
	ticker := time.NewTicker(s.cfg.VisibilityPollEvery)
	defer ticker.Stop()

	for {
		account, err := s.rpc.GetAccount(ctx, userBase58)
		if err == nil && account.BalanceSun >= before+amountSun {
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
