// Package orchestrator drives a single outbound USDT order through
// validate -> quote -> reserve -> balance check -> sponsor -> await
// visibility -> send -> confirm -> persist, the state machine spec 4.9
// describes. It owns the only mutable transitions of
// domain.OutgoingTransfer.Status.
//
// Grounded on spec 4.9 and 5; there is no single teacher analogue for the
// whole machine, but its pieces are: the per-resource mutex serialization
// pattern the teacher's worker package uses around concurrent chain
// access, and the build-sign-broadcast-poll shape shared with
// internal/sponsor. Activation itself is owned by internal/walletcreate
// and internal/worker's activation reconciler, not by Orchestrator: spec
// 4.9 only requires Orchestrator to refuse a send from an unactivated
// wallet, never to activate one.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/addresscodec"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/domain"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/fee"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/gatewayerr"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/signer"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/sponsor"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/tronrpc"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/txbuilder"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const usdtDecimals = 6

// TransferStore persists OutgoingTransfer state. The orchestrator is the
// only writer of Status; everything else only reads.
type TransferStore interface {
	Create(ctx context.Context, t *domain.OutgoingTransfer) error
	UpdateStatus(ctx context.Context, id int64, status domain.TransferStatus, txHash, errMsg *string) error
	GetByReferenceID(ctx context.Context, referenceID string) (*domain.OutgoingTransfer, error)
	// ListInFlight returns every transfer left in SPONSORING or SENDING,
	// for the restart-resume worker (spec 4.9, 9).
	ListInFlight(ctx context.Context) ([]domain.OutgoingTransfer, error)
}

// WalletStore is the read-only wallet lookup Orchestrator needs to resume
// an in-flight transfer after a restart, when only the transfer's
// FromWalletID survives in memory.
type WalletStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Wallet, error)
}

// toHexAddress converts a Base58Check address to its hex form. It is used
// whenever a caller-supplied destination address needs to feed into
// txbuilder, which always works in hex.
func toHexAddress(base58Addr string) (string, error) {
	raw, err := addresscodec.FromBase58(base58Addr)
	if err != nil {
		return "", fmt.Errorf("%w: invalid destination address: %v", gatewayerr.ErrBadRequest, err)
	}
	return addresscodec.ToHex(raw)
}

// Request is a single withdrawal request (spec 6's POST /transfers body).
type Request struct {
	Wallet      domain.Wallet // PrivateKey must already be decrypted
	OrderAmount decimal.Decimal
	ToAddress   string // defaults to the master wallet's address when empty
	ReferenceID string
}

// Config bundles the tunables Orchestrator needs from internal/config.
type Config struct {
	Fee                fee.Config
	USDTContractHex    string
	USDTContractBase58 string
	ConfirmPollEvery   time.Duration
	ConfirmTimeout     time.Duration
}

// DefaultConfig matches spec 4.9/6's confirmation polling defaults: every
// 3s, up to 5 minutes.
func DefaultConfig() Config {
	return Config{
		ConfirmPollEvery: 3 * time.Second,
		ConfirmTimeout:   5 * time.Minute,
	}
}

// Orchestrator drives the withdrawal state machine.
type Orchestrator struct {
	rpc       tronrpc.Client
	sponsor   *sponsor.Sponsor
	transfers TransferStore
	wallets   WalletStore
	master    domain.MasterWallet
	cfg       Config
	logger    *zap.Logger

	walletLocksMu sync.Mutex
	walletLocks   map[int64]*sync.Mutex
	masterLock    sync.Mutex
}

// New builds an Orchestrator.
func New(rpc tronrpc.Client, sp *sponsor.Sponsor, transfers TransferStore, wallets WalletStore, master domain.MasterWallet, cfg Config, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		rpc:         rpc,
		sponsor:     sp,
		transfers:   transfers,
		wallets:     wallets,
		master:      master,
		cfg:         cfg,
		logger:      logger,
		walletLocks: make(map[int64]*sync.Mutex),
	}
}

// Resume re-enters the state machine for a transfer a prior process
// restart left in SPONSORING or SENDING (spec 4.9's restart-resume rule).
// It satisfies internal/worker.TransferResumer.
func (o *Orchestrator) Resume(ctx context.Context, t domain.OutgoingTransfer) error {
	wallet, err := o.wallets.GetByID(ctx, t.FromWalletID)
	if err != nil {
		return fmt.Errorf("failed to load wallet for resume: %w", err)
	}

	toHex := o.master.HexAddress
	if t.ToAddress != o.master.Address {
		toHex, err = toHexAddress(t.ToAddress)
		if err != nil {
			return err
		}
	}

	lock := o.lockFor(wallet.ID)
	lock.Lock()
	defer lock.Unlock()

	transfer := t

	// A transfer already past sponsorship only needs its receipt polled
	// again — re-running sponsorAndSend would sponsor and broadcast a
	// second time (spec 4.9's resume rule resumes from where it stopped,
	// it does not replay completed steps).
	if transfer.Status == domain.TransferSending && transfer.TxHash != nil {
		if err := o.awaitConfirmation(ctx, &transfer, *transfer.TxHash); err != nil {
			_, failErr := o.fail(ctx, &transfer, err)
			return failErr
		}
		return nil
	}

	totalUnits := unitsFor(t.Amount)
	if err := o.sponsorAndSend(ctx, &transfer, *wallet, toHex, totalUnits); err != nil {
		_, failErr := o.fail(ctx, &transfer, err)
		return failErr
	}
	return nil
}

func (o *Orchestrator) lockFor(walletID int64) *sync.Mutex {
	o.walletLocksMu.Lock()
	defer o.walletLocksMu.Unlock()
	m, ok := o.walletLocks[walletID]
	if !ok {
		m = &sync.Mutex{}
		o.walletLocks[walletID] = m
	}
	return m
}

// quoteValidity is how long a previewed FeeQuote may be treated as current
// without re-quoting (mirrors the teacher's transaction_usecase quote TTL).
const quoteValidity = 5 * time.Minute

// Quote prices req without persisting or moving any funds (spec 6's
// POST /quotes). It estimates energy against req.Wallet as the sender, so
// the quote reflects the actual call the eventual send will make.
func (o *Orchestrator) Quote(ctx context.Context, req Request) (domain.FeeQuote, error) {
	if req.OrderAmount.IsNegative() || req.OrderAmount.IsZero() {
		return domain.FeeQuote{}, fmt.Errorf("%w: order amount must be positive", gatewayerr.ErrBadRequest)
	}

	toHex := o.master.HexAddress
	if req.ToAddress != "" {
		var err error
		toHex, err = toHexAddress(req.ToAddress)
		if err != nil {
			return domain.FeeQuote{}, err
		}
	}
	calldata, err := txbuilder.EncodeTransferCalldata(toHex, unitsFor(req.OrderAmount))
	if err != nil {
		return domain.FeeQuote{}, fmt.Errorf("%w: %v", gatewayerr.ErrBadRequest, err)
	}

	energy, err := o.rpc.EstimateEnergy(ctx, req.Wallet.HexAddress, o.cfg.USDTContractHex, calldata)
	if err != nil {
		return domain.FeeQuote{}, fmt.Errorf("%w: %v", gatewayerr.ErrRpcUnavailable, err)
	}

	q, err := fee.Compute(req.OrderAmount, energy, o.cfg.Fee)
	if err != nil {
		return domain.FeeQuote{}, err
	}

	return domain.FeeQuote{
		QuoteID:     uuid.New().String(),
		OrderAmount: q.OrderAmount,
		GasEnergy:   q.GasEnergy,
		GasCostTrx:  q.GasCostTrx,
		GasCostUsdt: q.GasCostUsdt,
		PlatformFee: q.PlatformFee,
		TotalFee:    q.TotalFee,
		TotalAmount: q.TotalAmount,
		ValidUntil:  time.Now().Add(quoteValidity),
	}, nil
}

// unitsFor converts a USDT decimal amount to the token's 6-decimal integer
// unit (spec 6 glossary).
func unitsFor(amount decimal.Decimal) *big.Int {
	scaled := amount.Shift(usdtDecimals).Truncate(0)
	return scaled.BigInt()
}

// Process validates, quotes, reserves, and balance-checks req, then returns
// the persisted OutgoingTransfer as soon as it reaches SPONSORING (or FAILED,
// if the balance check fails); sponsoring, sending, and confirming continue
// in a background goroutine that updates the same record. referenceID
// is the idempotency key (spec 4.9, 6): a repeated call with the same
// ReferenceID returns the existing record instead of re-sending funds. A
// referenceId only ever identifies at most one non-FAILED transfer, so a
// prior FAILED attempt under the same referenceId does not short-circuit
// Process — GetByReferenceID already excludes FAILED rows, letting this
// call through to a fresh attempt.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*domain.OutgoingTransfer, error) {
	if existing, err := o.transfers.GetByReferenceID(ctx, req.ReferenceID); err == nil && existing != nil {
		return existing, nil
	}

	if !req.Wallet.Activated {
		return nil, gatewayerr.ErrWalletInactive
	}

	lock := o.lockFor(req.Wallet.ID)
	lock.Lock()
	unlocked := false
	defer func() {
		if !unlocked {
			lock.Unlock()
		}
	}()

	toAddress := o.master.Address
	toHex := o.master.HexAddress
	if req.ToAddress != "" {
		toAddress = req.ToAddress
		var err error
		toHex, err = toHexAddress(req.ToAddress)
		if err != nil {
			return nil, err
		}
	}

	quote, err := o.Quote(ctx, req)
	if err != nil {
		return nil, err
	}

	transfer := &domain.OutgoingTransfer{
		FromWalletID: req.Wallet.ID,
		ToAddress:    toAddress,
		OrderAmount:  req.OrderAmount,
		FeeAmount:    quote.TotalFee,
		Amount:       quote.TotalAmount,
		GasCostTrx:   quote.GasCostTrx,
		GasCostUsdt:  quote.GasCostUsdt,
		Status:       domain.TransferPending,
		ReferenceID:  &req.ReferenceID,
		CreatedAt:    time.Now(),
	}
	if err := o.transfers.Create(ctx, transfer); err != nil {
		return nil, fmt.Errorf("failed to persist transfer: %w", err)
	}

	totalUnits := unitsFor(quote.TotalAmount)
	balance, err := o.rpc.BalanceOf(ctx, o.cfg.USDTContractHex, req.Wallet.HexAddress)
	if err != nil {
		return o.fail(ctx, transfer, fmt.Errorf("%w: %v", gatewayerr.ErrRpcUnavailable, err))
	}
	if balance.Cmp(totalUnits) < 0 {
		return o.fail(ctx, transfer, gatewayerr.ErrInsufficientUserBalance)
	}

	if err := o.setStatus(ctx, transfer, domain.TransferSponsoring, nil, nil); err != nil {
		return nil, err
	}

	// Sponsoring, sending, and confirming run in the background (spec 9's
	// async-dispatch design): the synchronous call path returns as soon as
	// the transfer is reserved and past its balance check, the same shape
	// as the teacher's InitiateDeposit.
	unlocked = true
	go func() {
		defer lock.Unlock()
		bg := context.Background()
		if err := o.sponsorAndSend(bg, transfer, req.Wallet, toHex, totalUnits); err != nil {
			o.fail(bg, transfer, err)
		}
	}()

	return transfer, nil
}

// sponsorAndSend performs the master-serialized sponsor step, then builds,
// signs, and broadcasts the TRC-20 transfer, then polls for its receipt.
func (o *Orchestrator) sponsorAndSend(ctx context.Context, transfer *domain.OutgoingTransfer, wallet domain.Wallet, toHex string, amountUnits *big.Int) error {
	o.masterLock.Lock()
	_, err := o.sponsor.Fund(ctx, wallet.Address, wallet.HexAddress, *transfer.ReferenceID)
	o.masterLock.Unlock()
	if err != nil {
		return err
	}

	if err := o.setStatus(ctx, transfer, domain.TransferSending, nil, nil); err != nil {
		return err
	}

	block, err := o.rpc.GetNowBlock(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", gatewayerr.ErrRpcUnavailable, err)
	}
	calldata, err := txbuilder.EncodeTransferCalldata(toHex, amountUnits)
	if err != nil {
		return fmt.Errorf("%w: %v", gatewayerr.ErrBadRequest, err)
	}
	energy, err := o.rpc.EstimateEnergy(ctx, wallet.HexAddress, o.cfg.USDTContractHex, calldata)
	if err != nil {
		return fmt.Errorf("%w: %v", gatewayerr.ErrRpcUnavailable, err)
	}

	tx, err := txbuilder.TRC20Transfer(wallet.HexAddress, o.cfg.USDTContractHex, toHex, amountUnits, energy, o.cfg.Fee.EnergyPriceSun, block)
	if err != nil {
		return fmt.Errorf("failed to build transfer: %w", err)
	}
	if err := signer.Sign(tx, wallet.PrivateKey, wallet.HexAddress); err != nil {
		return err
	}
	txID, err := signer.TxID(tx)
	if err != nil {
		return err
	}
	rawHex, err := txbuilder.EncodedHex(tx)
	if err != nil {
		return err
	}

	result, err := o.rpc.BroadcastTransaction(ctx, rawHex, txID)
	if err != nil {
		return fmt.Errorf("%w: %v", gatewayerr.ErrRpcUnavailable, err)
	}
	// A duplicate-transaction broadcast code is treated as success (spec
	// 7): the transaction is already in flight from a prior attempt.
	if !result.Result && result.Code != "DUP_TRANSACTION_ERROR" {
		return fmt.Errorf("%w: %s %s", gatewayerr.ErrBroadcastRejected, result.Code, result.Message)
	}

	txHash := txID
	if err := o.transfers.UpdateStatus(ctx, transfer.ID, domain.TransferSending, &txHash, nil); err != nil {
		return fmt.Errorf("failed to persist tx hash: %w", err)
	}
	transfer.TxHash = &txHash

	return o.awaitConfirmation(ctx, transfer, txID)
}

// awaitConfirmation polls getTransactionInfoById until the receipt is
// indexed, or ConfirmTimeout elapses or ctx is cancelled; both of the latter
// return ErrPollTimeout, since the transaction is already broadcast.
// Energy-variance on the actual
// receipt is never reconciled against the quoted fee (spec 9): the quote
// is a best-effort estimate, not a guarantee.
func (o *Orchestrator) awaitConfirmation(ctx context.Context, transfer *domain.OutgoingTransfer, txID string) error {
	deadline := time.Now().Add(o.cfg.ConfirmTimeout)
	ticker := time.NewTicker(o.cfg.ConfirmPollEvery)
	defer ticker.Stop()

	for {
		info, err := o.rpc.GetTransactionInfoByID(ctx, txID)
		if err == nil && info.Indexed {
			if info.Result == "SUCCESS" {
				now := time.Now()
				transfer.Status = domain.TransferConfirmed
				transfer.CompletedAt = &now
				return o.transfers.UpdateStatus(ctx, transfer.ID, domain.TransferConfirmed, &txID, nil)
			}
			return fmt.Errorf("%w: %s", gatewayerr.ErrReceiptFailure, info.Result)
		}
		if time.Now().After(deadline) {
			return gatewayerr.ErrPollTimeout
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", gatewayerr.ErrPollTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) setStatus(ctx context.Context, transfer *domain.OutgoingTransfer, status domain.TransferStatus, txHash, errMsg *string) error {
	transfer.Status = status
	if err := o.transfers.UpdateStatus(ctx, transfer.ID, status, txHash, errMsg); err != nil {
		return fmt.Errorf("failed to persist status %s: %w", status, err)
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, transfer *domain.OutgoingTransfer, cause error) (*domain.OutgoingTransfer, error) {
	// A confirmation poll that times out after broadcast is not terminal:
	// the transfer stays in SENDING for a later poll or restart to resume.
	if errors.Is(cause, gatewayerr.ErrPollTimeout) && transfer.TxHash != nil {
		o.logger.Warn("confirmation poll timed out, transfer left in SENDING", zap.Int64("transfer_id", transfer.ID))
		return transfer, cause
	}
	msg := cause.Error()
	transfer.Status = domain.TransferFailed
	transfer.ErrorMessage = &msg
	if err := o.transfers.UpdateStatus(ctx, transfer.ID, domain.TransferFailed, transfer.TxHash, &msg); err != nil {
		o.logger.Error("failed to persist failure status", zap.Error(err), zap.Int64("transfer_id", transfer.ID))
	}
	if errors.Is(cause, gatewayerr.ErrRpcUnavailable) {
		o.logger.Warn("transfer failed on rpc unavailability", zap.Int64("transfer_id", transfer.ID), zap.Error(cause))
	}
	return transfer, cause
}
