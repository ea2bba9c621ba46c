package tronrpc

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/gatewayerr"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/txbuilder"
)

// These constants match spec 7's policy for ErrRpcUnavailable: up to 3
// attempts, exponential backoff starting at 500ms and capped at 4s.
const (
	maxAttempts  = 3
	backoffBase  = 500 * time.Millisecond
	backoffCap   = 4 * time.Second
)

// retrying wraps a Client and retries any call that fails with
// gatewayerr.ErrRpcUnavailable. Every other error (bad request, broadcast
// rejection, key mismatch, ...) is returned immediately — retrying those
// would just repeat a deterministic failure.
type retrying struct {
	inner Client
}

// WithRetry decorates client with spec 7's RpcUnavailable retry policy.
func WithRetry(client Client) Client {
	return &retrying{inner: client}
}

func retry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !errors.Is(err, gatewayerr.ErrRpcUnavailable) {
			return zero, err
		}
		if attempt == maxAttempts-1 {
			break
		}
		delay := backoffBase << attempt
		if delay > backoffCap {
			delay = backoffCap
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}

func (r *retrying) GetNowBlock(ctx context.Context) (txbuilder.BlockRef, error) {
	return retry(ctx, func() (txbuilder.BlockRef, error) { return r.inner.GetNowBlock(ctx) })
}

func (r *retrying) EstimateEnergy(ctx context.Context, ownerHex, contractHex string, calldata []byte) (int64, error) {
	return retry(ctx, func() (int64, error) { return r.inner.EstimateEnergy(ctx, ownerHex, contractHex, calldata) })
}

func (r *retrying) BalanceOf(ctx context.Context, contractHex, ownerHex string) (*big.Int, error) {
	return retry(ctx, func() (*big.Int, error) { return r.inner.BalanceOf(ctx, contractHex, ownerHex) })
}

func (r *retrying) BroadcastTransaction(ctx context.Context, rawHex string, txID string) (BroadcastResult, error) {
	return retry(ctx, func() (BroadcastResult, error) { return r.inner.BroadcastTransaction(ctx, rawHex, txID) })
}

func (r *retrying) GetTransactionInfoByID(ctx context.Context, txID string) (TransactionInfo, error) {
	return retry(ctx, func() (TransactionInfo, error) { return r.inner.GetTransactionInfoByID(ctx, txID) })
}

func (r *retrying) GetAccount(ctx context.Context, base58Addr string) (AccountInfo, error) {
	return retry(ctx, func() (AccountInfo, error) { return r.inner.GetAccount(ctx, base58Addr) })
}

var _ Client = (*retrying)(nil)
