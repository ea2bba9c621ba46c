// Package gatewayerr defines the gateway's sentinel error taxonomy. Callers
// use errors.Is against these values; the orchestrator wraps them with
// fmt.Errorf("...: %w", ...) for context the way the rest of the codebase
// wraps errors.
package gatewayerr

import "errors"

var (
	// ErrBadRequest covers malformed addresses, non-positive amounts, and
	// references to unknown wallets. Returned to the caller, nothing is
	// persisted.
	ErrBadRequest = errors.New("bad request")

	// ErrWalletInactive means the user wallet has not been activated yet.
	ErrWalletInactive = errors.New("wallet inactive")

	// ErrInsufficientUserBalance means the TRC-20 balanceOf read came back
	// below the quoted totalAmount. The transfer moves to FAILED before any
	// broadcast.
	ErrInsufficientUserBalance = errors.New("insufficient user balance")

	// ErrInsufficientMasterBalance means the master wallet's TRX balance
	// cannot cover a sponsor or activation payment.
	ErrInsufficientMasterBalance = errors.New("insufficient master balance")

	// ErrRpcUnavailable covers network errors, 5xx responses, and timeouts
	// talking to TronGrid. Retryable internally up to the configured bound.
	ErrRpcUnavailable = errors.New("tron rpc unavailable")

	// ErrBroadcastRejected means TronGrid rejected the signed transaction
	// before inclusion in a block.
	ErrBroadcastRejected = errors.New("broadcast rejected")

	// ErrReceiptFailure means the on-chain receipt was REVERT,
	// OUT_OF_ENERGY, or any other non-success result.
	ErrReceiptFailure = errors.New("receipt failure")

	// ErrKeyMismatch means the address re-derived from a wallet's private
	// key does not match the address stored for that wallet. The
	// orchestrator must abort without broadcasting.
	ErrKeyMismatch = errors.New("key mismatch")

	// ErrPollTimeout means a bounded confirmation poll exceeded its
	// deadline. Not terminal: the transfer stays in its current state and a
	// later poll or restart resumes it.
	ErrPollTimeout = errors.New("poll timeout")

	// ErrChecksumError means a Base58Check address failed checksum
	// verification. Surfaced to callers as ErrBadRequest.
	ErrChecksumError = errors.New("checksum error")

	// ErrIdempotentConflict means a referenceId already maps to a
	// non-FAILED transfer with a different set of request parameters.
	ErrIdempotentConflict = errors.New("reference id already in use")

	// ErrClientCancelled means the caller cancelled before the transfer
	// reached the broadcast step.
	ErrClientCancelled = errors.New("client cancelled")
)
