// Package domain holds the entities shared across the gateway's components.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a gateway-owned custodial TRON identity. Once persisted, only
// Activated, CachedBalance, and LastBalanceUpdate ever change.
type Wallet struct {
	ID         int64
	OwnerTag   string
	Address    string // Base58Check, 34 chars, leading 'T'
	HexAddress string // 42-char lowercase hex, leading "41"
	PrivateKey string // 64-char hex, leading zero bytes preserved
	Activated  bool
	CreatedAt  time.Time

	// CachedBalance and LastBalanceUpdate are a read-path optimization the
	// reconciliation worker opportunistically populates (spec 9's
	// supplemented wallet-balance-cache feature). They are never
	// authoritative: Orchestrator.Process always re-checks the live
	// TronRpc balance before moving funds.
	CachedBalance     *decimal.Decimal
	LastBalanceUpdate *time.Time
}

// MasterWallet is the singleton merchant-controlled wallet that funds
// sponsorship and activation and receives order proceeds. It is configured
// at process startup and is never persisted alongside user wallets.
type MasterWallet struct {
	Address    string
	HexAddress string
	PrivateKey string
}
