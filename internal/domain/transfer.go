package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferStatus is the state of an OutgoingTransfer. Transitions are
// monotonic: CONFIRMED and FAILED are terminal.
type TransferStatus string

const (
	TransferPending    TransferStatus = "PENDING"
	TransferSponsoring TransferStatus = "SPONSORING"
	TransferSending    TransferStatus = "SENDING"
	TransferConfirmed  TransferStatus = "CONFIRMED"
	TransferFailed     TransferStatus = "FAILED"
)

// OutgoingTransfer is a single outbound USDT order. PaymentOrchestrator is
// the sole writer of Status.
type OutgoingTransfer struct {
	ID            int64
	FromWalletID  int64
	ToAddress     string // defaults to the master wallet's address
	OrderAmount   decimal.Decimal
	FeeAmount     decimal.Decimal
	Amount        decimal.Decimal // OrderAmount + FeeAmount
	GasCostTrx    decimal.Decimal
	GasCostUsdt   decimal.Decimal
	Status        TransferStatus
	TxHash        *string
	ReferenceID   *string
	ErrorMessage  *string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// IncomingTransaction is a detected inbound deposit. Detection itself is an
// external concern (spec Non-goal); this type is the persisted record a
// scanner outside the core would write.
type IncomingTransaction struct {
	ID            int64
	WalletID      int64
	TxHash        string
	BlockNumber   int64
	FromAddress   string
	ToAddress     string
	Amount        decimal.Decimal
	Status        string // PENDING, CONFIRMED, FAILED
	DetectedAt    time.Time
	ConfirmedAt   *time.Time
}

// FeeQuote is the ephemeral breakdown FeeEngine produces. ValidUntil lets a
// caller know how long a preview quote may be treated as current without
// re-quoting (mirrors a withdrawal-quote TTL, not a new required field).
// QuoteID lets a caller log or reference a specific preview even though the
// quote itself is never persisted.
type FeeQuote struct {
	QuoteID      string
	OrderAmount  decimal.Decimal
	GasEnergy    int64
	GasCostTrx   decimal.Decimal
	GasCostUsdt  decimal.Decimal
	PlatformFee  decimal.Decimal
	TotalFee     decimal.Decimal
	TotalAmount  decimal.Decimal
	ValidUntil   time.Time
}
