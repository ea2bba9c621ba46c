package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// IncomingTransactionRepository persists domain.IncomingTransaction rows —
// deposits a scanner outside the core detects and records (spec 3, 9's
// detection-is-a-Non-goal note).
type IncomingTransactionRepository struct {
	pool *pgxpool.Pool
}

// NewIncomingTransactionRepository builds a repository backed by pool.
func NewIncomingTransactionRepository(pool *pgxpool.Pool) *IncomingTransactionRepository {
	return &IncomingTransactionRepository{pool: pool}
}

// Create inserts tx, relying on the unique constraint on tx_hash to reject
// a duplicate detection of the same on-chain event.
func (r *IncomingTransactionRepository) Create(ctx context.Context, tx *domain.IncomingTransaction) error {
	query := `
		INSERT INTO incoming_transactions (
			wallet_id, tx_hash, block_number, from_address, to_address, amount, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tx_hash) DO NOTHING
		RETURNING id, detected_at
	`
	err := r.pool.QueryRow(ctx, query,
		tx.WalletID,
		tx.TxHash,
		tx.BlockNumber,
		tx.FromAddress,
		tx.ToAddress,
		tx.Amount.String(),
		tx.Status,
	).Scan(&tx.ID, &tx.DetectedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// ON CONFLICT DO NOTHING suppressed the insert — another caller
		// already recorded this deposit.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create incoming transaction: %w", err)
	}
	return nil
}

// MarkConfirmed transitions tx_hash's row to CONFIRMED.
func (r *IncomingTransactionRepository) MarkConfirmed(ctx context.Context, txHash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE incoming_transactions SET status = 'CONFIRMED', confirmed_at = now() WHERE tx_hash = $1
	`, txHash)
	if err != nil {
		return fmt.Errorf("failed to mark incoming transaction confirmed: %w", err)
	}
	return nil
}

// ListByWallet returns every detected deposit for walletID, most recent
// first.
func (r *IncomingTransactionRepository) ListByWallet(ctx context.Context, walletID int64) ([]domain.IncomingTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, wallet_id, tx_hash, block_number, from_address, to_address, amount, status, detected_at, confirmed_at
		FROM incoming_transactions
		WHERE wallet_id = $1
		ORDER BY detected_at DESC
	`, walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incoming transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.IncomingTransaction
	for rows.Next() {
		var t domain.IncomingTransaction
		var amount string
		if err := rows.Scan(&t.ID, &t.WalletID, &t.TxHash, &t.BlockNumber, &t.FromAddress, &t.ToAddress, &amount, &t.Status, &t.DetectedAt, &t.ConfirmedAt); err != nil {
			return nil, fmt.Errorf("failed to scan incoming transaction row: %w", err)
		}
		t.Amount, _ = decimal.NewFromString(amount)
		out = append(out, t)
	}
	return out, rows.Err()
}
