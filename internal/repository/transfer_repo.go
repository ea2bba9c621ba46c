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

// TransferRepository persists domain.OutgoingTransfer rows. It satisfies
// internal/orchestrator.TransferStore.
type TransferRepository struct {
	pool *pgxpool.Pool
}

// NewTransferRepository builds a TransferRepository backed by pool.
func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return &TransferRepository{pool: pool}
}

// Create inserts transfer and populates its ID and CreatedAt.
func (r *TransferRepository) Create(ctx context.Context, t *domain.OutgoingTransfer) error {
	query := `
		INSERT INTO outgoing_transfers (
			from_wallet_id, to_address, order_amount, fee_amount, amount,
			gas_cost_trx, gas_cost_usdt, status, reference_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		t.FromWalletID,
		t.ToAddress,
		t.OrderAmount.String(),
		t.FeeAmount.String(),
		t.Amount.String(),
		t.GasCostTrx.String(),
		t.GasCostUsdt.String(),
		string(t.Status),
		t.ReferenceID,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create outgoing transfer: %w", err)
	}
	return nil
}

// UpdateStatus moves transfer id to status, optionally recording its
// on-chain tx hash or a terminal error message. This is the orchestrator's
// only write path for OutgoingTransfer.Status (spec 4.9).
func (r *TransferRepository) UpdateStatus(ctx context.Context, id int64, status domain.TransferStatus, txHash, errMsg *string) error {
	query := `
		UPDATE outgoing_transfers
		SET status = $2, tx_hash = COALESCE($3, tx_hash), error_message = $4,
		    completed_at = CASE WHEN $2 IN ('CONFIRMED', 'FAILED') THEN now() ELSE completed_at END
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, string(status), txHash, errMsg)
	if err != nil {
		return fmt.Errorf("failed to update transfer status: %w", err)
	}
	return nil
}

// GetByReferenceID looks up a transfer by its idempotency key, ignoring any
// prior FAILED attempt under the same referenceId — a referenceId only
// ever identifies at most one non-FAILED transfer (spec 6, 4.9), so a
// FAILED row must not block a fresh retry from reaching Process. It
// returns (nil, nil) — not ErrNotFound — when no non-FAILED row matches,
// since that's the expected, common case for Orchestrator.Process's
// idempotency check, not a caller error.
func (r *TransferRepository) GetByReferenceID(ctx context.Context, referenceID string) (*domain.OutgoingTransfer, error) {
	t, err := r.scanOne(ctx, `
		SELECT id, from_wallet_id, to_address, order_amount, fee_amount, amount,
		       gas_cost_trx, gas_cost_usdt, status, tx_hash, reference_id,
		       error_message, created_at, completed_at
		FROM outgoing_transfers
		WHERE reference_id = $1 AND status != $2
	`, referenceID, string(domain.TransferFailed))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return t, err
}

// GetByID retrieves a transfer by its primary key.
func (r *TransferRepository) GetByID(ctx context.Context, id int64) (*domain.OutgoingTransfer, error) {
	return r.scanOne(ctx, `
		SELECT id, from_wallet_id, to_address, order_amount, fee_amount, amount,
		       gas_cost_trx, gas_cost_usdt, status, tx_hash, reference_id,
		       error_message, created_at, completed_at
		FROM outgoing_transfers
		WHERE id = $1
	`, id)
}

// ListInFlight returns every transfer left in SPONSORING or SENDING, used
// by internal/worker to resume interrupted transfers after a restart
// (spec 4.9, 9).
func (r *TransferRepository) ListInFlight(ctx context.Context) ([]domain.OutgoingTransfer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, from_wallet_id, to_address, order_amount, fee_amount, amount,
		       gas_cost_trx, gas_cost_usdt, status, tx_hash, reference_id,
		       error_message, created_at, completed_at
		FROM outgoing_transfers
		WHERE status IN ('SPONSORING', 'SENDING')
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list in-flight transfers: %w", err)
	}
	defer rows.Close()

	var out []domain.OutgoingTransfer
	for rows.Next() {
		t, err := scanTransferRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *TransferRepository) scanOne(ctx context.Context, query string, args ...interface{}) (*domain.OutgoingTransfer, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	t, err := scanTransferRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transfer: %w", ErrNotFound)
	}
	return t, err
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransferRow(row rowScanner) (*domain.OutgoingTransfer, error) {
	var t domain.OutgoingTransfer
	var orderAmount, feeAmount, amount, gasTrx, gasUsdt string
	var status string

	err := row.Scan(
		&t.ID,
		&t.FromWalletID,
		&t.ToAddress,
		&orderAmount,
		&feeAmount,
		&amount,
		&gasTrx,
		&gasUsdt,
		&status,
		&t.TxHash,
		&t.ReferenceID,
		&t.ErrorMessage,
		&t.CreatedAt,
		&t.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transfer row: %w", err)
	}

	t.Status = domain.TransferStatus(status)
	t.OrderAmount, _ = decimal.NewFromString(orderAmount)
	t.FeeAmount, _ = decimal.NewFromString(feeAmount)
	t.Amount, _ = decimal.NewFromString(amount)
	t.GasCostTrx, _ = decimal.NewFromString(gasTrx)
	t.GasCostUsdt, _ = decimal.NewFromString(gasUsdt)

	return &t, nil
}
