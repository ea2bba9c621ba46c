// Package repository persists the gateway's entities to PostgreSQL via
// pgx/v5. Grounded on the teacher's CryptoWalletRepository
// (internal/repository/wallet_repo.go): a pgxpool.Pool field, one exported
// type per aggregate, QueryRow+Scan for single rows, pgx.ErrNoRows mapped
// to a domain-meaningful error.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a lookup by primary key or unique column
// matches no row.
var ErrNotFound = errors.New("not found")

// WalletRepository persists domain.Wallet rows.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository builds a WalletRepository backed by pool.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

// Create inserts wallet and populates its ID and CreatedAt. wallet.PrivateKey
// must already be the ciphertext internal/security.Encryption.Encrypt
// produced — this repository never sees a plaintext key.
func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	query := `
		INSERT INTO wallets (owner_tag, address, hex_address, encrypted_private_key, activated)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		wallet.OwnerTag,
		wallet.Address,
		wallet.HexAddress,
		wallet.PrivateKey,
		wallet.Activated,
	).Scan(&wallet.ID, &wallet.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// GetByID retrieves a wallet by its primary key.
func (r *WalletRepository) GetByID(ctx context.Context, id int64) (*domain.Wallet, error) {
	query := `
		SELECT id, owner_tag, address, hex_address, encrypted_private_key, activated, created_at
		FROM wallets
		WHERE id = $1
	`
	wallet := &domain.Wallet{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&wallet.ID,
		&wallet.OwnerTag,
		&wallet.Address,
		&wallet.HexAddress,
		&wallet.PrivateKey,
		&wallet.Activated,
		&wallet.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("wallet %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

// GetByAddress retrieves a wallet by its Base58Check address.
func (r *WalletRepository) GetByAddress(ctx context.Context, address string) (*domain.Wallet, error) {
	query := `
		SELECT id, owner_tag, address, hex_address, encrypted_private_key, activated, created_at
		FROM wallets
		WHERE address = $1
	`
	wallet := &domain.Wallet{}
	err := r.pool.QueryRow(ctx, query, address).Scan(
		&wallet.ID,
		&wallet.OwnerTag,
		&wallet.Address,
		&wallet.HexAddress,
		&wallet.PrivateKey,
		&wallet.Activated,
		&wallet.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("wallet %s: %w", address, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

// MarkActivated flips a wallet's activated flag once Activator confirms the
// address exists on-chain. It is idempotent — calling it twice is harmless.
func (r *WalletRepository) MarkActivated(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE wallets SET activated = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark wallet activated: %w", err)
	}
	return nil
}

// ListUnactivated returns every wallet whose activated flag is still false,
// for each sweep of internal/worker's activation reconciler.
func (r *WalletRepository) ListUnactivated(ctx context.Context) ([]domain.Wallet, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_tag, address, hex_address, encrypted_private_key, activated, created_at
		FROM wallets
		WHERE activated = false
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unactivated wallets: %w", err)
	}
	defer rows.Close()

	var out []domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(&w.ID, &w.OwnerTag, &w.Address, &w.HexAddress, &w.PrivateKey, &w.Activated, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet row: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListActivated returns every activated wallet, the set the balance-cache
// sweep in internal/worker refreshes (spec 9's supplemented
// wallet-balance-cache feature).
func (r *WalletRepository) ListActivated(ctx context.Context) ([]domain.Wallet, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_tag, address, hex_address, encrypted_private_key, activated, created_at
		FROM wallets
		WHERE activated = true
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list activated wallets: %w", err)
	}
	defer rows.Close()

	var out []domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(&w.ID, &w.OwnerTag, &w.Address, &w.HexAddress, &w.PrivateKey, &w.Activated, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet row: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// walletDecryptor is the single method DecryptingWalletStore needs from
// internal/security.Encryption.
type walletDecryptor interface {
	Decrypt(ciphertext string) (string, error)
}

// DecryptingWalletStore wraps WalletRepository so every wallet it returns
// carries a plaintext PrivateKey, ready for internal/signer — mirroring the
// teacher's per-use decrypt-at-the-usecase-boundary pattern
// (transaction_usecase.go's "decrypt user wallet private key" step) rather
// than ever persisting or caching a decrypted key.
type DecryptingWalletStore struct {
	repo    *WalletRepository
	decrypt walletDecryptor
}

// NewDecryptingWalletStore builds a DecryptingWalletStore.
func NewDecryptingWalletStore(repo *WalletRepository, decrypt walletDecryptor) *DecryptingWalletStore {
	return &DecryptingWalletStore{repo: repo, decrypt: decrypt}
}

// GetByID satisfies internal/orchestrator.WalletStore.
func (d *DecryptingWalletStore) GetByID(ctx context.Context, id int64) (*domain.Wallet, error) {
	wallet, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	plaintext, err := d.decrypt.Decrypt(wallet.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt wallet %d private key: %w", id, err)
	}
	wallet.PrivateKey = plaintext
	return wallet, nil
}

// UpdateCachedBalance stores a snapshot of a wallet's on-chain USDT balance.
// It is never read back as authoritative input to a transfer decision — it
// only speeds up read paths like a balance-listing endpoint.
func (r *WalletRepository) UpdateCachedBalance(ctx context.Context, id int64, balance decimal.Decimal, observedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE wallets SET cached_balance = $1, last_balance_update = $2 WHERE id = $3`,
		balance.String(), observedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update cached balance: %w", err)
	}
	return nil
}
