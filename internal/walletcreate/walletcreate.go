// Package walletcreate composes KeyGen and the optional Activator into
// spec 6's createWallet(ownerId?) -> Wallet external operation. Grounded
// on the teacher's WalletUsecase.CreateWallet
// (internal/usecase/wallet_usecase.go): generate a key pair, encrypt its
// private key, persist the wallet, then activate it.
package walletcreate

import (
	"context"
	"fmt"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/domain"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/keygen"
	"go.uber.org/zap"
)

// WalletStore is the subset of internal/repository.WalletRepository this
// package needs: persist a freshly generated wallet, and flip its
// activated flag once Activator confirms it exists on-chain.
type WalletStore interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	MarkActivated(ctx context.Context, id int64) error
}

// Encrypter is the subset of internal/security.Encryption this package
// needs: a wallet is never persisted with a plaintext private key.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Activator is the subset of internal/activator.Activator this package
// needs.
type Activator interface {
	Activate(ctx context.Context, wallet domain.Wallet) (txHash string, err error)
}

// Service implements spec 6's createWallet(ownerId?) -> Wallet.
type Service struct {
	store             WalletStore
	encryption        Encrypter
	activator         Activator
	activationEnabled bool
	logger            *zap.Logger
}

// New builds a Service. activationEnabled mirrors config.ActivationConfig.Enabled
// (spec 6's activation.enabled); when false, CreateWallet never invokes
// activator.
func New(store WalletStore, encryption Encrypter, act Activator, activationEnabled bool, logger *zap.Logger) *Service {
	return &Service{
		store:             store,
		encryption:        encryption,
		activator:         act,
		activationEnabled: activationEnabled,
		logger:            logger,
	}
}

// CreateWallet generates a fresh TRON key pair, persists it under ownerTag,
// and — when activation is enabled — fires the on-chain activation payment
// in the background. Spec 4.8: "activation is fire-and-forget for the API
// response", so CreateWallet returns the persisted (still unactivated)
// wallet immediately rather than waiting on activator.Activate to confirm.
func (s *Service) CreateWallet(ctx context.Context, ownerTag string) (*domain.Wallet, error) {
	kp, err := keygen.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate wallet key pair: %w", err)
	}

	encryptedKey, err := s.encryption.Encrypt(kp.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt wallet private key: %w", err)
	}

	wallet := &domain.Wallet{
		OwnerTag:   ownerTag,
		Address:    kp.Base58Address,
		HexAddress: kp.HexAddress,
		PrivateKey: encryptedKey,
		Activated:  false,
	}
	if err := s.store.Create(ctx, wallet); err != nil {
		return nil, fmt.Errorf("failed to persist wallet: %w", err)
	}

	s.logger.Info("wallet created",
		zap.Int64("wallet_id", wallet.ID),
		zap.String("address", wallet.Address),
		zap.String("owner_tag", ownerTag))

	if s.activationEnabled {
		toActivate := *wallet
		go func() {
			bg := context.Background()
			if _, err := s.activator.Activate(bg, toActivate); err != nil {
				s.logger.Error("failed to activate wallet",
					zap.Int64("wallet_id", toActivate.ID), zap.Error(err))
				return
			}
			if err := s.store.MarkActivated(bg, toActivate.ID); err != nil {
				s.logger.Error("failed to persist wallet activation",
					zap.Int64("wallet_id", toActivate.ID), zap.Error(err))
			}
		}()
	}

	return wallet, nil
}
