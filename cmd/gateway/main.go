// cmd/gateway/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/activator"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/addresscodec"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/config"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/domain"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/fee"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/gatewayerr"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/keygen"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/orchestrator"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/repository"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/security"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/sponsor"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/tronrpc"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/walletcreate"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// createWalletOwner, when set, makes this invocation a one-shot
// bootstrap: create a single wallet for the given owner tag and exit,
// instead of starting the long-running gateway. Wraps spec 6's
// createWallet(ownerId?) -> Wallet for operators provisioning a wallet
// out-of-band of the (out-of-scope) external HTTP layer.
var createWalletOwner = flag.String("create-wallet", "", "create a wallet for the given owner tag and exit")

func main() {
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("starting tron-usdt-gateway")

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	dbPool, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	encryption, err := security.NewEncryption(cfg.Security.MasterKey)
	if err != nil {
		logger.Fatal("failed to initialize encryption", zap.Error(err))
	}
	if err := verifyEncryptionRoundTrip(encryption); err != nil {
		logger.Fatal("encryption self-check failed", zap.Error(err))
	}

	master, err := loadMasterWallet(cfg.Master.Address, cfg.Master.PrivateKey)
	if err != nil {
		logger.Fatal("master wallet configuration is invalid", zap.Error(err))
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RPC.RPS), cfg.RPC.Burst)
	rpcTimeout := time.Duration(cfg.RPC.TimeoutSec) * time.Second
	httpClient := tronrpc.NewHTTPClient(cfg.Tron.BaseURL, cfg.Tron.APIKey, rpcTimeout, limiter, logger)
	rpc := tronrpc.WithRetry(httpClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	account, err := rpc.GetAccount(ctx, master.Address)
	if err != nil {
		logger.Fatal("failed to verify master wallet on startup", zap.Error(err))
	}
	if !account.Exists {
		logger.Fatal("master wallet has no on-chain account yet", zap.String("address", master.Address))
	}
	logger.Info("master wallet verified",
		zap.String("address", master.Address),
		zap.Float64("trx_balance", float64(account.BalanceSun)/1_000_000))

	// incoming_transactions persists deposits detected by an external
	// scanner (spec.md treats inbound detection as external); this gateway
	// owns the table via internal/repository.IncomingTransactionRepository
	// but has no scanner of its own to wire it to here.
	walletRepo := repository.NewWalletRepository(dbPool)
	walletStore := repository.NewDecryptingWalletStore(walletRepo, encryption)
	transferRepo := repository.NewTransferRepository(dbPool)

	sp := sponsor.New(rpc, master, sponsor.Config{
		AmountTrx:           cfg.Sponsor.AmountTrx,
		VisibilityPollEvery: 2 * time.Second,
		VisibilityTimeout:   time.Duration(cfg.Poll.VisibilitySec) * time.Second,
	})
	act := activator.New(rpc, master, activator.Config{
		Enabled:   cfg.Activation.Enabled,
		AmountTrx: cfg.Activation.AmountTrx,
	})

	usdtContractHex, err := hexFromBase58OrHex(cfg.Tron.USDTContractAddr)
	if err != nil {
		logger.Fatal("invalid USDT contract address", zap.Error(err))
	}

	orchCfg := orchestrator.Config{
		Fee: fee.Config{
			EnergyPriceSun: cfg.Fee.EnergyPriceSun,
			TrxUsdtRate:    cfg.Fee.TrxUsdtRate,
			Percentage:     cfg.Fee.Percentage,
			MinUsdt:        cfg.Fee.MinUsdt,
			MaxUsdt:        cfg.Fee.MaxUsdt,
		},
		USDTContractHex:    usdtContractHex,
		USDTContractBase58: cfg.Tron.USDTContractAddr,
		ConfirmPollEvery:   3 * time.Second,
		ConfirmTimeout:     time.Duration(cfg.Poll.ConfirmSec) * time.Second,
	}
	orch := orchestrator.New(rpc, sp, transferRepo, walletStore, master, orchCfg, logger)

	// walletCreator composes KeyGen, WalletRepository, and the optional
	// Activator into spec 6's createWallet(ownerId?) -> Wallet operation.
	// The external HTTP layer (out of scope here) would call it per
	// request; -create-wallet below calls it directly for operator
	// bootstrap.
	walletCreator := walletcreate.New(walletRepo, encryption, act, cfg.Activation.Enabled, logger)
	if *createWalletOwner != "" {
		wallet, err := walletCreator.CreateWallet(ctx, *createWalletOwner)
		if err != nil {
			logger.Fatal("failed to create wallet", zap.Error(err))
		}
		logger.Info("wallet created",
			zap.Int64("wallet_id", wallet.ID),
			zap.String("address", wallet.Address),
			zap.String("owner_tag", *createWalletOwner))
		return
	}

	reconciler := worker.NewReconciler(transferRepo, orch,
		time.Duration(cfg.Worker.ReconcileIntervalSec)*time.Second, logger)
	go reconciler.Start(ctx)

	var activationReconciler *worker.ActivationReconciler
	if cfg.Activation.Enabled {
		activationReconciler = worker.NewActivationReconciler(walletRepo, act,
			time.Duration(cfg.Worker.ReconcileIntervalSec)*time.Second, logger)
		go activationReconciler.Start(ctx)
	}

	balanceOf := func(ctx context.Context, ownerHex string) (decimal.Decimal, error) {
		units, err := rpc.BalanceOf(ctx, usdtContractHex, ownerHex)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromBigInt(units, 0).Shift(-6), nil
	}
	balanceCache := worker.NewBalanceCache(walletRepo, walletRepo, balanceOf,
		time.Duration(cfg.Worker.BalanceCacheIntervalSec)*time.Second, logger)
	go balanceCache.Start(ctx)

	logger.Info("tron-usdt-gateway started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully...")
	reconciler.Stop()
	balanceCache.Stop()
	if activationReconciler != nil {
		activationReconciler.Stop()
	}
	cancel()

	logger.Info("tron-usdt-gateway stopped")
}

// initDatabase opens the Postgres connection pool. Unlike the hardcoded
// fallback credentials the teacher's initDatabase used, every credential
// here must come from the environment — config.Load already refuses to
// start without them.
func initDatabase(dbCfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbCfg.Host, dbCfg.Port, dbCfg.User, dbCfg.Password, dbCfg.Name, dbCfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = int32(dbCfg.MaxConns)
	poolConfig.MinConns = int32(dbCfg.MinConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// loadMasterWallet re-derives the master wallet's address from its
// configured private key before serving any request (spec 9's
// supplemented startup-verification feature) — a misconfigured
// MASTER_PRIVATE_KEY must never silently sign from the wrong identity.
func loadMasterWallet(configuredAddress, privateKeyHex string) (domain.MasterWallet, error) {
	kp, err := keygen.FromPrivateKeyHex(privateKeyHex)
	if err != nil {
		return domain.MasterWallet{}, fmt.Errorf("failed to derive master wallet: %w", err)
	}
	if kp.Base58Address != configuredAddress {
		return domain.MasterWallet{}, fmt.Errorf("%w: MASTER_ADDRESS %s does not match the address derived from MASTER_PRIVATE_KEY (%s)",
			gatewayerr.ErrKeyMismatch, configuredAddress, kp.Base58Address)
	}
	return domain.MasterWallet{
		Address:    kp.Base58Address,
		HexAddress: kp.HexAddress,
		PrivateKey: kp.PrivateKeyHex,
	}, nil
}

// verifyEncryptionRoundTrip catches a malformed ENCRYPTION_MASTER_KEY at
// startup rather than on the first wallet read.
func verifyEncryptionRoundTrip(enc *security.Encryption) error {
	const canary = "tron-usdt-gateway-startup-check"
	ciphertext, err := enc.Encrypt(canary)
	if err != nil {
		return err
	}
	plaintext, err := enc.Decrypt(ciphertext)
	if err != nil {
		return err
	}
	if plaintext != canary {
		return fmt.Errorf("decrypted value does not match the original")
	}
	return nil
}

// hexFromBase58OrHex accepts either address form for USDT_CONTRACT_ADDRESS,
// since operators routinely copy the Base58 form from a block explorer.
func hexFromBase58OrHex(addr string) (string, error) {
	if len(addr) > 0 && addr[0] == 'T' {
		raw, err := addresscodec.FromBase58(addr)
		if err != nil {
			return "", err
		}
		return addresscodec.ToHex(raw)
	}
	return addr, nil
}
