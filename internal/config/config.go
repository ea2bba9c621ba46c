// Package config loads the gateway's environment-driven configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Config struct {
	Database   DatabaseConfig
	Security   SecurityConfig
	Master     MasterWalletConfig
	Tron       TronConfig
	Activation ActivationConfig
	Sponsor    SponsorConfig
	Fee        FeeConfig
	RPC        RPCConfig
	Poll       PollConfig
	Worker     WorkerConfig
}

// DatabaseConfig holds the Postgres connection pool's parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
	MinConns int
}

// SecurityConfig holds the key used to encrypt wallet private keys at
// rest (internal/security.Encryption).
type SecurityConfig struct {
	MasterKey string
}

type MasterWalletConfig struct {
	Address    string
	PrivateKey string
}

type TronConfig struct {
	BaseURL         string
	APIKey          string
	USDTContractAddr string
}

type ActivationConfig struct {
	Enabled   bool
	AmountTrx decimal.Decimal
}

type SponsorConfig struct {
	AmountTrx decimal.Decimal
}

type FeeConfig struct {
	Percentage decimal.Decimal
	MinUsdt    decimal.Decimal
	MaxUsdt    decimal.Decimal
	// EnergyPriceSun and TrxUsdtRate satisfy spec 4.5's "queried or taken
	// from config" energy-price rule via the config branch: this gateway
	// does not wire a live getChainParameters/price-oracle lookup, so
	// these are always the operator-configured value.
	EnergyPriceSun int64
	TrxUsdtRate    decimal.Decimal
}

type RPCConfig struct {
	TimeoutSec int
	RPS        int // requests/sec the shared TronGrid client is allowed (spec 5)
	Burst      int
}

type PollConfig struct {
	VisibilitySec int
	ConfirmSec    int
}

// WorkerConfig tunes the background sweeps (spec 9's supplemented
// batch-reconciliation and wallet-balance-cache features).
type WorkerConfig struct {
	ReconcileIntervalSec    int
	BalanceCacheIntervalSec int
}

// Load reads the gateway's configuration from the environment, falling back
// to a local .env file when present (godotenv.Load is a no-op error when the
// file is absent, so it is safe to ignore here).
func Load(logger *zap.Logger) (*Config, error) {
	_ = godotenv.Load()

	masterAddr := os.Getenv("MASTER_ADDRESS")
	masterKey := os.Getenv("MASTER_PRIVATE_KEY")
	if masterAddr == "" || masterKey == "" {
		return nil, fmt.Errorf("MASTER_ADDRESS and MASTER_PRIVATE_KEY must be set")
	}

	usdtContract := getEnv("USDT_CONTRACT_ADDRESS", "")
	if usdtContract == "" {
		return nil, fmt.Errorf("USDT_CONTRACT_ADDRESS must be set")
	}

	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	if dbUser == "" || dbPassword == "" || dbName == "" {
		return nil, fmt.Errorf("DB_USER, DB_PASSWORD, and DB_NAME must be set")
	}

	encryptionKey := os.Getenv("ENCRYPTION_MASTER_KEY")
	if encryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_MASTER_KEY must be set")
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     dbUser,
			Password: dbPassword,
			Name:     dbName,
			SSLMode:  getEnv("DB_SSLMODE", "require"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Security: SecurityConfig{
			MasterKey: encryptionKey,
		},
		Master: MasterWalletConfig{
			Address:    masterAddr,
			PrivateKey: masterKey,
		},
		Tron: TronConfig{
			BaseURL:          getEnv("TRONGRID_BASE_URL", "https://api.trongrid.io"),
			APIKey:           getEnv("TRONGRID_API_KEY", ""),
			USDTContractAddr: usdtContract,
		},
		Activation: ActivationConfig{
			Enabled:   getEnvAsBool("ACTIVATION_ENABLED", true),
			AmountTrx: getEnvAsDecimal("ACTIVATION_AMOUNT_TRX", decimal.NewFromFloat(1.0)),
		},
		Sponsor: SponsorConfig{
			AmountTrx: getEnvAsDecimal("SPONSOR_AMOUNT_TRX", decimal.NewFromFloat(15)),
		},
		Fee: FeeConfig{
			Percentage:     getEnvAsDecimal("FEE_PERCENTAGE", decimal.NewFromFloat(0.01)),
			MinUsdt:        getEnvAsDecimal("FEE_MIN_USDT", decimal.NewFromFloat(0.5)),
			MaxUsdt:        getEnvAsDecimal("FEE_MAX_USDT", decimal.NewFromFloat(50)),
			EnergyPriceSun: int64(getEnvAsInt("ENERGY_PRICE_SUN", 420)),
			TrxUsdtRate:    getEnvAsDecimal("TRX_USDT_RATE", decimal.NewFromFloat(0.12)),
		},
		RPC: RPCConfig{
			TimeoutSec: getEnvAsInt("RPC_TIMEOUT_SEC", 10),
			RPS:        getEnvAsInt("RPC_RATE_LIMIT_PER_SEC", 10),
			Burst:      getEnvAsInt("RPC_RATE_LIMIT_BURST", 20),
		},
		Poll: PollConfig{
			VisibilitySec: getEnvAsInt("POLL_VISIBILITY_SEC", 30),
			ConfirmSec:    getEnvAsInt("POLL_CONFIRM_SEC", 300),
		},
		Worker: WorkerConfig{
			ReconcileIntervalSec:    getEnvAsInt("RECONCILE_INTERVAL_SEC", 30),
			BalanceCacheIntervalSec: getEnvAsInt("BALANCE_CACHE_INTERVAL_SEC", 60),
		},
	}

	logger.Info("configuration loaded",
		zap.String("trongrid_base_url", cfg.Tron.BaseURL),
		zap.String("usdt_contract", cfg.Tron.USDTContractAddr),
		zap.Bool("activation_enabled", cfg.Activation.Enabled))

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvAsInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	parsed, err := decimal.NewFromString(v)
	if err != nil {
		return defaultValue
	}
	return parsed
}
