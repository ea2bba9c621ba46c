package config

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		prev, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, prev)
			}
		})
	}
}

var requiredKeys = []string{
	"MASTER_ADDRESS", "MASTER_PRIVATE_KEY", "USDT_CONTRACT_ADDRESS",
	"DB_USER", "DB_PASSWORD", "DB_NAME", "ENCRYPTION_MASTER_KEY",
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	values := map[string]string{
		"MASTER_ADDRESS":        "TLa2f6VPqDgRE67v1736s7bJ8Ray5wYjU7",
		"MASTER_PRIVATE_KEY":    "01",
		"USDT_CONTRACT_ADDRESS": "41a614f803b6fd780986a42c78ec9c7f77e6ded13c",
		"DB_USER":               "gateway",
		"DB_PASSWORD":           "secret",
		"DB_NAME":               "gateway",
		"ENCRYPTION_MASTER_KEY": "test-master-key",
	}
	for k, v := range values {
		os.Setenv(k, v)
		t.Cleanup(func(k string) func() { return func() { os.Unsetenv(k) } }(k))
	}
}

func TestLoadRequiresMasterWalletConfig(t *testing.T) {
	clearEnv(t, requiredKeys...)
	_, err := Load(zap.NewNop())
	if err == nil {
		t.Fatal("expected an error when required env vars are missing")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t, requiredKeys...)
	setRequiredEnv(t)

	cfg, err := Load(zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tron.BaseURL != "https://api.trongrid.io" {
		t.Fatalf("unexpected default base URL: %s", cfg.Tron.BaseURL)
	}
	if !cfg.Activation.Enabled {
		t.Fatal("expected activation enabled by default")
	}
	if cfg.RPC.TimeoutSec != 10 {
		t.Fatalf("expected default RPC timeout 10s, got %d", cfg.RPC.TimeoutSec)
	}
	if cfg.Poll.ConfirmSec != 300 {
		t.Fatalf("expected default confirm poll 300s, got %d", cfg.Poll.ConfirmSec)
	}
	if cfg.RPC.RPS != 10 || cfg.RPC.Burst != 20 {
		t.Fatalf("unexpected default RPC rate limit: %d/%d", cfg.RPC.RPS, cfg.RPC.Burst)
	}
	if cfg.Worker.ReconcileIntervalSec != 30 {
		t.Fatalf("expected default reconcile interval 30s, got %d", cfg.Worker.ReconcileIntervalSec)
	}
	if cfg.Worker.BalanceCacheIntervalSec != 60 {
		t.Fatalf("expected default balance cache interval 60s, got %d", cfg.Worker.BalanceCacheIntervalSec)
	}
	if cfg.Fee.EnergyPriceSun != 420 {
		t.Fatalf("expected default energy price 420 sun, got %d", cfg.Fee.EnergyPriceSun)
	}
	if !cfg.Fee.TrxUsdtRate.Equal(decimal.NewFromFloat(0.12)) {
		t.Fatalf("unexpected default TRX/USDT rate: %s", cfg.Fee.TrxUsdtRate)
	}
}
