package sponsor

import (
	"context"
	"testing"
	"time"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/domain"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/keygen"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/tronrpc"
	"github.com/shopspring/decimal"
)

func testConfig() Config {
	return Config{
		AmountTrx:           decimal.NewFromInt(15),
		VisibilityPollEvery: 5 * time.Millisecond,
		VisibilityTimeout:   200 * time.Millisecond,
	}
}

func TestFundSucceedsWhenBalanceAppears(t *testing.T) {
	master, _ := keygen.Generate()
	user, _ := keygen.Generate()

	rpc := tronrpc.NewFake()
	rpc.TrxBalances[master.Base58Address] = 100_000_000 // 100 TRX

	s := New(rpc, domain.MasterWallet{
		Address:    master.Base58Address,
		HexAddress: master.HexAddress,
		PrivateKey: master.PrivateKeyHex,
	}, testConfig())

	// Simulate the broadcast landing asynchronously.
	go func() {
		time.Sleep(20 * time.Millisecond)
		rpc.CreditTrx(user.Base58Address, 15_000_000)
	}()

	txHash, err := s.Fund(context.Background(), user.Base58Address, user.HexAddress, "ref-1")
	if err != nil {
		t.Fatalf("Fund: %v", err)
	}
	if txHash == "" {
		t.Fatal("expected a non-empty tx hash")
	}
}

func TestFundFailsWhenMasterUnderfunded(t *testing.T) {
	master, _ := keygen.Generate()
	user, _ := keygen.Generate()

	rpc := tronrpc.NewFake()
	rpc.TrxBalances[master.Base58Address] = 1_000_000 // 1 TRX, below the 15 TRX sponsor amount

	s := New(rpc, domain.MasterWallet{
		Address:    master.Base58Address,
		HexAddress: master.HexAddress,
		PrivateKey: master.PrivateKeyHex,
	}, testConfig())

	_, err := s.Fund(context.Background(), user.Base58Address, user.HexAddress, "ref-2")
	if err == nil {
		t.Fatal("expected an insufficient master balance error")
	}
}

func TestFundTimesOutWhenBalanceNeverAppears(t *testing.T) {
	master, _ := keygen.Generate()
	user, _ := keygen.Generate()

	rpc := tronrpc.NewFake()
	rpc.TrxBalances[master.Base58Address] = 100_000_000

	s := New(rpc, domain.MasterWallet{
		Address:    master.Base58Address,
		HexAddress: master.HexAddress,
		PrivateKey: master.PrivateKeyHex,
	}, testConfig())

	_, err := s.Fund(context.Background(), user.Base58Address, user.HexAddress, "ref-3")
	if err == nil {
		t.Fatal("expected a poll timeout error")
	}
}
