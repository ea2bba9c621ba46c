package activator

import (
	"context"
	"testing"
	"time"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/domain"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/keygen"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/tronrpc"
)

func TestActivateSkipsExistingAccount(t *testing.T) {
	master, _ := keygen.Generate()
	user, _ := keygen.Generate()

	rpc := tronrpc.NewFake()
	rpc.TrxBalances[master.Base58Address] = 100_000_000
	rpc.TrxBalances[user.Base58Address] = 5_000_000 // already exists

	a := New(rpc, domain.MasterWallet{
		Address:    master.Base58Address,
		HexAddress: master.HexAddress,
		PrivateKey: master.PrivateKeyHex,
	}, DefaultConfig())

	wallet := domain.Wallet{Address: user.Base58Address, HexAddress: user.HexAddress}
	txHash, err := a.Activate(context.Background(), wallet)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if txHash != "" {
		t.Fatal("expected no transaction for an already-existing account")
	}
	if len(rpc.Broadcasts) != 0 {
		t.Fatal("expected no broadcast for an already-existing account")
	}
}

func TestActivateFundsNewAccount(t *testing.T) {
	master, _ := keygen.Generate()
	user, _ := keygen.Generate()

	rpc := tronrpc.NewFake()
	rpc.TrxBalances[master.Base58Address] = 100_000_000

	a := New(rpc, domain.MasterWallet{
		Address:    master.Base58Address,
		HexAddress: master.HexAddress,
		PrivateKey: master.PrivateKeyHex,
	}, DefaultConfig())

	go func() {
		time.Sleep(10 * time.Millisecond)
		rpc.CreditTrx(user.Base58Address, 1_000_000)
	}()

	wallet := domain.Wallet{Address: user.Base58Address, HexAddress: user.HexAddress}
	txHash, err := a.Activate(context.Background(), wallet)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if txHash == "" {
		t.Fatal("expected a transaction hash for a newly activated account")
	}
}

func TestActivateDisabledIsNoop(t *testing.T) {
	master, _ := keygen.Generate()
	user, _ := keygen.Generate()

	rpc := tronrpc.NewFake()
	a := New(rpc, domain.MasterWallet{
		Address:    master.Base58Address,
		HexAddress: master.HexAddress,
		PrivateKey: master.PrivateKeyHex,
	}, Config{Enabled: false})

	wallet := domain.Wallet{Address: user.Base58Address, HexAddress: user.HexAddress}
	txHash, err := a.Activate(context.Background(), wallet)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if txHash != "" {
		t.Fatal("expected no-op when activation is disabled")
	}
}
