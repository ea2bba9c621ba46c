package signer

import (
	"testing"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/keygen"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/txbuilder"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	owner, err := keygen.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	to, err := keygen.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	built, err := txbuilder.TRXTransfer(owner.HexAddress, to.HexAddress, 1_000_000, txbuilder.BlockRef{Number: 1, Hash: make([]byte, 32)})
	if err != nil {
		t.Fatalf("TRXTransfer: %v", err)
	}

	if err := Sign(built, owner.PrivateKeyHex, owner.HexAddress); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	ok, err := VerifySignature(built, owner.HexAddress)
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify against signer's own address")
	}

	ok, err = VerifySignature(built, to.HexAddress)
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if ok {
		t.Fatal("signature must not verify against an unrelated address")
	}
}

func TestSignRejectsKeyMismatch(t *testing.T) {
	owner, _ := keygen.Generate()
	imposter, _ := keygen.Generate()
	to, _ := keygen.Generate()

	built, _ := txbuilder.TRXTransfer(owner.HexAddress, to.HexAddress, 1_000_000, txbuilder.BlockRef{Number: 1, Hash: make([]byte, 32)})

	if err := Sign(built, imposter.PrivateKeyHex, owner.HexAddress); err == nil {
		t.Fatal("expected key mismatch error")
	}
}

func TestSignWithLeadingZeroKey(t *testing.T) {
	owner, err := keygen.FromPrivateKeyHex("01")
	if err != nil {
		t.Fatalf("FromPrivateKeyHex: %v", err)
	}
	to, _ := keygen.Generate()

	built, _ := txbuilder.TRXTransfer(owner.HexAddress, to.HexAddress, 1_000_000, txbuilder.BlockRef{Number: 1, Hash: make([]byte, 32)})
	if err := Sign(built, owner.PrivateKeyHex, owner.HexAddress); err != nil {
		t.Fatalf("Sign with leading-zero key: %v", err)
	}
	ok, err := VerifySignature(built, owner.HexAddress)
	if err != nil || !ok {
		t.Fatalf("expected successful verify, got ok=%v err=%v", ok, err)
	}
}
