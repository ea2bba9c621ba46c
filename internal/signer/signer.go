// Package signer computes transaction ids and secp256k1 signatures for TRON
// transactions, enforcing low-S normalization and the leading-zero private
// key discipline spec 4.4 calls out as critical.
//
// Grounded on the teacher's signTransaction/getTxHash/recoverAddressFromSignature
// (internal/chains/tron/signer.go), generalized with the re-derivation
// check before signing that the teacher's version omits.
package signer

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/gatewayerr"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/keygen"
	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/txbuilder"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"
)

var halfCurveOrder = new(big.Int).Rsh(btcec.S256().N, 1)

// TxID returns the hex-encoded SHA-256 of a transaction's canonical
// raw_data — also the value Sign computes its signature over.
func TxID(tx *core.Transaction) (string, error) {
	raw, err := txbuilder.RawDataBytes(tx)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(raw)
	return hex.EncodeToString(hash[:]), nil
}

// Sign re-derives expectedHexAddress from privateKeyHex and, only on a
// match, signs tx's raw_data hash and attaches the 65-byte r||s||v
// signature with s normalized to the curve's lower half. On a derivation
// mismatch it returns gatewayerr.ErrKeyMismatch without touching tx —
// callers must never broadcast after this error.
func Sign(tx *core.Transaction, privateKeyHex, expectedHexAddress string) error {
	raw32, err := keygen.NormalizeTo32Bytes(privateKeyHex)
	if err != nil {
		return err
	}
	privKey, err := crypto.ToECDSA(raw32)
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}

	derivedHex, _, err := keygen.AddressFromPublicKey(privKey.Public().(*ecdsa.PublicKey))
	if err != nil {
		return err
	}
	if derivedHex != expectedHexAddress {
		return fmt.Errorf("%w: derived %s, expected %s", gatewayerr.ErrKeyMismatch, derivedHex, expectedHexAddress)
	}

	rawData, err := txbuilder.RawDataBytes(tx)
	if err != nil {
		return err
	}
	hash := sha256.Sum256(rawData)

	sig, err := crypto.Sign(hash[:], privKey)
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}

	normalizeLowS(sig)

	tx.Signature = [][]byte{sig}
	return nil
}

// normalizeLowS flips (s, v) in place when s is in the upper half of the
// curve order, so every signature this package produces satisfies s <= N/2
// regardless of what the underlying ECDSA implementation returned.
func normalizeLowS(sig []byte) {
	s := new(big.Int).SetBytes(sig[32:64])
	if s.Cmp(halfCurveOrder) <= 0 {
		return
	}
	s.Sub(btcec.S256().N, s)
	sBytes := s.Bytes()
	var padded [32]byte
	copy(padded[32-len(sBytes):], sBytes)
	copy(sig[32:64], padded[:])
	sig[64] ^= 1
}

// VerifySignature recovers the signer's address from tx's attached
// signature and raw_data hash and compares it to expectedAddress.
func VerifySignature(tx *core.Transaction, expectedHexAddress string) (bool, error) {
	if len(tx.Signature) == 0 {
		return false, fmt.Errorf("no signature found")
	}
	rawData, err := txbuilder.RawDataBytes(tx)
	if err != nil {
		return false, err
	}
	hash := sha256.Sum256(rawData)

	pubKey, err := crypto.SigToPub(hash[:], tx.Signature[0])
	if err != nil {
		return false, fmt.Errorf("failed to recover public key: %w", err)
	}
	recoveredHex, _, err := keygen.AddressFromPublicKey(pubKey)
	if err != nil {
		return false, err
	}
	return recoveredHex == expectedHexAddress, nil
}
