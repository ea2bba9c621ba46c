// Package keygen generates TRON wallet key pairs and derives their
// addresses. Grounded on the teacher's generateTronWallet/importTronWallet
// (internal/chains/tron/wallet.go), generalized to return the 32-byte
// private key with leading zeros preserved rather than go-ethereum's
// variable-length hex rendering.
package keygen

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/anthonyalando8-pxyz/tron-usdt-gateway/internal/addresscodec"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyPair is a freshly generated or imported TRON identity.
type KeyPair struct {
	PrivateKeyHex string // 64 hex chars, leading zero bytes preserved
	HexAddress    string // 42-char lowercase hex, "41" prefix
	Base58Address string
}

// Generate samples a private key from a cryptographic RNG, rejecting 0 and
// any value at or above the secp256k1 curve order, and derives its TRON
// address.
func Generate() (*KeyPair, error) {
	curveOrder := btcec.S256().N
	for {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("failed to read random bytes: %w", err)
		}
		candidate := new(big.Int).SetBytes(raw)
		if candidate.Sign() == 0 || candidate.Cmp(curveOrder) >= 0 {
			continue // 0 or >= N: resample
		}
		return fromScalar(raw)
	}
}

// FromPrivateKeyHex derives a KeyPair from an existing private key,
// normalizing it to 32 bytes with left-padding zeros preserved — the same
// leading-zero discipline the Signer enforces before signing.
func FromPrivateKeyHex(privateKeyHex string) (*KeyPair, error) {
	raw, err := NormalizeTo32Bytes(privateKeyHex)
	if err != nil {
		return nil, err
	}
	return fromScalar(raw)
}

// NormalizeTo32Bytes left-pads a hex-encoded private key to exactly 32
// bytes. Implementations must never strip leading zeros when converting
// between hex string and integer (spec 4.4) — this is the single place that
// rule is enforced for both KeyGen and Signer.
func NormalizeTo32Bytes(privateKeyHex string) ([]byte, error) {
	clean := privateKeyHex
	if len(clean) >= 2 && clean[0] == '0' && (clean[1] == 'x' || clean[1] == 'X') {
		clean = clean[2:]
	}
	if len(clean)%2 == 1 {
		clean = "0" + clean
	}
	decoded, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	if len(decoded) > 32 {
		return nil, fmt.Errorf("private key longer than 32 bytes")
	}
	padded := make([]byte, 32)
	copy(padded[32-len(decoded):], decoded)
	return padded, nil
}

func fromScalar(raw32 []byte) (*KeyPair, error) {
	priv, err := crypto.ToECDSA(raw32)
	if err != nil {
		return nil, fmt.Errorf("invalid scalar: %w", err)
	}
	pub := priv.Public().(*ecdsa.PublicKey)

	hexAddr, base58Addr, err := AddressFromPublicKey(pub)
	if err != nil {
		return nil, err
	}

	return &KeyPair{
		PrivateKeyHex: hex.EncodeToString(raw32),
		HexAddress:    hexAddr,
		Base58Address: base58Addr,
	}, nil
}

// AddressFromPublicKey derives the 21-byte TRON address (0x41 prefix +
// Keccak-256 of the 64-byte uncompressed public key body, last 20 bytes)
// and returns both its hex and Base58Check renderings.
func AddressFromPublicKey(pub *ecdsa.PublicKey) (hexAddr, base58Addr string, err error) {
	uncompressed := crypto.FromECDSAPub(pub) // 65 bytes: 0x04 || X || Y
	hash := crypto.Keccak256(uncompressed[1:])

	addr21 := make([]byte, 21)
	addr21[0] = 0x41
	copy(addr21[1:], hash[12:32])

	hexAddr, err = addresscodec.ToHex(addr21)
	if err != nil {
		return "", "", err
	}
	base58Addr, err = addresscodec.ToBase58(addr21)
	if err != nil {
		return "", "", err
	}
	return hexAddr, base58Addr, nil
}
