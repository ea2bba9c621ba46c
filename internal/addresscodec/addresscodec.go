// Package addresscodec converts between the three representations of a TRON
// address: the 21-byte payload (0x41 || 20-byte hash), its 42-char hex
// string, and its Base58Check string. Every function here is pure and
// offline by design (spec 4.1) — the gateway must be able to validate and
// round-trip an address it has never seen on-chain.
package addresscodec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	addrPrefix = 0x41
	addrLen    = 21 // prefix + 20-byte hash
)

// BadLength, BadPrefix, BadChecksum, and BadCharset are the AddressCodec
// failure modes named in spec 4.1.
var (
	ErrBadLength   = fmt.Errorf("address: bad length")
	ErrBadPrefix   = fmt.Errorf("address: bad prefix")
	ErrBadChecksum = fmt.Errorf("address: bad checksum")
	ErrBadCharset  = fmt.Errorf("address: bad charset")
)

func checksum(addr21 []byte) [4]byte {
	first := sha256.Sum256(addr21)
	second := sha256.Sum256(first[:])
	var out [4]byte
	copy(out[:], second[:4])
	return out
}

// ToBase58 encodes a 21-byte address payload as a Base58Check string.
func ToBase58(addr21 []byte) (string, error) {
	if len(addr21) != addrLen {
		return "", ErrBadLength
	}
	if addr21[0] != addrPrefix {
		return "", ErrBadPrefix
	}
	sum := checksum(addr21)
	payload := append(append([]byte{}, addr21...), sum[:]...)
	return base58.Encode(payload), nil
}

// FromBase58 decodes a Base58Check string back to its 21-byte payload,
// rejecting any checksum or prefix mismatch.
func FromBase58(s string) ([]byte, error) {
	decoded := base58.Decode(s)
	if len(decoded) == 0 && s != "" {
		return nil, ErrBadCharset
	}
	if len(decoded) != addrLen+4 {
		return nil, ErrBadLength
	}
	addr21, sum := decoded[:addrLen], decoded[addrLen:]
	if addr21[0] != addrPrefix {
		return nil, ErrBadPrefix
	}
	want := checksum(addr21)
	for i := range want {
		if want[i] != sum[i] {
			return nil, ErrBadChecksum
		}
	}
	return addr21, nil
}

// ToHex renders a 21-byte address payload as 42-char lowercase hex.
func ToHex(addr21 []byte) (string, error) {
	if len(addr21) != addrLen {
		return "", ErrBadLength
	}
	return hex.EncodeToString(addr21), nil
}

// FromHex accepts either a 42-char ("41"-prefixed) or 40-char (bare,
// 20-byte) hex string and returns the 21-byte address payload.
func FromHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrBadCharset
	}
	switch len(raw) {
	case addrLen:
		if raw[0] != addrPrefix {
			return nil, ErrBadPrefix
		}
		return raw, nil
	case addrLen - 1:
		return append([]byte{addrPrefix}, raw...), nil
	default:
		return nil, ErrBadLength
	}
}
