package tronrpc

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
)

// balanceOfMethodID is the balanceOf(address) selector.
const balanceOfMethodID = "70a08231"

func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func hexDecode(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

// balanceOfCalldata ABI-encodes balanceOf(address) for ownerHex, which may be
// a 42-char ("41"-prefixed) or 40-char hex address.
func balanceOfCalldata(ownerHex string) []byte {
	raw, err := hexDecode(ownerHex)
	if err != nil {
		raw = nil
	}
	if len(raw) == 21 {
		raw = raw[1:]
	}
	selector, _ := hex.DecodeString(balanceOfMethodID)
	addrParam := common.LeftPadBytes(raw, 32)
	out := make([]byte, 0, len(selector)+32)
	out = append(out, selector...)
	out = append(out, addrParam...)
	return out
}
