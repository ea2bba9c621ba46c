// Package txbuilder constructs raw TRON transactions — TransferContract for
// native TRX and TriggerSmartContract for TRC-20 transfer(address,uint256)
// calls — and serializes their raw_data deterministically so the same
// inputs always produce the same bytes to sign.
//
// Grounded on the teacher's sendTRX/sendTRC20 (internal/chains/tron/tron.go,
// internal/chains/tron/trc20.go), which build transactions via the
// gotron-sdk gRPC client's Transfer/TriggerContract helpers; here the same
// core.Transaction / core.TransactionRaw / core.TriggerSmartContract
// protobuf message types are filled in directly so the builder needs only a
// block reference, not a live "create transaction" round trip.
package txbuilder

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

// TransferMethodID is the TRC-20 transfer(address,uint256) selector.
const TransferMethodID = "a9059cbb"

const (
	txExpirationWindow = 60 * time.Second
	// feeLimitSafetyFactor multiplies the energy-based fee limit so a
	// TRC-20 call isn't rejected by a slightly stale estimate (spec 4.5).
	feeLimitSafetyFactor = 1.3
)

// BlockRef is the recent block window a transaction is anchored to,
// obtained from TronRpc.GetNowBlock.
type BlockRef struct {
	Number    int64
	Hash      []byte // 32-byte block id
	Timestamp int64  // block timestamp, ms
}

func refBlockBytes(blockNum int64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(blockNum >> (8 * i))
	}
	return b[6:8]
}

func refBlockHashBytes(blockHash []byte) []byte {
	if len(blockHash) < 16 {
		return blockHash
	}
	return blockHash[8:16]
}

// TRXTransfer builds a native TRX TransferContract transaction. amountSun is
// the transfer amount in SUN (1 TRX = 10^6 SUN).
func TRXTransfer(ownerHex, toHex string, amountSun int64, ref BlockRef) (*core.Transaction, error) {
	owner, err := hex.DecodeString(ownerHex)
	if err != nil {
		return nil, fmt.Errorf("invalid owner address: %w", err)
	}
	to, err := hex.DecodeString(toHex)
	if err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}

	contract := &core.TransferContract{
		OwnerAddress: owner,
		ToAddress:    to,
		Amount:       amountSun,
	}
	any, err := anypb.New(contract)
	if err != nil {
		return nil, fmt.Errorf("failed to pack TransferContract: %w", err)
	}

	now := time.Now()
	raw := &core.TransactionRaw{
		RefBlockBytes: refBlockBytes(ref.Number),
		RefBlockHash:  refBlockHashBytes(ref.Hash),
		Expiration:    now.Add(txExpirationWindow).UnixMilli(),
		Timestamp:     now.UnixMilli(),
		Contract: []*core.Transaction_Contract{
			{
				Type:      core.Transaction_Contract_TransferContract,
				Parameter: any,
			},
		},
	}

	return &core.Transaction{RawData: raw}, nil
}

// TRC20Transfer builds a TriggerSmartContract transaction calling
// transfer(address,uint256) on contractHex. amountU256 is in the token's
// smallest unit (10^6 for USDT). feeLimitSun is set to
// energyEstimate * energyPriceSun * feeLimitSafetyFactor (spec 4.5).
func TRC20Transfer(ownerHex, contractHex, toHex string, amountU256 *big.Int, energyEstimate, energyPriceSun int64, ref BlockRef) (*core.Transaction, error) {
	owner, err := hex.DecodeString(ownerHex)
	if err != nil {
		return nil, fmt.Errorf("invalid owner address: %w", err)
	}
	contractAddr, err := hex.DecodeString(contractHex)
	if err != nil {
		return nil, fmt.Errorf("invalid contract address: %w", err)
	}

	data, err := EncodeTransferCalldata(toHex, amountU256)
	if err != nil {
		return nil, err
	}

	contract := &core.TriggerSmartContract{
		OwnerAddress:    owner,
		ContractAddress: contractAddr,
		CallValue:       0,
		Data:            data,
	}
	any, err := anypb.New(contract)
	if err != nil {
		return nil, fmt.Errorf("failed to pack TriggerSmartContract: %w", err)
	}

	feeLimit := int64(float64(energyEstimate*energyPriceSun) * feeLimitSafetyFactor)

	now := time.Now()
	raw := &core.TransactionRaw{
		RefBlockBytes: refBlockBytes(ref.Number),
		RefBlockHash:  refBlockHashBytes(ref.Hash),
		Expiration:    now.Add(txExpirationWindow).UnixMilli(),
		Timestamp:     now.UnixMilli(),
		FeeLimit:      feeLimit,
		Contract: []*core.Transaction_Contract{
			{
				Type:      core.Transaction_Contract_TriggerSmartContract,
				Parameter: any,
			},
		},
	}

	return &core.Transaction{RawData: raw}, nil
}

// EncodeTransferCalldata ABI-encodes transfer(address,uint256): selector ||
// left-padded 32-byte address || left-padded 32-byte amount (spec 4.3, 6).
// toHex is the 40-char (no "41" prefix) or 42-char hex address.
func EncodeTransferCalldata(toHex string, amountU256 *big.Int) ([]byte, error) {
	toBytes, err := hex.DecodeString(trimAddrPrefix(toHex))
	if err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}
	if len(toBytes) == 21 {
		toBytes = toBytes[1:] // drop the 0x41 TRON prefix; ABI wants the raw 20-byte address
	}
	if len(toBytes) != 20 {
		return nil, fmt.Errorf("to address must decode to 20 bytes, got %d", len(toBytes))
	}

	selector, _ := hex.DecodeString(TransferMethodID)
	addrParam := common.LeftPadBytes(toBytes, 32)
	amountParam := common.LeftPadBytes(amountU256.Bytes(), 32)

	out := make([]byte, 0, len(selector)+64)
	out = append(out, selector...)
	out = append(out, addrParam...)
	out = append(out, amountParam...)
	return out, nil
}

func trimAddrPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// RawDataBytes returns the canonical protobuf serialization of a
// transaction's raw_data — the exact bytes SHA-256 is computed over for
// both the transaction id and the signing hash (spec 4.3, 4.4, 6).
func RawDataBytes(tx *core.Transaction) ([]byte, error) {
	b, err := proto.Marshal(tx.RawData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw data: %w", err)
	}
	return b, nil
}

// EncodedHex serializes a fully signed transaction (raw_data plus
// signature) to the hex string broadcasthex expects.
func EncodedHex(tx *core.Transaction) (string, error) {
	b, err := proto.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transaction: %w", err)
	}
	return hex.EncodeToString(b), nil
}
