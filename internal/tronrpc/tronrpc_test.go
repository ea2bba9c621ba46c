package tronrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := NewHTTPClient(srv.URL, "test-key", 2*time.Second, rate.NewLimiter(rate.Inf, 1), zap.NewNop())
	return c, srv
}

func TestGetNowBlockParsesBlockRef(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("TRON-PRO-API-KEY") != "test-key" {
			t.Fatalf("missing api key header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"blockID": "0000000002468ace" + "000000000000000000000000000000000000000000000000",
			"block_header": map[string]any{
				"raw_data": map[string]any{
					"number":    int64(38347214),
					"timestamp": int64(1700000000000),
				},
			},
		})
	})
	defer srv.Close()

	ref, err := c.GetNowBlock(context.Background())
	if err != nil {
		t.Fatalf("GetNowBlock: %v", err)
	}
	if ref.Number != 38347214 {
		t.Fatalf("unexpected block number: %d", ref.Number)
	}
	if len(ref.Hash) != 32 {
		t.Fatalf("expected 32-byte block hash, got %d", len(ref.Hash))
	}
}

func TestGetAccountMissingAccountIsNotAnError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	})
	defer srv.Close()

	info, err := c.GetAccount(context.Background(), "TFakeAddressNotOnChain")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if info.Exists {
		t.Fatal("expected Exists=false for an empty account response")
	}
	if info.BalanceSun != 0 {
		t.Fatalf("expected zero balance, got %d", info.BalanceSun)
	}
}

func TestGetAccountExisting(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"address": "41aabbccddeeff00112233445566778899aabbccdd",
			"balance": int64(5_000_000),
		})
	})
	defer srv.Close()

	info, err := c.GetAccount(context.Background(), "Tsomeaddress")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !info.Exists || info.BalanceSun != 5_000_000 {
		t.Fatalf("unexpected account info: %+v", info)
	}
}

func TestBroadcastTransactionSuccess(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": true,
			"txid":   "abc123",
		})
	})
	defer srv.Close()

	res, err := c.BroadcastTransaction(context.Background(), "deadbeef", "abc123")
	if err != nil {
		t.Fatalf("BroadcastTransaction: %v", err)
	}
	if !res.Result || res.TxID != "abc123" {
		t.Fatalf("unexpected broadcast result: %+v", res)
	}
}

func TestGetTransactionInfoByIDNotYetIndexed(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	})
	defer srv.Close()

	info, err := c.GetTransactionInfoByID(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("GetTransactionInfoByID: %v", err)
	}
	if info.Indexed {
		t.Fatal("expected Indexed=false for an unindexed transaction")
	}
}

func TestServerErrorMapsToRpcUnavailable(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream error"))
	})
	defer srv.Close()

	_, err := c.GetAccount(context.Background(), "Tsomeaddress")
	if err == nil {
		t.Fatal("expected an error for a 5xx response")
	}
}
