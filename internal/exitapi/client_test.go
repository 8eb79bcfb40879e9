package exitapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lasersell/lasersell/internal/stream"
)

func testOptions(url string) Options {
	opts := DefaultOptions(false)
	opts.BaseURL = url
	opts.AttemptTimeout = 2 * time.Second
	opts.RetryBackoff = time.Millisecond
	return opts
}

func TestBuildSellTxSendsRequest(t *testing.T) {
	var got SellRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sell", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("content-type"))
		assert.Equal(t, "key-1", r.Header.Get("x-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"ok","tx":"dW5zaWduZWQ="}`))
	}))
	defer server.Close()

	client := NewClient("key-1", testOptions(server.URL), zaptest.NewLogger(t))
	slippage := uint16(2000)
	output := "USD1"
	tx, err := client.BuildSellTx(context.Background(), SellRequest{
		Mint:          "mint",
		UserPubkey:    "user",
		AmountTokens:  1500,
		SlippageBps:   &slippage,
		Output:        &output,
		MarketContext: &stream.MarketContextMsg{MarketType: stream.MarketPumpFun, PumpFun: &stream.PumpFunContextMsg{}},
	})
	require.NoError(t, err)
	assert.Equal(t, "dW5zaWduZWQ=", tx)

	assert.Equal(t, uint64(1500), got.AmountTokens)
	require.NotNil(t, got.Output)
	assert.Equal(t, "USD1", *got.Output)
	require.NotNil(t, got.MarketContext)
	assert.Equal(t, "pump_fun", got.MarketContext.MarketType)
}

func TestBuildSellTxRejectsZeroAmount(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	client := NewClient("key", testOptions(server.URL), zaptest.NewLogger(t))
	_, err := client.BuildSellTx(context.Background(), SellRequest{Mint: "m", UserPubkey: "u"})
	assert.ErrorIs(t, err, ErrZeroAmount)
	assert.Equal(t, int32(0), hits.Load())
}

func TestBuildSellTxRetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantHits  int32
		retryable bool
	}{
		{"server error retried", http.StatusBadGateway, 2, true},
		{"rate limit retried", http.StatusTooManyRequests, 2, true},
		{"bad request not retried", http.StatusBadRequest, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"pool not found"}`))
			}))
			defer server.Close()

			client := NewClient("key", testOptions(server.URL), zaptest.NewLogger(t))
			_, err := client.BuildSellTx(context.Background(), SellRequest{Mint: "m", UserPubkey: "u", AmountTokens: 1})
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, ErrorHTTPStatus, apiErr.Kind)
			assert.Equal(t, "pool not found", apiErr.Body)
			assert.Equal(t, tt.retryable, apiErr.IsRetryable())
			assert.Equal(t, tt.wantHits, hits.Load())
		})
	}
}

func TestBuildSellTxRecoversAfterTransientFailure(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"unsigned_tx_b64":"AQID"}`))
	}))
	defer server.Close()

	client := NewClient("key", testOptions(server.URL), zaptest.NewLogger(t))
	tx, err := client.BuildSellTx(context.Background(), SellRequest{Mint: "m", UserPubkey: "u", AmountTokens: 1})
	require.NoError(t, err)
	assert.Equal(t, "AQID", tx)
	assert.Equal(t, int32(2), hits.Load())
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr ErrorKind
	}{
		{"envelope tx", `{"status":"ok","tx":"AAA","route":{"market":"pump"}}`, "AAA", ""},
		{"envelope unsigned", `{"status":"OK","unsigned_tx_b64":"BBB"}`, "BBB", ""},
		{"legacy", `{"unsigned_tx_b64":"CCC"}`, "CCC", ""},
		{"bare", `{"tx":"DDD"}`, "DDD", ""},
		{"envelope missing tx", `{"status":"ok"}`, "", ErrorParse},
		{"envelope failure", `{"status":"failed","reason":"no route"}`, "", ErrorEnvelopeStatus},
		{"unknown shape", `{"foo":1}`, "", ErrorParse},
		{"invalid json", `nope`, "", ErrorParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse([]byte(tt.body))
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantErr, apiErr.Kind)
		})
	}

	_, err := ParseResponse([]byte(`{"status":"failed","message":"slippage too low"}`))
	assert.EqualError(t, err, "exit-api status failed: slippage too low")
}

func TestSummarizeErrorBodyTruncates(t *testing.T) {
	long := strings.Repeat("x", 500)
	assert.Len(t, summarizeErrorBody([]byte(long)), errorBodySnippetLen)
	assert.Equal(t, "boom", summarizeErrorBody([]byte(`{"message":"boom"}`)))
}
