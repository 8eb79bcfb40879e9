package solbc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"

	"github.com/lasersell/lasersell/internal/blockchain"
)

// fakeRPC answers JSON-RPC calls by method name.
type fakeRPC struct {
	mu       sync.Mutex
	handlers map[string]func(params gjson.Result) (interface{}, interface{})
	calls    map[string]int
	server   *httptest.Server
}

func newFakeRPC(t *testing.T) *fakeRPC {
	f := &fakeRPC{
		handlers: make(map[string]func(gjson.Result) (interface{}, interface{})),
		calls:    make(map[string]int),
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		req := gjson.ParseBytes(body)
		method := req.Get("method").String()

		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls[method]++
		handler := f.handlers[method]

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.Get("id").Value()}
		if handler == nil {
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		} else {
			result, rpcErr := handler(req.Get("params"))
			if rpcErr != nil {
				resp["error"] = rpcErr
			} else {
				resp["result"] = result
			}
		}
		w.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeRPC) on(method string, h func(params gjson.Result) (interface{}, interface{})) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *fakeRPC) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func rpcContext(slot uint64) map[string]interface{} {
	return map[string]interface{}{"slot": slot}
}

func newTestClient(t *testing.T, f *fakeRPC, opts ...Option) *Client {
	opts = append([]Option{WithPollInterval(10 * time.Millisecond), WithRequestTimeout(time.Second)}, opts...)
	return NewClient(f.server.URL, zaptest.NewLogger(t), opts...)
}

func TestGetBalanceReportsObserver(t *testing.T) {
	f := newFakeRPC(t)
	f.on("getBalance", func(gjson.Result) (interface{}, interface{}) {
		return map[string]interface{}{"context": rpcContext(1), "value": 1_500_000_000}, nil
	})

	var mu sync.Mutex
	var observed []string
	client := newTestClient(t, f, WithObserver(func(method string, _ time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.NoError(t, err)
		observed = append(observed, method)
	}))

	lamports, err := client.GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), lamports)
	assert.Equal(t, []string{"getBalance"}, observed)
}

func TestAwaitConfirmation(t *testing.T) {
	sig := solana.Signature{1, 2, 3}

	t.Run("confirmed after processing", func(t *testing.T) {
		f := newFakeRPC(t)
		var polls int
		f.on("getSignatureStatuses", func(gjson.Result) (interface{}, interface{}) {
			polls++
			status := "processed"
			if polls >= 3 {
				status = "confirmed"
			}
			return map[string]interface{}{
				"context": rpcContext(1),
				"value":   []interface{}{map[string]interface{}{"slot": 5, "confirmations": 1, "err": nil, "confirmationStatus": status}},
			}, nil
		})
		client := newTestClient(t, f)
		require.NoError(t, client.AwaitConfirmation(context.Background(), sig, 2*time.Second))
		assert.GreaterOrEqual(t, f.count("getSignatureStatuses"), 3)
	})

	t.Run("on-chain failure", func(t *testing.T) {
		f := newFakeRPC(t)
		f.on("getSignatureStatuses", func(gjson.Result) (interface{}, interface{}) {
			return map[string]interface{}{
				"context": rpcContext(1),
				"value": []interface{}{map[string]interface{}{
					"slot": 5, "confirmations": 1, "confirmationStatus": "confirmed",
					"err": map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 6004}}},
				}},
			}, nil
		})
		client := newTestClient(t, f)
		err := client.AwaitConfirmation(context.Background(), sig, 2*time.Second)
		var failed *blockchain.TxFailedError
		require.True(t, errors.As(err, &failed))
		assert.Equal(t, sig, failed.Signature)
	})

	t.Run("timeout", func(t *testing.T) {
		f := newFakeRPC(t)
		f.on("getSignatureStatuses", func(gjson.Result) (interface{}, interface{}) {
			return map[string]interface{}{"context": rpcContext(1), "value": []interface{}{nil}}, nil
		})
		client := newTestClient(t, f)
		err := client.AwaitConfirmation(context.Background(), sig, 50*time.Millisecond)
		assert.ErrorIs(t, err, blockchain.ErrConfirmationTimeout)
	})
}

func TestGetAccountOwner(t *testing.T) {
	f := newFakeRPC(t)
	account := solana.NewWallet().PublicKey()
	missing := solana.NewWallet().PublicKey()
	f.on("getAccountInfo", func(params gjson.Result) (interface{}, interface{}) {
		if params.Get("0").String() == missing.String() {
			return map[string]interface{}{"context": rpcContext(1), "value": nil}, nil
		}
		return map[string]interface{}{
			"context": rpcContext(1),
			"value": map[string]interface{}{
				"lamports":   2039280,
				"owner":      blockchain.Token2022ProgramID.String(),
				"data":       []interface{}{"", "base64"},
				"executable": false,
				"rentEpoch":  0,
			},
		}, nil
	})
	client := newTestClient(t, f)

	owner, err := client.GetAccountOwner(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, blockchain.Token2022ProgramID, owner)

	_, err = client.GetAccountOwner(context.Background(), missing)
	assert.ErrorIs(t, err, blockchain.ErrAccountNotFound)
}

func TestGetTokenBalanceByMintSumsBothPrograms(t *testing.T) {
	f := newFakeRPC(t)
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()

	tokenAccount := func(mint solana.PublicKey, amount string, program solana.PublicKey) map[string]interface{} {
		return map[string]interface{}{
			"pubkey": solana.NewWallet().PublicKey().String(),
			"account": map[string]interface{}{
				"lamports":   2039280,
				"owner":      program.String(),
				"executable": false,
				"rentEpoch":  0,
				"data": map[string]interface{}{
					"program": "spl-token",
					"space":   165,
					"parsed": map[string]interface{}{
						"type": "account",
						"info": map[string]interface{}{
							"mint":  mint.String(),
							"owner": owner.String(),
							"tokenAmount": map[string]interface{}{
								"amount": amount, "decimals": 6, "uiAmountString": "0",
							},
						},
					},
				},
			},
		}
	}

	f.on("getTokenAccountsByOwner", func(params gjson.Result) (interface{}, interface{}) {
		program := params.Get("1.programId").String()
		var accounts []interface{}
		if program == solana.TokenProgramID.String() {
			accounts = append(accounts,
				tokenAccount(mint, "1000000", solana.TokenProgramID),
				tokenAccount(other, "999", solana.TokenProgramID))
		} else {
			accounts = append(accounts, tokenAccount(mint, "250000", blockchain.Token2022ProgramID))
		}
		return map[string]interface{}{"context": rpcContext(1), "value": accounts}, nil
	})

	client := newTestClient(t, f)
	total, err := client.GetTokenBalanceByMint(context.Background(), owner, mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_250_000), total)
	assert.Equal(t, 2, f.count("getTokenAccountsByOwner"))
}

func TestSendTransactionWrapsError(t *testing.T) {
	f := newFakeRPC(t)
	f.on("sendTransaction", func(gjson.Result) (interface{}, interface{}) {
		return nil, map[string]interface{}{
			"code":    -32002,
			"message": "Transaction simulation failed",
			"data": map[string]interface{}{
				"logs": []interface{}{
					"Program log: AnchorError occurred. Error Code: ExceededSlippage. Error Number: 6004. Error Message: Too little output.",
				},
			},
		}
	})
	client := newTestClient(t, f)

	payer := solana.NewWallet()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{solana.NewInstruction(solana.SystemProgramID, solana.AccountMetaSlice{
			solana.Meta(payer.PublicKey()).WRITE().SIGNER(),
		}, []byte{0})},
		solana.Hash{},
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)
	_, err = tx.Sign(func(solana.PublicKey) *solana.PrivateKey { return &payer.PrivateKey })
	require.NoError(t, err)

	_, err = client.SendTransaction(context.Background(), tx)
	var sendErr *blockchain.SendError
	require.True(t, errors.As(err, &sendErr))
	assert.Contains(t, sendErr.Detail, "ExceededSlippage")
	assert.Contains(t, sendErr.Detail, "6004")
}

func TestParseAnchorErrorLog(t *testing.T) {
	got := ParseAnchorErrorLog("Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported.")
	assert.Equal(t, AnchorError{Code: 101, Name: "InstructionFallbackNotFound", Msg: "Fallback functions are not supported"}, got)
}
