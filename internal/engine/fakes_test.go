package engine

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lasersell/lasersell/internal/config"
	"github.com/lasersell/lasersell/internal/events"
	"github.com/lasersell/lasersell/internal/exitapi"
	"github.com/lasersell/lasersell/internal/session"
	"github.com/lasersell/lasersell/internal/stream"
)

type refreshRequest struct {
	positionID  uint64
	slippageBps *uint16
}

type fakeStream struct {
	mu         sync.Mutex
	strategies []stream.StrategyConfigMsg
	requests   []refreshRequest
	updateErr  error
	requestErr error
	onRequest  func(positionID uint64, slippageBps uint16)
}

func (f *fakeStream) UpdateStrategy(strategy stream.StrategyConfigMsg, _ uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strategies = append(f.strategies, strategy)
	return f.updateErr
}

func (f *fakeStream) RequestExitSignal(positionID uint64, slippageBps *uint16) error {
	f.mu.Lock()
	f.requests = append(f.requests, refreshRequest{positionID: positionID, slippageBps: slippageBps})
	err, hook := f.requestErr, f.onRequest
	f.mu.Unlock()
	if err == nil && hook != nil {
		hook(positionID, *slippageBps)
	}
	return err
}

func (f *fakeStream) refreshRequests() []refreshRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]refreshRequest(nil), f.requests...)
}

type fakeExitAPI struct {
	mu       sync.Mutex
	requests []exitapi.SellRequest
	tx       string
	err      error
}

func (f *fakeExitAPI) BuildSellTx(_ context.Context, req exitapi.SellRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.tx, f.err
}

func (f *fakeExitAPI) hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// fakeSigner derives a deterministic signature from the payload.
type fakeSigner struct {
	mu     sync.Mutex
	signed []string
	err    error
}

func sigFor(payload string) solana.Signature {
	var sig solana.Signature
	sum := sha256.Sum256([]byte(payload))
	copy(sig[:], sum[:])
	return sig
}

func (f *fakeSigner) SignUnsignedTx(payload string) (*solana.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.signed = append(f.signed, payload)
	return &solana.Transaction{Signatures: []solana.Signature{sigFor(payload)}}, nil
}

func (f *fakeSigner) payloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.signed...)
}

type fakeRPC struct {
	mu          sync.Mutex
	sendErrs    []error
	confirmErrs []error
	sends       int
	owner       solana.PublicKey
	ownerErr    error
	ownerCalls  int
	lamports    uint64
	usd1        uint64
	balanceErr  error
	confirmGate chan struct{}
}

func (f *fakeRPC) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return solana.Signature{}, err
		}
	}
	return tx.Signatures[0], nil
}

func (f *fakeRPC) AwaitConfirmation(ctx context.Context, _ solana.Signature, _ time.Duration) error {
	f.mu.Lock()
	gate := f.confirmGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.confirmErrs) > 0 {
		err := f.confirmErrs[0]
		f.confirmErrs = f.confirmErrs[1:]
		return err
	}
	return nil
}

func (f *fakeRPC) GetAccountOwner(context.Context, solana.PublicKey) (solana.PublicKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ownerCalls++
	return f.owner, f.ownerErr
}

func (f *fakeRPC) GetBalance(context.Context, solana.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lamports, f.balanceErr
}

func (f *fakeRPC) GetTokenBalanceByMint(context.Context, solana.PublicKey, solana.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usd1, f.balanceErr
}

func (f *fakeRPC) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Emit(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) all() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

func (s *recordingSink) ofType(types ...events.EventType) []events.Event {
	want := make(map[events.EventType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []events.Event
	for _, e := range s.all() {
		if want[e.Type()] {
			out = append(out, e)
		}
	}
	return out
}

func (s *recordingSink) has(t events.EventType) bool {
	return len(s.ofType(t)) > 0
}

type harness struct {
	engine *Engine
	store  *session.Store
	stream *fakeStream
	exit   *fakeExitAPI
	signer *fakeSigner
	rpc    *fakeRPC
	sink   *recordingSink
	wallet solana.PublicKey
}

func testSellConfig() config.SellConfig {
	return config.SellConfig{
		SlippagePadBps:            2000,
		SlippageRetryBumpBpsFirst: 20,
		SlippageRetryBumpBpsNext:  40,
		SlippageMaxBps:            2500,
		ConfirmTimeoutSec:         1,
		MaxRetries:                2,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  session.NewStore(),
		stream: &fakeStream{},
		exit:   &fakeExitAPI{tx: "manual-tx"},
		signer: &fakeSigner{},
		rpc:    &fakeRPC{owner: solana.TokenProgramID},
		sink:   &recordingSink{},
		wallet: solana.NewWallet().PublicKey(),
	}
	e, err := New(Deps{
		Logger:   zaptest.NewLogger(t),
		Store:    h.store,
		Stream:   h.stream,
		ExitAPI:  h.exit,
		Signer:   h.signer,
		RPC:      h.rpc,
		Sink:     h.sink,
		Wallet:   h.wallet,
		Strategy: config.StrategyConfig{TargetProfit: 20, DeadlineTimeoutSec: 60},
		Sell:     testSellConfig(),
	})
	require.NoError(t, err)
	e.refreshTimeout = 200 * time.Millisecond
	h.engine = e
	return h
}

// wait blocks until every detached executor has returned.
func (h *harness) wait(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		h.engine.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sell executors did not finish")
	}
}

var errBlockhash = errors.New("blockhash not found")

func strPtr(s string) *string { return &s }
