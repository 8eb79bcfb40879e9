package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lasersell/lasersell/internal/events"
	"github.com/lasersell/lasersell/internal/storage/models"
)

type fakeJournal struct {
	mu      sync.Mutex
	sells   []*models.Sell
	errs    []*models.SessionError
	sellErr error
}

func (f *fakeJournal) RecordSell(_ context.Context, sell *models.Sell) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sellErr != nil {
		return f.sellErr
	}
	f.sells = append(f.sells, sell)
	return nil
}

func (f *fakeJournal) RecordError(_ context.Context, rec *models.SessionError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, rec)
	return nil
}

func (f *fakeJournal) ListSells(context.Context, int) ([]*models.Sell, error) { return f.sells, nil }

func (f *fakeJournal) ListErrors(context.Context, int) ([]*models.SessionError, error) {
	return f.errs, nil
}

func (f *fakeJournal) Close() error { return nil }

func TestRecorder_SellCompleteCarriesAttempts(t *testing.T) {
	j := &fakeJournal{}
	r := NewRecorder(j, zaptest.NewLogger(t))
	ctx := context.Background()
	mint := solana.NewWallet().PublicKey()

	require.NoError(t, r.Handle(ctx, events.SellAttempt{Mint: mint, Attempt: 1, SlippageBps: 2000}))
	require.NoError(t, r.Handle(ctx, events.SellAttempt{Mint: mint, Attempt: 2, SlippageBps: 2020}))
	require.NoError(t, r.Handle(ctx, events.SellComplete{Mint: mint, Signature: "sig", Reason: "stop_loss", SlippageBps: 2020}))

	require.Len(t, j.sells, 1)
	sell := j.sells[0]
	assert.Equal(t, mint.String(), sell.Mint)
	assert.Equal(t, "stop_loss", sell.Reason)
	assert.Equal(t, 2, sell.Attempts)
	assert.True(t, sell.SlippagePct.Equal(decimal.RequireFromString("20.2")))
}

func TestRecorder_SessionClosedResetsAttempts(t *testing.T) {
	j := &fakeJournal{}
	r := NewRecorder(j, zaptest.NewLogger(t))
	ctx := context.Background()
	mint := solana.NewWallet().PublicKey()

	require.NoError(t, r.Handle(ctx, events.SellAttempt{Mint: mint, Attempt: 3}))
	require.NoError(t, r.Handle(ctx, events.SessionClosed{Mint: mint}))
	require.NoError(t, r.Handle(ctx, events.SellComplete{Mint: mint, Signature: "sig"}))

	require.Len(t, j.sells, 1)
	assert.Zero(t, j.sells[0].Attempts)
}

func TestRecorder_SessionError(t *testing.T) {
	j := &fakeJournal{}
	r := NewRecorder(j, zaptest.NewLogger(t))

	require.NoError(t, r.Handle(context.Background(), events.SessionError{Error: "boom"}))
	require.Len(t, j.errs, 1)
	assert.Equal(t, "boom", j.errs[0].Message)
	assert.Equal(t, solana.PublicKey{}.String(), j.errs[0].Mint)
}

func TestRecorder_JournalFailureWrapped(t *testing.T) {
	j := &fakeJournal{sellErr: errors.New("disk full")}
	r := NewRecorder(j, zaptest.NewLogger(t))

	err := r.Handle(context.Background(), events.SellComplete{Signature: "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record sell abc")
	assert.Contains(t, err.Error(), "disk full")
}

func TestRecorder_IgnoresOtherEvents(t *testing.T) {
	j := &fakeJournal{}
	r := NewRecorder(j, zaptest.NewLogger(t))

	require.NoError(t, r.Handle(context.Background(), events.Heartbeat{}))
	assert.Empty(t, j.sells)
	assert.Empty(t, j.errs)
}

func TestSlippagePercent(t *testing.T) {
	assert.Equal(t, "25", SlippagePercent(2500).String())
	assert.Equal(t, "0.2", SlippagePercent(20).String())
	assert.Equal(t, "0", SlippagePercent(0).String())
}
