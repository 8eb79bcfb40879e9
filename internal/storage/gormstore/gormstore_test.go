package gormstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lasersell/lasersell/internal/storage/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	s, err := Open(path, zaptest.NewLogger(t), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndListSells(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, sig := range []string{"sig-1", "sig-2", "sig-3"} {
		require.NoError(t, s.RecordSell(ctx, &models.Sell{
			Mint:        "Mint1111",
			Signature:   sig,
			Reason:      "target_profit",
			Attempts:    i + 1,
			SlippageBps: 2000,
			SlippagePct: decimal.NewFromInt(20),
		}))
	}

	sells, err := s.ListSells(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sells, 2)
	assert.Equal(t, "sig-3", sells[0].Signature)
	assert.Equal(t, "sig-2", sells[1].Signature)
	assert.Equal(t, 3, sells[0].Attempts)
	assert.True(t, sells[0].SlippagePct.Equal(decimal.NewFromInt(20)))
	assert.NotZero(t, sells[0].ID)
}

func TestStore_DuplicateSignatureRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordSell(ctx, &models.Sell{Mint: "m", Signature: "dup"}))
	assert.Error(t, s.RecordSell(ctx, &models.Sell{Mint: "m", Signature: "dup"}))
}

func TestStore_RecordAndListErrors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordError(ctx, &models.SessionError{Mint: "m", Message: "first"}))
	require.NoError(t, s.RecordError(ctx, &models.SessionError{Mint: "m", Message: "second"}))

	errs, err := s.ListErrors(ctx, 0)
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, "second", errs[0].Message)
}

func TestStore_ReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	logger := zaptest.NewLogger(t)

	s, err := Open(path, logger, false)
	require.NoError(t, err)
	require.NoError(t, s.RecordSell(context.Background(), &models.Sell{Mint: "m", Signature: "persisted"}))
	require.NoError(t, s.Close())

	s, err = Open(path, logger, false)
	require.NoError(t, err)
	defer s.Close()

	sells, err := s.ListSells(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sells, 1)
	assert.Equal(t, "persisted", sells[0].Signature)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("  ", zaptest.NewLogger(t), false)
	assert.Error(t, err)
}

func TestIsPostgresDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want bool
	}{
		{"postgres://user@localhost/db", true},
		{"postgresql://user@localhost/db", true},
		{"data/journal.db", false},
		{"file::memory:", false},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPostgresDSN(tt.dsn))
		})
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, maxListLimit, clampLimit(0))
	assert.Equal(t, maxListLimit, clampLimit(-3))
	assert.Equal(t, 10, clampLimit(10))
	assert.Equal(t, maxListLimit, clampLimit(maxListLimit+1))
}
