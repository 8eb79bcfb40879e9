// internal/session/store.go
package session

import (
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/lasersell/lasersell/internal/market"
	"github.com/lasersell/lasersell/internal/stream"
)

// UnknownPositionID marks a snapshot created before the server assigned an id.
const UnknownPositionID uint64 = 0

// PositionSnapshot is the latest known holding for a mint.
type PositionSnapshot struct {
	PositionID uint64
	// TokenProgram is the server-provided hint; empty when unknown.
	TokenProgram  string
	Tokens        uint64
	MarketContext *market.Context
}

// Store holds per-mint market contexts, stream states and position
// snapshots. No method blocks or performs I/O.
type Store struct {
	mu        sync.RWMutex
	contexts  map[solana.PublicKey]market.Context
	states    map[solana.PublicKey]*MemoryStreamState
	positions map[solana.PublicKey]PositionSnapshot
}

func NewStore() *Store {
	return &Store{
		contexts:  make(map[solana.PublicKey]market.Context),
		states:    make(map[solana.PublicKey]*MemoryStreamState),
		positions: make(map[solana.PublicKey]PositionSnapshot),
	}
}

// UpsertMarketContext parses msg and stores it for mint. A nil msg is a
// no-op. On parse failure the existing context is left untouched.
func (s *Store) UpsertMarketContext(mint solana.PublicKey, msg *stream.MarketContextMsg) (*market.Context, error) {
	if msg == nil {
		return nil, nil
	}
	parsed, err := market.FromMsg(msg)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.contexts[mint] = parsed
	s.mu.Unlock()
	return &parsed, nil
}

// MarketContext returns the stored context for mint.
func (s *Store) MarketContext(mint solana.PublicKey) (*market.Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.contexts[mint]
	if !ok {
		return nil, false
	}
	return &ctx, true
}

// UpsertStreamState creates the stream state for mint, or replaces it when the
// market kind differs, then records tokens when given. Without a context and
// without an existing state nothing happens and false is returned.
func (s *Store) UpsertStreamState(mint solana.PublicKey, ctx *market.Context, tokens *uint64) (StreamState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, exists := s.states[mint]
	switch {
	case ctx != nil && (!exists || state.MarketType() != ctx.Type):
		state = NewMemoryStreamState(ctx.Type)
		s.states[mint] = state
	case !exists:
		return nil, false
	}
	if tokens != nil {
		state.SetPositionTokens(*tokens)
	}
	return state, true
}

// StreamState returns the live state handle for mint.
func (s *Store) StreamState(mint solana.PublicKey) (StreamState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[mint]
	if !ok {
		return nil, false
	}
	return state, true
}

// RecordPosition replaces the snapshot for mint.
func (s *Store) RecordPosition(mint solana.PublicKey, snapshot PositionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[mint] = snapshot
}

// Position returns a copy of the snapshot for mint.
func (s *Store) Position(mint solana.PublicKey) (PositionSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.positions[mint]
	return snap, ok
}

// UpdateTokens applies a balance update, creating a snapshot with an unknown
// position id if none exists. A non-empty tokenProgram replaces the stored hint.
func (s *Store) UpdateTokens(mint solana.PublicKey, tokenProgram string, tokens uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.positions[mint]
	if tokenProgram != "" {
		snap.TokenProgram = tokenProgram
	}
	snap.Tokens = tokens
	s.positions[mint] = snap

	if state, ok := s.states[mint]; ok {
		state.SetPositionTokens(tokens)
	}
}

// RemovePositionIf removes the snapshot for mint when its id matches
// positionID or is still unknown.
func (s *Store) RemovePositionIf(mint solana.PublicKey, positionID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.positions[mint]
	if !ok {
		return false
	}
	if snap.PositionID != positionID && snap.PositionID != UnknownPositionID {
		return false
	}
	delete(s.positions, mint)
	return true
}

// ClearMarket drops the market context and stream state for mint.
func (s *Store) ClearMarket(mint solana.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, mint)
	delete(s.states, mint)
}

// Remove drops everything held for mint.
func (s *Store) Remove(mint solana.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, mint)
	delete(s.states, mint)
	delete(s.positions, mint)
}

// Snapshots returns a copy of all position snapshots.
func (s *Store) Snapshots() map[solana.PublicKey]PositionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[solana.PublicKey]PositionSnapshot, len(s.positions))
	for mint, snap := range s.positions {
		out[mint] = snap
	}
	return out
}
