// internal/session/stream_state.go
package session

import (
	"sync"
	"sync/atomic"

	"github.com/lasersell/lasersell/internal/market"
)

// CurveSnapshot is the latest observed bonding-curve account state.
type CurveSnapshot struct {
	Complete bool
}

// StreamState is the live per-mint pricing state shared between the engine
// and its observers. Implementations must be safe for concurrent use.
type StreamState interface {
	MarketType() market.Type
	LatestCurve() (CurveSnapshot, bool)
	LatestFeeBps() uint64
	// DownPerSlotP95 is the 95th percentile per-slot price decline.
	DownPerSlotP95() uint64
	PositionTokens() (uint64, bool)
	// QuoteSellProceeds returns the cached proceeds quote if it was computed
	// for exactly tokens.
	QuoteSellProceeds(tokens uint64) (uint64, bool)
}

// MemoryStreamState is the in-memory StreamState kept for every market kind.
type MemoryStreamState struct {
	marketType market.Type

	mu             sync.RWMutex
	curve          *CurveSnapshot
	tokens         uint64
	hasTokens      bool
	quotedTokens   uint64
	quotedProceeds uint64
	hasQuote       bool

	feeBps         atomic.Uint64
	downPerSlotP95 atomic.Uint64
}

var _ StreamState = (*MemoryStreamState)(nil)

func NewMemoryStreamState(marketType market.Type) *MemoryStreamState {
	return &MemoryStreamState{marketType: marketType}
}

func (s *MemoryStreamState) MarketType() market.Type { return s.marketType }

func (s *MemoryStreamState) LatestCurve() (CurveSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.curve == nil {
		return CurveSnapshot{}, false
	}
	return *s.curve, true
}

func (s *MemoryStreamState) SetCurve(curve CurveSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.curve = &curve
}

func (s *MemoryStreamState) LatestFeeBps() uint64 { return s.feeBps.Load() }

func (s *MemoryStreamState) SetFeeBps(bps uint64) { s.feeBps.Store(bps) }

func (s *MemoryStreamState) DownPerSlotP95() uint64 { return s.downPerSlotP95.Load() }

func (s *MemoryStreamState) SetDownPerSlotP95(v uint64) { s.downPerSlotP95.Store(v) }

func (s *MemoryStreamState) PositionTokens() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens, s.hasTokens
}

func (s *MemoryStreamState) SetPositionTokens(tokens uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = tokens
	s.hasTokens = true
}

// SetQuote caches a sell-proceeds quote for a token amount.
func (s *MemoryStreamState) SetQuote(tokens, proceeds uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotedTokens = tokens
	s.quotedProceeds = proceeds
	s.hasQuote = true
}

func (s *MemoryStreamState) QuoteSellProceeds(tokens uint64) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasQuote || s.quotedTokens != tokens {
		return 0, false
	}
	return s.quotedProceeds, true
}
