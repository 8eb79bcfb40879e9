// internal/storage/recorder.go
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lasersell/lasersell/internal/events"
	"github.com/lasersell/lasersell/internal/storage/models"
)

var bpsPerPercent = decimal.NewFromInt(100)

// Recorder is an events.Handler that writes sell outcomes to a Journal.
type Recorder struct {
	journal Journal
	logger  *zap.Logger

	mu       sync.Mutex
	attempts map[solana.PublicKey]int
}

func NewRecorder(journal Journal, logger *zap.Logger) *Recorder {
	return &Recorder{
		journal:  journal,
		logger:   logger.Named("journal"),
		attempts: make(map[solana.PublicKey]int),
	}
}

// Types lists the notifications the recorder subscribes to.
func (r *Recorder) Types() []events.EventType {
	return []events.EventType{
		events.TypeSellAttempt,
		events.TypeSellComplete,
		events.TypeSessionError,
		events.TypeSessionClosed,
	}
}

func (r *Recorder) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.SellAttempt:
		r.mu.Lock()
		r.attempts[e.Mint] = e.Attempt
		r.mu.Unlock()
	case events.SessionClosed:
		r.mu.Lock()
		delete(r.attempts, e.Mint)
		r.mu.Unlock()
	case events.SellComplete:
		r.mu.Lock()
		attempts := r.attempts[e.Mint]
		r.mu.Unlock()
		sell := &models.Sell{
			Mint:        e.Mint.String(),
			Signature:   e.Signature,
			Reason:      e.Reason,
			Attempts:    attempts,
			SlippageBps: e.SlippageBps,
			SlippagePct: SlippagePercent(e.SlippageBps),
		}
		if err := r.journal.RecordSell(ctx, sell); err != nil {
			return fmt.Errorf("record sell %s: %w", e.Signature, err)
		}
		r.logger.Debug("sell_recorded",
			zap.String("mint", sell.Mint),
			zap.String("signature", sell.Signature))
	case events.SessionError:
		rec := &models.SessionError{Mint: e.Mint.String(), Message: e.Error}
		if err := r.journal.RecordError(ctx, rec); err != nil {
			return fmt.Errorf("record session error: %w", err)
		}
	}
	return nil
}

// SlippagePercent converts basis points to a percentage, 2500 -> 25.
func SlippagePercent(bps uint16) decimal.Decimal {
	return decimal.NewFromInt(int64(bps)).Div(bpsPerPercent)
}
