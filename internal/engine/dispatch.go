package engine

import (
	"context"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/lasersell/lasersell/internal/events"
	"github.com/lasersell/lasersell/internal/market"
	"github.com/lasersell/lasersell/internal/session"
	"github.com/lasersell/lasersell/internal/stream"
)

func (e *Engine) handleStreamEvent(ctx context.Context, ev stream.Event) {
	switch ev := ev.(type) {
	case stream.ConnectionStatusEvent:
		e.sink.Emit(events.SolanaWsStatus{Connected: ev.Connected})

	case stream.BalanceUpdateEvent:
		mint, ok := e.parseMint(ev.Mint, "balance_update_invalid_mint")
		if !ok {
			return
		}
		e.store.UpdateTokens(mint, deref(ev.TokenProgram), ev.Tokens)
		e.sink.Emit(events.PositionTokensUpdated{Mint: mint, Tokens: ev.Tokens})

	case stream.PositionOpenedEvent:
		e.handlePositionOpened(ev)

	case stream.PositionClosedEvent:
		e.handlePositionClosed(ev)

	case stream.ExitSignalEvent:
		e.handleExitSignal(ctx, ev)

	default:
		e.logger.Debug("Ignoring stream event", zap.Any("event", ev))
	}
}

func (e *Engine) handlePositionOpened(ev stream.PositionOpenedEvent) {
	mint, ok := e.parseMint(ev.Mint, "position_opened_invalid_mint")
	if !ok {
		return
	}

	parsed := e.applyMarketContext(mint, ev.MarketContext)
	tokens := ev.Tokens
	e.upsertStreamState(mint, e.contextOrStored(mint, parsed), &tokens)
	e.store.RecordPosition(mint, session.PositionSnapshot{
		PositionID:    ev.PositionID,
		TokenProgram:  deref(ev.TokenProgram),
		Tokens:        ev.Tokens,
		MarketContext: parsed,
	})

	tokenAccount, err := solana.PublicKeyFromBase58(ev.TokenAccount)
	if err != nil {
		tokenAccount = solana.PublicKey{}
	}

	e.logger.Info("🪙 Position opened",
		zap.String("event", "position_opened"),
		zap.String("mint", mint.String()),
		zap.Uint64("position_id", ev.PositionID),
		zap.Uint64("tokens", ev.Tokens))

	e.sink.Emit(events.MintDetected{Mint: mint, TokenAccount: tokenAccount})
	e.sink.Emit(events.PositionTokensUpdated{Mint: mint, Tokens: ev.Tokens})
}

func (e *Engine) handlePositionClosed(ev stream.PositionClosedEvent) {
	mint, ok := e.parseMint(ev.Mint, "position_closed_invalid_mint")
	if !ok {
		return
	}

	e.store.RemovePositionIf(mint, ev.PositionID)
	e.store.ClearMarket(mint)
	e.inflight.cancel(ev.PositionID)

	e.logger.Debug("Position closed",
		zap.String("event", "position_closed"),
		zap.String("mint", mint.String()),
		zap.Uint64("position_id", ev.PositionID),
		zap.String("reason", ev.Reason))

	e.sink.Emit(events.SessionClosed{Mint: mint})
}

// handleExitSignal records the signal unconditionally, then schedules a sell
// unless paused. A signal for a position with a running executor only feeds
// its refresh queue.
func (e *Engine) handleExitSignal(ctx context.Context, ev stream.ExitSignalEvent) {
	mint, ok := e.parseMint(ev.Mint, "exit_signal_invalid_mint")
	if !ok {
		return
	}

	parsed := e.applyMarketContext(mint, ev.MarketContext)
	marketCtx := e.contextOrStored(mint, parsed)
	tokens := ev.PositionTokens
	e.upsertStreamState(mint, marketCtx, &tokens)
	e.store.RecordPosition(mint, session.PositionSnapshot{
		PositionID:    ev.PositionID,
		TokenProgram:  deref(ev.TokenProgram),
		Tokens:        ev.PositionTokens,
		MarketContext: marketCtx,
	})

	if e.paused.Load() {
		e.logger.Debug("Exit signal ignored while paused",
			zap.String("mint", mint.String()),
			zap.Uint64("position_id", ev.PositionID))
		return
	}

	refresh, started := e.inflight.acquire(ev.PositionID)
	if !started {
		refresh.push(ev.UnsignedTxB64)
		e.logger.Debug("Forwarded refreshed sell tx",
			zap.String("event", "sell_refresh_forwarded"),
			zap.Uint64("position_id", ev.PositionID))
		return
	}

	job := autoSellJob{
		positionID:   ev.PositionID,
		mint:         mint,
		tokenProgram: deref(ev.TokenProgram),
		tokens:       ev.PositionTokens,
		profitUnits:  ev.ProfitUnits,
		reason:       ev.Reason,
		unsignedTx:   ev.UnsignedTxB64,
		refresh:      refresh,
	}
	e.spawn(ctx, func(ctx context.Context) { e.runAutoSell(ctx, job) })
}

// applyMarketContext stores msg for mint. A parse failure is reported as a
// session error and yields nil.
func (e *Engine) applyMarketContext(mint solana.PublicKey, msg *stream.MarketContextMsg) *market.Context {
	parsed, err := e.store.UpsertMarketContext(mint, msg)
	if err != nil {
		e.logger.Warn("Invalid market context",
			zap.String("event", "market_context_invalid"),
			zap.String("mint", mint.String()),
			zap.Error(err))
		e.sink.Emit(events.SessionError{Mint: mint, Error: err.Error()})
		return nil
	}
	return parsed
}

func (e *Engine) contextOrStored(mint solana.PublicKey, parsed *market.Context) *market.Context {
	if parsed != nil {
		return parsed
	}
	stored, _ := e.store.MarketContext(mint)
	return stored
}

func (e *Engine) upsertStreamState(mint solana.PublicKey, ctx *market.Context, tokens *uint64) {
	state, ok := e.store.UpsertStreamState(mint, ctx, tokens)
	if !ok {
		return
	}
	e.sink.Emit(events.SessionStreamState{Mint: mint, State: state})
}

func (e *Engine) parseMint(raw, event string) (solana.PublicKey, bool) {
	mint, err := solana.PublicKeyFromBase58(strings.TrimSpace(raw))
	if err != nil {
		e.logger.Warn("Dropping event with invalid mint",
			zap.String("event", event),
			zap.String("mint", raw),
			zap.Error(err))
		return solana.PublicKey{}, false
	}
	return mint, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
