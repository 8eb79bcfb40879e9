package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lasersell/lasersell/internal/config"
	"github.com/lasersell/lasersell/internal/events"
	"github.com/lasersell/lasersell/internal/exitapi"
	"github.com/lasersell/lasersell/internal/market"
	"github.com/lasersell/lasersell/internal/session"
)

const manualReason = "manual"

var (
	ErrNoPosition       = errors.New("manual sell failed: no position data for mint")
	ErrZeroTokens       = errors.New("manual sell failed: position token balance is 0")
	ErrManualZeroAmount = errors.New("manual sell failed: amount_tokens must be > 0")
)

// requestManualSell validates the snapshot synchronously and spawns a single
// build-sign-submit-confirm attempt. There is no refresh loop.
func (e *Engine) requestManualSell(ctx context.Context, mint solana.PublicKey) {
	snap, ok := e.store.Position(mint)
	if !ok {
		e.sink.Emit(events.SessionError{Mint: mint, Error: ErrNoPosition.Error()})
		return
	}
	if snap.Tokens == 0 {
		e.sink.Emit(events.SessionError{Mint: mint, Error: ErrZeroTokens.Error()})
		return
	}

	marketCtx := snap.MarketContext
	if marketCtx == nil {
		marketCtx, _ = e.store.MarketContext(mint)
	}
	cfg := e.SellConfig()

	e.spawn(ctx, func(ctx context.Context) { e.runManualSell(ctx, mint, snap, marketCtx, cfg) })
}

func (e *Engine) runManualSell(ctx context.Context, mint solana.PublicKey, snap session.PositionSnapshot, marketCtx *market.Context, cfg config.SellConfig) {
	logger := e.logger.With(
		zap.String("exec_id", uuid.NewString()),
		zap.String("mint", mint.String()),
		zap.Uint64("position_id", snap.PositionID))

	program, err := e.resolveTokenProgram(ctx, mint, snap.TokenProgram)
	if err != nil {
		e.sink.Emit(events.SessionError{Mint: mint, Error: err.Error()})
		return
	}

	slippage := cfg.SlippagePadBps
	e.sink.Emit(events.SessionStarted{Mint: mint, TokenProgram: program, StartedAtMS: nowMS()})
	e.sink.Emit(events.PositionTokensUpdated{Mint: mint, Tokens: snap.Tokens})
	logger.Info("📤 Sell scheduled",
		zap.String("event", "sell_scheduled"),
		zap.String("reason", manualReason),
		zap.Int64("profit_lamports", 0))
	e.sink.Emit(events.SellScheduled{Mint: mint, Reason: manualReason})
	e.sink.Emit(events.SellAttempt{Mint: mint, Attempt: 1, SlippageBps: slippage})

	signature, err := e.manualSellOnce(ctx, mint, snap.Tokens, slippage, marketCtx,
		time.Duration(cfg.ConfirmTimeoutSec)*time.Second)
	if err != nil {
		logger.Error("Manual sell failed", zap.String("event", "manual_sell_failed"), zap.Error(err))
		e.sink.Emit(events.SessionError{Mint: mint, Error: err.Error()})
		return
	}

	logger.Info("✅ Sell complete",
		zap.String("event", "sell_complete"),
		zap.String("signature", signature),
		zap.Uint16("slippage_bps", slippage))
	e.sink.Emit(events.SellComplete{Mint: mint, Signature: signature, Reason: manualReason, SlippageBps: slippage})
	e.sink.Emit(events.SessionClosed{Mint: mint})
}

func (e *Engine) manualSellOnce(ctx context.Context, mint solana.PublicKey, tokens uint64, slippage uint16, marketCtx *market.Context, confirmWait time.Duration) (string, error) {
	req, err := BuildManualSellRequest(mint, e.wallet, tokens, slippage, marketCtx, e.stable)
	if err != nil {
		return "", err
	}
	unsignedTx, err := e.exitAPI.BuildSellTx(ctx, req)
	if err != nil {
		return "", fmt.Errorf("build sell tx: %w", err)
	}
	return e.signSendConfirm(ctx, unsignedTx, confirmWait)
}

// BuildManualSellRequest builds the exit api request for selling the whole
// position at the given slippage.
func BuildManualSellRequest(
	mint, owner solana.PublicKey,
	amountTokens uint64,
	slippageBps uint16,
	marketCtx *market.Context,
	stable solana.PublicKey,
) (exitapi.SellRequest, error) {
	if amountTokens == 0 {
		return exitapi.SellRequest{}, ErrManualZeroAmount
	}

	output := string(market.InferSellOutput(marketCtx, stable))
	req := exitapi.SellRequest{
		Mint:         mint.String(),
		UserPubkey:   owner.String(),
		AmountTokens: amountTokens,
		SlippageBps:  &slippageBps,
		Output:       &output,
	}
	if marketCtx != nil {
		msg := market.ToMsg(*marketCtx)
		req.MarketContext = &msg
	}
	return req, nil
}
