package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lasersell/lasersell/internal/config"
	"github.com/lasersell/lasersell/internal/events"
)

type autoSellJob struct {
	positionID   uint64
	mint         solana.PublicKey
	tokenProgram string
	tokens       uint64
	profitUnits  int64
	reason       string
	unsignedTx   string
	refresh      *refreshQueue
}

type sellResult struct {
	signature   string
	attempts    int
	slippageBps uint16
}

func (e *Engine) runAutoSell(ctx context.Context, job autoSellJob) {
	defer e.inflight.release(job.positionID, job.refresh)

	logger := e.logger.With(
		zap.String("exec_id", uuid.NewString()),
		zap.String("mint", job.mint.String()),
		zap.Uint64("position_id", job.positionID))

	program, err := e.resolveTokenProgram(ctx, job.mint, job.tokenProgram)
	if err != nil {
		logger.Warn("Token program lookup failed", zap.String("event", "token_program_resolve_failed"), zap.Error(err))
		e.sink.Emit(events.SessionError{Mint: job.mint, Error: err.Error()})
		return
	}

	e.sink.Emit(events.SessionStarted{Mint: job.mint, TokenProgram: program, StartedAtMS: nowMS()})
	e.sink.Emit(events.PositionTokensUpdated{Mint: job.mint, Tokens: job.tokens})

	reason := CanonicalSellReason(job.reason)
	logger.Info("📤 Sell scheduled",
		zap.String("event", "sell_scheduled"),
		zap.String("reason", reason),
		zap.Int64("profit_lamports", job.profitUnits))
	e.sink.Emit(events.SellScheduled{Mint: job.mint, Reason: reason, ProfitLamports: job.profitUnits})

	result, err := e.executeWithRetries(ctx, logger, job, e.SellConfig())
	if err != nil {
		logger.Error("Auto-sell failed", zap.String("event", "autosell_failed"), zap.Error(err))
		e.sink.Emit(events.SessionError{Mint: job.mint, Error: err.Error()})
		return
	}

	logger.Info("✅ Sell complete",
		zap.String("event", "sell_complete"),
		zap.String("signature", result.signature),
		zap.Int("attempts", result.attempts),
		zap.Uint16("slippage_bps", result.slippageBps))
	e.sink.Emit(events.SellComplete{
		Mint:        job.mint,
		Signature:   result.signature,
		Reason:      reason,
		SlippageBps: result.slippageBps,
	})
	e.sink.Emit(events.SessionClosed{Mint: job.mint})
	e.store.Remove(job.mint)
}

// executeWithRetries signs and submits the current transaction. On failure it
// bumps slippage, asks the server for a rebuilt transaction and tries again
// until cfg.MaxRetries refreshes are used.
func (e *Engine) executeWithRetries(ctx context.Context, logger *zap.Logger, job autoSellJob, cfg config.SellConfig) (sellResult, error) {
	var (
		attempt       = 1
		refreshesUsed = 0
		slippage      = cfg.SlippagePadBps
		unsignedTx    = job.unsignedTx
		confirmWait   = time.Duration(cfg.ConfirmTimeoutSec) * time.Second
	)

	for {
		e.sink.Emit(events.SellAttempt{Mint: job.mint, Attempt: attempt, SlippageBps: slippage})

		signature, err := e.signSendConfirm(ctx, unsignedTx, confirmWait)
		if err == nil {
			return sellResult{signature: signature, attempts: attempt, slippageBps: slippage}, nil
		}

		phase := ClassifyPhase(err)
		logger.Warn("Sell attempt failed",
			zap.String("event", "sell_attempt_failed"),
			zap.Int("attempt", attempt),
			zap.String("phase", phase),
			zap.Uint16("slippage_bps", slippage),
			zap.Error(err))

		if refreshesUsed >= cfg.MaxRetries {
			return sellResult{}, fmt.Errorf("autosell failed for position_id %d after %d attempts: %w",
				job.positionID, attempt, err)
		}

		e.sink.Emit(events.SellRetry{Mint: job.mint, Attempt: attempt, Phase: phase, Error: err.Error()})

		slippage = BumpSlippage(slippage, refreshesUsed, cfg)
		refreshesUsed++

		requested := slippage
		if err := e.stream.RequestExitSignal(job.positionID, &requested); err != nil {
			return sellResult{}, fmt.Errorf("request sell refresh over stream: %w", err)
		}

		next, err := job.refresh.next(ctx, e.refreshTimeout, job.positionID)
		if err != nil {
			return sellResult{}, err
		}
		unsignedTx = next
		attempt++
	}
}

func (e *Engine) signSendConfirm(ctx context.Context, unsignedTx string, confirmWait time.Duration) (string, error) {
	tx, err := e.signer.SignUnsignedTx(unsignedTx)
	if err != nil {
		return "", err
	}
	signature, err := e.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return "", err
	}
	if err := e.rpc.AwaitConfirmation(ctx, signature, confirmWait); err != nil {
		return "", err
	}
	return signature.String(), nil
}

// resolveTokenProgram prefers the server hint and falls back to the owner of
// the mint account.
func (e *Engine) resolveTokenProgram(ctx context.Context, mint solana.PublicKey, hint string) (solana.PublicKey, error) {
	if hint != "" {
		if program, err := solana.PublicKeyFromBase58(hint); err == nil {
			return program, nil
		}
	}
	owner, err := e.rpc.GetAccountOwner(ctx, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("resolve token program for %s: %w", mint, err)
	}
	return owner, nil
}
