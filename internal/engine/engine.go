// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/lasersell/lasersell/internal/blockchain"
	"github.com/lasersell/lasersell/internal/config"
	"github.com/lasersell/lasersell/internal/events"
	"github.com/lasersell/lasersell/internal/exitapi"
	"github.com/lasersell/lasersell/internal/market"
	"github.com/lasersell/lasersell/internal/session"
	"github.com/lasersell/lasersell/internal/stream"
)

const (
	// RefreshTimeout bounds each wait for a server-rebuilt sell transaction.
	RefreshTimeout    = 1500 * time.Millisecond
	HeartbeatInterval = time.Second
)

// StreamCommander is the outbound side of the stream used by the engine.
type StreamCommander interface {
	UpdateStrategy(strategy stream.StrategyConfigMsg, deadlineTimeoutSec uint64) error
	RequestExitSignal(positionID uint64, slippageBps *uint16) error
}

// SellBuilder builds unsigned sell transactions for manual sells.
type SellBuilder interface {
	BuildSellTx(ctx context.Context, req exitapi.SellRequest) (string, error)
}

// Signer signs base64 unsigned transactions with the wallet key.
type Signer interface {
	SignUnsignedTx(unsignedTxB64 string) (*solana.Transaction, error)
}

var (
	_ StreamCommander = (*stream.Handle)(nil)
	_ SellBuilder     = (*exitapi.Client)(nil)
)

// Deps are the collaborators of an Engine.
type Deps struct {
	Logger   *zap.Logger
	Store    *session.Store
	Stream   StreamCommander
	ExitAPI  SellBuilder
	Signer   Signer
	RPC      blockchain.Client
	Sink     events.Sink
	Wallet   solana.PublicKey
	Strategy config.StrategyConfig
	Sell     config.SellConfig
	Devnet   bool
}

// Engine reacts to stream events and user commands. It owns the in-flight
// registry and the runtime copies of the strategy and sell configs.
type Engine struct {
	logger  *zap.Logger
	store   *session.Store
	stream  StreamCommander
	exitAPI SellBuilder
	signer  Signer
	rpc     blockchain.Client
	sink    events.Sink
	wallet  solana.PublicKey
	stable  solana.PublicKey

	cfgMu    sync.RWMutex
	strategy config.StrategyConfig
	sell     config.SellConfig

	paused   atomic.Bool
	inflight *inflightRegistry

	refreshTimeout    time.Duration
	heartbeatInterval time.Duration

	// tasks tracks detached sell executors. Run never waits on it; Wait
	// lets shutdown report executors that are still in flight.
	tasks   sync.WaitGroup
	running atomic.Int64
}

func New(deps Deps) (*Engine, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("engine: logger is required")
	case deps.Store == nil:
		return nil, errors.New("engine: session store is required")
	case deps.Stream == nil:
		return nil, errors.New("engine: stream commander is required")
	case deps.ExitAPI == nil:
		return nil, errors.New("engine: exit api client is required")
	case deps.Signer == nil:
		return nil, errors.New("engine: signer is required")
	case deps.RPC == nil:
		return nil, errors.New("engine: rpc client is required")
	}
	sink := deps.Sink
	if sink == nil {
		sink = events.Discard
	}

	return &Engine{
		logger:            deps.Logger.Named("engine"),
		store:             deps.Store,
		stream:            deps.Stream,
		exitAPI:           deps.ExitAPI,
		signer:            deps.Signer,
		rpc:               deps.RPC,
		sink:              sink,
		wallet:            deps.Wallet,
		stable:            market.StableMint(deps.Devnet),
		strategy:          deps.Strategy,
		sell:              deps.Sell,
		inflight:          newInflightRegistry(),
		refreshTimeout:    RefreshTimeout,
		heartbeatInterval: HeartbeatInterval,
	}, nil
}

// Run is the event loop. It returns when ctx is cancelled, the stream event
// channel closes, or a Quit command arrives. A nil or closed command channel
// leaves the loop running on stream events and the heartbeat. Sell executors
// started by the loop are detached and keep running after Run returns.
func (e *Engine) Run(ctx context.Context, streamEvents <-chan stream.Event, commands <-chan events.Command) error {
	ticker := time.NewTicker(e.heartbeatInterval)
	defer ticker.Stop()

	e.logger.Info("🚀 Engine started", zap.String("wallet", e.wallet.String()))

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-streamEvents:
			if !ok {
				e.logger.Info("Stream event channel closed; stopping engine")
				return nil
			}
			e.handleStreamEvent(ctx, ev)

		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if e.handleCommand(ctx, cmd) {
				e.logger.Info("👋 Quit requested")
				return nil
			}

		case <-ticker.C:
			e.sink.Emit(events.Heartbeat{})
		}
	}
}

// Paused reports whether new sell scheduling is suspended.
func (e *Engine) Paused() bool { return e.paused.Load() }

// SellConfig returns the current sell config snapshot.
func (e *Engine) SellConfig() config.SellConfig {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.sell
}

// StrategyConfig returns the current strategy snapshot.
func (e *Engine) StrategyConfig() config.StrategyConfig {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.strategy
}

// InFlight returns the position ids of running executors, ascending.
func (e *Engine) InFlight() []uint64 { return e.inflight.ids() }

func (e *Engine) handleCommand(ctx context.Context, cmd events.Command) (quit bool) {
	switch c := cmd.(type) {
	case events.Quit:
		return true

	case events.TogglePauseNewSessions:
		paused := !e.paused.Load()
		e.paused.Store(paused)
		e.logger.Info("Pause state changed", zap.Bool("paused", paused))
		e.sink.Emit(events.PauseState{Paused: paused})

	case events.ApplySettings:
		e.applySettings(c.Strategy, c.Sell)

	case events.RequestExitSignal:
		e.requestManualSell(ctx, c.Mint)

	default:
		e.logger.Warn("Unknown command", zap.Any("command", cmd))
	}
	return false
}

func (e *Engine) applySettings(strategy config.StrategyConfig, sell config.SellConfig) {
	e.cfgMu.Lock()
	e.strategy = strategy
	e.sell = sell
	e.cfgMu.Unlock()

	if err := e.stream.UpdateStrategy(strategy.Message(), strategy.DeadlineTimeoutSec); err != nil {
		e.logger.Warn("Failed to push strategy update",
			zap.String("event", "stream_update_strategy_failed"),
			zap.Error(err))
		return
	}
	e.logger.Info("Settings applied",
		zap.String("target_profit", strategy.TargetProfit.String()),
		zap.String("stop_loss", strategy.StopLoss.String()),
		zap.Uint64("deadline_timeout_sec", strategy.DeadlineTimeoutSec),
		zap.Uint16("slippage_max_bps", sell.SlippageMaxBps))
}

// spawn starts a detached sell task. The task outlives ctx cancellation.
func (e *Engine) spawn(ctx context.Context, fn func(ctx context.Context)) {
	detached := context.WithoutCancel(ctx)
	e.tasks.Add(1)
	e.running.Add(1)
	go func() {
		defer e.tasks.Done()
		defer e.running.Add(-1)
		fn(detached)
	}()
}

// Running reports the number of sell executors still in flight.
func (e *Engine) Running() int { return int(e.running.Load()) }

// Wait blocks until every detached sell executor has returned or ctx is
// done. It only bounds how long the caller blocks; executors are never
// cancelled.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%d sell executors still running: %w", e.Running(), ctx.Err())
	}
}

func nowMS() uint64 {
	return uint64(time.Now().UnixMilli())
}
