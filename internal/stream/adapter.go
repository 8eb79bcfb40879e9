// internal/stream/adapter.go
package stream

import (
	"context"

	"go.uber.org/zap"
)

// Event is the uniform internal form of everything the engine consumes from
// the stream.
type Event interface {
	isStreamEvent()
}

type ConnectionStatusEvent struct {
	Connected bool
}

type BalanceUpdateEvent struct {
	Mint         string
	TokenProgram *string
	Tokens       uint64
}

type PositionOpenedEvent struct {
	PositionID    uint64
	Mint          string
	TokenProgram  *string
	TokenAccount  string
	Tokens        uint64
	MarketContext *MarketContextMsg
}

type PositionClosedEvent struct {
	PositionID uint64
	Mint       string
	Reason     string
}

type ExitSignalEvent struct {
	PositionID     uint64
	Mint           string
	TokenProgram   *string
	PositionTokens uint64
	ProfitUnits    int64
	Reason         string
	MarketContext  *MarketContextMsg
	UnsignedTxB64  string
}

func (ConnectionStatusEvent) isStreamEvent() {}
func (BalanceUpdateEvent) isStreamEvent()    {}
func (PositionOpenedEvent) isStreamEvent()   {}
func (PositionClosedEvent) isStreamEvent()   {}
func (ExitSignalEvent) isStreamEvent()       {}

// Source is the inbound side of a stream connection.
type Source interface {
	Inbound() <-chan ServerMessage
	Status() <-chan bool
}

// Sender is the outbound side of a stream connection.
type Sender interface {
	Send(msg ClientMessage) error
}

var (
	_ Source = (*Connection)(nil)
	_ Sender = (*Connection)(nil)
)

// Adapter converts server messages into Events.
type Adapter struct {
	logger *zap.Logger
}

func NewAdapter(logger *zap.Logger) *Adapter {
	return &Adapter{logger: logger.Named("stream_adapter")}
}

// Run pumps src into the returned channel until ctx is done or both source
// channels close. The returned channel is closed on exit.
func (a *Adapter) Run(ctx context.Context, src Source) <-chan Event {
	out := make(chan Event, queueSize)
	go func() {
		defer close(out)
		inbound := src.Inbound()
		status := src.Status()
		for inbound != nil || status != nil {
			var ev Event
			select {
			case <-ctx.Done():
				return
			case connected, ok := <-status:
				if !ok {
					status = nil
					continue
				}
				ev = ConnectionStatusEvent{Connected: connected}
			case msg, ok := <-inbound:
				if !ok {
					inbound = nil
					continue
				}
				mapped, ok := a.Convert(msg)
				if !ok {
					continue
				}
				ev = mapped
			}
			select {
			case <-ctx.Done():
				return
			case out <- ev:
			}
		}
	}()
	return out
}

// Convert maps one server message. Messages the engine does not act on
// return false; server errors are logged.
func (a *Adapter) Convert(msg ServerMessage) (Event, bool) {
	switch m := msg.(type) {
	case BalanceUpdateMessage:
		return BalanceUpdateEvent{
			Mint:         m.Mint,
			TokenProgram: m.TokenProgram,
			Tokens:       m.Tokens,
		}, true
	case PositionOpenedMessage:
		return PositionOpenedEvent{
			PositionID:    m.PositionID,
			Mint:          m.Mint,
			TokenProgram:  m.TokenProgram,
			TokenAccount:  m.TokenAccount,
			Tokens:        m.Tokens,
			MarketContext: m.MarketContext,
		}, true
	case PositionClosedMessage:
		return PositionClosedEvent{
			PositionID: m.PositionID,
			Mint:       m.Mint,
			Reason:     m.Reason,
		}, true
	case ExitSignalWithTxMessage:
		return ExitSignalEvent{
			PositionID:     m.PositionID,
			Mint:           m.Mint,
			TokenProgram:   m.TokenProgram,
			PositionTokens: m.PositionTokens,
			ProfitUnits:    m.ProfitUnits,
			Reason:         m.Reason,
			MarketContext:  m.MarketContext,
			UnsignedTxB64:  m.UnsignedTxB64,
		}, true
	case ErrorMessage:
		a.logger.Warn("Stream server error",
			zap.String("event", "stream_server_error"),
			zap.String("code", m.Code),
			zap.String("message", m.Message))
	case HelloOkMessage:
		a.logger.Debug("Stream handshake acknowledged", zap.Uint64("session_id", m.SessionID))
	case PongMessage, PnlUpdateMessage:
	}
	return nil, false
}

// Handle is the outbound command surface the engine uses.
type Handle struct {
	sender Sender
}

func NewHandle(sender Sender) *Handle {
	return &Handle{sender: sender}
}

// UpdateStrategy pushes new strategy thresholds to the server.
func (h *Handle) UpdateStrategy(strategy StrategyConfigMsg, deadlineTimeoutSec uint64) error {
	return h.sender.Send(UpdateStrategyMessage{
		Strategy:           strategy,
		DeadlineTimeoutSec: deadlineTimeoutSec,
	})
}

// RequestExitSignal asks the server to rebuild the exit transaction for a
// position, optionally at a new slippage tolerance.
func (h *Handle) RequestExitSignal(positionID uint64, slippageBps *uint16) error {
	id := positionID
	return h.sender.Send(RequestExitSignalMessage{
		PositionID:  &id,
		SlippageBps: slippageBps,
	})
}
