// internal/events/types.go
package events

import (
	"github.com/gagliardetto/solana-go"

	"github.com/lasersell/lasersell/internal/session"
)

// EventType identifies a notification.
type EventType string

const (
	TypeStartup               EventType = "startup"
	TypeBalanceUpdate         EventType = "balance.sol"
	TypeUsd1BalanceUpdate     EventType = "balance.usd1"
	TypeRpcMetric             EventType = "rpc.metric"
	TypeSolanaWsStatus        EventType = "stream.status"
	TypeMintDetected          EventType = "session.mint_detected"
	TypeSessionStarted        EventType = "session.started"
	TypeSessionStreamState    EventType = "session.stream_state"
	TypePositionTokensUpdated EventType = "session.tokens"
	TypeSellScheduled         EventType = "sell.scheduled"
	TypeSellAttempt           EventType = "sell.attempt"
	TypeSellRetry             EventType = "sell.retry"
	TypeSellComplete          EventType = "sell.complete"
	TypeSessionClosed         EventType = "session.closed"
	TypeSessionError          EventType = "session.error"
	TypePauseState            EventType = "engine.pause"
	TypeHeartbeat             EventType = "engine.heartbeat"
	TypeLogLine               EventType = "log.line"
)

// Event is a notification flowing from the engine to its observers.
type Event interface {
	Type() EventType
}

// MintEvent is implemented by every notification scoped to one mint.
type MintEvent interface {
	Event
	MintKey() solana.PublicKey
}

type Startup struct {
	Version      string
	Devnet       bool
	WalletPubkey solana.PublicKey
}

// BalanceUpdate carries the wallet SOL balance.
type BalanceUpdate struct {
	Lamports uint64
}

type Usd1BalanceUpdate struct {
	BaseUnits uint64
}

type RpcMetric struct {
	Method     string
	DurationMS uint64
	OK         bool
}

type SolanaWsStatus struct {
	Connected bool
}

type MintDetected struct {
	Mint         solana.PublicKey
	TokenAccount solana.PublicKey
}

type SessionStarted struct {
	Mint         solana.PublicKey
	TokenProgram solana.PublicKey
	StartedAtMS  uint64
}

type SessionStreamState struct {
	Mint  solana.PublicKey
	State session.StreamState
}

type PositionTokensUpdated struct {
	Mint   solana.PublicKey
	Tokens uint64
}

type SellScheduled struct {
	Mint           solana.PublicKey
	Reason         string
	ProfitLamports int64
}

type SellAttempt struct {
	Mint        solana.PublicKey
	Attempt     int
	SlippageBps uint16
}

type SellRetry struct {
	Mint    solana.PublicKey
	Attempt int
	Phase   string
	Error   string
}

type SellComplete struct {
	Mint        solana.PublicKey
	Signature   string
	Reason      string
	SlippageBps uint16
}

type SessionClosed struct {
	Mint solana.PublicKey
}

type SessionError struct {
	Mint  solana.PublicKey
	Error string
}

type PauseState struct {
	Paused bool
}

type Heartbeat struct{}

// LogLine is a log entry forwarded to the dashboard.
type LogLine struct {
	Level   string
	Message string
	Event   string
}

func (Startup) Type() EventType               { return TypeStartup }
func (BalanceUpdate) Type() EventType         { return TypeBalanceUpdate }
func (Usd1BalanceUpdate) Type() EventType     { return TypeUsd1BalanceUpdate }
func (RpcMetric) Type() EventType             { return TypeRpcMetric }
func (SolanaWsStatus) Type() EventType        { return TypeSolanaWsStatus }
func (MintDetected) Type() EventType          { return TypeMintDetected }
func (SessionStarted) Type() EventType        { return TypeSessionStarted }
func (SessionStreamState) Type() EventType    { return TypeSessionStreamState }
func (PositionTokensUpdated) Type() EventType { return TypePositionTokensUpdated }
func (SellScheduled) Type() EventType         { return TypeSellScheduled }
func (SellAttempt) Type() EventType           { return TypeSellAttempt }
func (SellRetry) Type() EventType             { return TypeSellRetry }
func (SellComplete) Type() EventType          { return TypeSellComplete }
func (SessionClosed) Type() EventType         { return TypeSessionClosed }
func (SessionError) Type() EventType          { return TypeSessionError }
func (PauseState) Type() EventType            { return TypePauseState }
func (Heartbeat) Type() EventType             { return TypeHeartbeat }
func (LogLine) Type() EventType               { return TypeLogLine }

func (e MintDetected) MintKey() solana.PublicKey          { return e.Mint }
func (e SessionStarted) MintKey() solana.PublicKey        { return e.Mint }
func (e SessionStreamState) MintKey() solana.PublicKey    { return e.Mint }
func (e PositionTokensUpdated) MintKey() solana.PublicKey { return e.Mint }
func (e SellScheduled) MintKey() solana.PublicKey         { return e.Mint }
func (e SellAttempt) MintKey() solana.PublicKey           { return e.Mint }
func (e SellRetry) MintKey() solana.PublicKey             { return e.Mint }
func (e SellComplete) MintKey() solana.PublicKey          { return e.Mint }
func (e SessionClosed) MintKey() solana.PublicKey         { return e.Mint }
func (e SessionError) MintKey() solana.PublicKey          { return e.Mint }
