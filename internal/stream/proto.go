// internal/stream/proto.go
package stream

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Market type names as they appear on the wire.
const (
	MarketPumpFun          = "pump_fun"
	MarketPumpSwap         = "pump_swap"
	MarketMeteoraDbc       = "meteora_dbc"
	MarketMeteoraDammV2    = "meteora_damm_v2"
	MarketRaydiumLaunchpad = "raydium_launchpad"
	MarketRaydiumCpmm      = "raydium_cpmm"
)

type PumpFunContextMsg struct{}

type PumpSwapContextMsg struct {
	Pool         string  `json:"pool"`
	GlobalConfig *string `json:"global_config,omitempty"`
}

type MeteoraDbcContextMsg struct {
	Pool      string `json:"pool"`
	Config    string `json:"config"`
	QuoteMint string `json:"quote_mint"`
}

type MeteoraDammV2ContextMsg struct {
	Pool string `json:"pool"`
}

type RaydiumLaunchpadContextMsg struct {
	Pool             string `json:"pool"`
	Config           string `json:"config"`
	Platform         string `json:"platform"`
	QuoteMint        string `json:"quote_mint"`
	UserQuoteAccount string `json:"user_quote_account"`
}

type RaydiumCpmmContextMsg struct {
	Pool             string `json:"pool"`
	Config           string `json:"config"`
	QuoteMint        string `json:"quote_mint"`
	UserQuoteAccount string `json:"user_quote_account"`
}

// MarketContextMsg is the wire form of a market context.
type MarketContextMsg struct {
	MarketType       string                      `json:"market_type"`
	PumpFun          *PumpFunContextMsg          `json:"pumpfun,omitempty"`
	PumpSwap         *PumpSwapContextMsg         `json:"pumpswap,omitempty"`
	MeteoraDbc       *MeteoraDbcContextMsg       `json:"meteora_dbc,omitempty"`
	MeteoraDammV2    *MeteoraDammV2ContextMsg    `json:"meteora_damm_v2,omitempty"`
	RaydiumLaunchpad *RaydiumLaunchpadContextMsg `json:"raydium_launchpad,omitempty"`
	RaydiumCpmm      *RaydiumCpmmContextMsg      `json:"raydium_cpmm,omitempty"`
}

// StrategyConfigMsg is forwarded to the server; the agent never evaluates it.
type StrategyConfigMsg struct {
	TargetProfitPct float64 `json:"target_profit_pct"`
	StopLossPct     float64 `json:"stop_loss_pct"`
}

// ClientMessage is any message sent from the agent to the server.
type ClientMessage interface {
	ClientMessageType() string
}

type PingMessage struct {
	ClientTimeMS uint64 `json:"client_time_ms"`
}

type ConfigureMessage struct {
	WalletPubkeys      []string          `json:"wallet_pubkeys"`
	Strategy           StrategyConfigMsg `json:"strategy"`
	DeadlineTimeoutSec uint64            `json:"deadline_timeout_sec,omitempty"`
}

type UpdateStrategyMessage struct {
	Strategy           StrategyConfigMsg `json:"strategy"`
	DeadlineTimeoutSec uint64            `json:"deadline_timeout_sec,omitempty"`
}

type ClosePositionMessage struct {
	PositionID   *uint64 `json:"position_id,omitempty"`
	TokenAccount *string `json:"token_account,omitempty"`
}

type RequestExitSignalMessage struct {
	PositionID   *uint64 `json:"position_id,omitempty"`
	TokenAccount *string `json:"token_account,omitempty"`
	SlippageBps  *uint16 `json:"slippage_bps,omitempty"`
}

func (PingMessage) ClientMessageType() string              { return "ping" }
func (ConfigureMessage) ClientMessageType() string         { return "configure" }
func (UpdateStrategyMessage) ClientMessageType() string    { return "update_strategy" }
func (ClosePositionMessage) ClientMessageType() string     { return "close_position" }
func (RequestExitSignalMessage) ClientMessageType() string { return "request_exit_signal" }

// EncodeClientMessage renders a client message with its "type" tag.
func EncodeClientMessage(msg ClientMessage) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("client message is nil")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(msg.ClientMessageType())
	fields["type"] = tag
	return json.Marshal(fields)
}

// ServerMessage is any message pushed by the server.
type ServerMessage interface {
	ServerMessageType() string
}

type LimitsMsg struct {
	HiCapacity           uint32 `json:"hi_capacity"`
	PnlFlushMS           uint64 `json:"pnl_flush_ms"`
	MaxPositionsPerSess  uint64 `json:"max_positions_per_session"`
	MaxWalletsPerSession uint64 `json:"max_wallets_per_session"`
}

type HelloOkMessage struct {
	SessionID    uint64    `json:"session_id"`
	ServerTimeMS uint64    `json:"server_time_ms"`
	Limits       LimitsMsg `json:"limits"`
}

type PongMessage struct {
	ClientTimeMS *uint64 `json:"client_time_ms,omitempty"`
	ServerTimeMS uint64  `json:"server_time_ms"`
}

type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PnlUpdateMessage struct {
	PositionID    uint64 `json:"position_id"`
	ProfitUnits   int64  `json:"profit_units"`
	ProceedsUnits uint64 `json:"proceeds_units"`
	ServerTimeMS  uint64 `json:"server_time_ms"`
}

type BalanceUpdateMessage struct {
	WalletPubkey string  `json:"wallet_pubkey"`
	Mint         string  `json:"mint"`
	TokenAccount *string `json:"token_account,omitempty"`
	TokenProgram *string `json:"token_program,omitempty"`
	Tokens       uint64  `json:"tokens"`
	Slot         uint64  `json:"slot"`
}

type PositionOpenedMessage struct {
	PositionID      uint64            `json:"position_id"`
	WalletPubkey    string            `json:"wallet_pubkey"`
	Mint            string            `json:"mint"`
	TokenAccount    string            `json:"token_account"`
	TokenProgram    *string           `json:"token_program,omitempty"`
	Tokens          uint64            `json:"tokens"`
	EntryQuoteUnits uint64            `json:"entry_quote_units"`
	MarketContext   *MarketContextMsg `json:"market_context,omitempty"`
	Slot            uint64            `json:"slot"`
}

type PositionClosedMessage struct {
	PositionID   uint64  `json:"position_id"`
	WalletPubkey string  `json:"wallet_pubkey"`
	Mint         string  `json:"mint"`
	TokenAccount *string `json:"token_account,omitempty"`
	Reason       string  `json:"reason"`
	Slot         uint64  `json:"slot"`
}

type ExitSignalWithTxMessage struct {
	SessionID      uint64            `json:"session_id"`
	PositionID     uint64            `json:"position_id"`
	WalletPubkey   string            `json:"wallet_pubkey"`
	Mint           string            `json:"mint"`
	TokenAccount   *string           `json:"token_account,omitempty"`
	TokenProgram   *string           `json:"token_program,omitempty"`
	PositionTokens uint64            `json:"position_tokens"`
	ProfitUnits    int64             `json:"profit_units"`
	Reason         string            `json:"reason"`
	TriggeredAtMS  uint64            `json:"triggered_at_ms"`
	MarketContext  *MarketContextMsg `json:"market_context,omitempty"`
	UnsignedTxB64  string            `json:"unsigned_tx_b64"`
}

func (HelloOkMessage) ServerMessageType() string          { return "hello_ok" }
func (PongMessage) ServerMessageType() string             { return "pong" }
func (ErrorMessage) ServerMessageType() string            { return "error" }
func (PnlUpdateMessage) ServerMessageType() string        { return "pnl_update" }
func (BalanceUpdateMessage) ServerMessageType() string    { return "balance_update" }
func (PositionOpenedMessage) ServerMessageType() string   { return "position_opened" }
func (PositionClosedMessage) ServerMessageType() string   { return "position_closed" }
func (ExitSignalWithTxMessage) ServerMessageType() string { return "exit_signal_with_tx" }

// DecodeServerMessage peeks the "type" tag and decodes into the matching struct.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json payload")
	}
	typ := gjson.GetBytes(data, "type")
	if !typ.Exists() {
		return nil, fmt.Errorf("server message missing type")
	}

	switch typ.String() {
	case "hello_ok":
		return decodeAs[HelloOkMessage](data)
	case "pong":
		return decodeAs[PongMessage](data)
	case "error":
		return decodeAs[ErrorMessage](data)
	case "pnl_update":
		return decodeAs[PnlUpdateMessage](data)
	case "balance_update":
		return decodeAs[BalanceUpdateMessage](data)
	case "position_opened":
		return decodeAs[PositionOpenedMessage](data)
	case "position_closed":
		return decodeAs[PositionClosedMessage](data)
	case "exit_signal_with_tx":
		return decodeAs[ExitSignalWithTxMessage](data)
	default:
		return nil, fmt.Errorf("unknown server message type %q", typ.String())
	}
}

func decodeAs[T ServerMessage](data []byte) (ServerMessage, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", msg.ServerMessageType(), err)
	}
	return msg, nil
}
