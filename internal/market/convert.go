// internal/market/convert.go
package market

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/lasersell/lasersell/internal/stream"
)

// FromMsg parses a wire market context. The variant matching market_type must
// be present and every account field must be a valid pubkey.
func FromMsg(msg *stream.MarketContextMsg) (Context, error) {
	if msg == nil {
		return Context{}, fmt.Errorf("market context is nil")
	}
	kind, err := ParseType(msg.MarketType)
	if err != nil {
		return Context{}, err
	}

	switch kind {
	case PumpFun:
		return NewPumpFun(), nil

	case PumpSwap:
		if msg.PumpSwap == nil {
			return Context{}, missing(kind)
		}
		pool, err := parseKey(msg.PumpSwap.Pool, "pumpswap.pool")
		if err != nil {
			return Context{}, err
		}
		out := PumpSwapContext{Pool: pool}
		if msg.PumpSwap.GlobalConfig != nil {
			gc, err := parseKey(*msg.PumpSwap.GlobalConfig, "pumpswap.global_config")
			if err != nil {
				return Context{}, err
			}
			out.GlobalConfig = &gc
		}
		return NewPumpSwap(out), nil

	case MeteoraDbc:
		m := msg.MeteoraDbc
		if m == nil {
			return Context{}, missing(kind)
		}
		var out MeteoraDbcContext
		if err := parseAll(
			field{m.Pool, "meteora_dbc.pool", &out.Pool},
			field{m.Config, "meteora_dbc.config", &out.Config},
			field{m.QuoteMint, "meteora_dbc.quote_mint", &out.QuoteMint},
		); err != nil {
			return Context{}, err
		}
		return NewMeteoraDbc(out), nil

	case MeteoraDammV2:
		if msg.MeteoraDammV2 == nil {
			return Context{}, missing(kind)
		}
		pool, err := parseKey(msg.MeteoraDammV2.Pool, "meteora_damm_v2.pool")
		if err != nil {
			return Context{}, err
		}
		return NewDammV2(DammV2Context{Pool: pool}), nil

	case RaydiumLaunchpad:
		m := msg.RaydiumLaunchpad
		if m == nil {
			return Context{}, missing(kind)
		}
		var out RaydiumLaunchpadContext
		if err := parseAll(
			field{m.Pool, "raydium_launchpad.pool", &out.Pool},
			field{m.Config, "raydium_launchpad.config", &out.Config},
			field{m.Platform, "raydium_launchpad.platform", &out.Platform},
			field{m.QuoteMint, "raydium_launchpad.quote_mint", &out.QuoteMint},
			field{m.UserQuoteAccount, "raydium_launchpad.user_quote_account", &out.UserQuoteAccount},
		); err != nil {
			return Context{}, err
		}
		return NewRaydiumLaunchpad(out), nil

	case RaydiumCpmm:
		m := msg.RaydiumCpmm
		if m == nil {
			return Context{}, missing(kind)
		}
		var out RaydiumCpmmContext
		if err := parseAll(
			field{m.Pool, "raydium_cpmm.pool", &out.Pool},
			field{m.Config, "raydium_cpmm.config", &out.Config},
			field{m.QuoteMint, "raydium_cpmm.quote_mint", &out.QuoteMint},
			field{m.UserQuoteAccount, "raydium_cpmm.user_quote_account", &out.UserQuoteAccount},
		); err != nil {
			return Context{}, err
		}
		return NewRaydiumCpmm(out), nil
	}
	return Context{}, fmt.Errorf("unsupported market type %q", kind)
}

// ToMsg renders a context in wire form, used when requesting a manual sell.
func ToMsg(c Context) stream.MarketContextMsg {
	switch c.Type {
	case PumpFun:
		return stream.MarketContextMsg{MarketType: stream.MarketPumpFun, PumpFun: &stream.PumpFunContextMsg{}}
	case PumpSwap:
		out := stream.MarketContextMsg{MarketType: stream.MarketPumpSwap}
		if c.PumpSwap != nil {
			m := &stream.PumpSwapContextMsg{Pool: c.PumpSwap.Pool.String()}
			if c.PumpSwap.GlobalConfig != nil {
				gc := c.PumpSwap.GlobalConfig.String()
				m.GlobalConfig = &gc
			}
			out.PumpSwap = m
		}
		return out
	case MeteoraDbc:
		out := stream.MarketContextMsg{MarketType: stream.MarketMeteoraDbc}
		if m := c.MeteoraDbc; m != nil {
			out.MeteoraDbc = &stream.MeteoraDbcContextMsg{
				Pool:      m.Pool.String(),
				Config:    m.Config.String(),
				QuoteMint: m.QuoteMint.String(),
			}
		}
		return out
	case MeteoraDammV2:
		out := stream.MarketContextMsg{MarketType: stream.MarketMeteoraDammV2}
		if c.DammV2 != nil {
			out.MeteoraDammV2 = &stream.MeteoraDammV2ContextMsg{Pool: c.DammV2.Pool.String()}
		}
		return out
	case RaydiumLaunchpad:
		out := stream.MarketContextMsg{MarketType: stream.MarketRaydiumLaunchpad}
		if m := c.RaydiumLaunchpad; m != nil {
			out.RaydiumLaunchpad = &stream.RaydiumLaunchpadContextMsg{
				Pool:             m.Pool.String(),
				Config:           m.Config.String(),
				Platform:         m.Platform.String(),
				QuoteMint:        m.QuoteMint.String(),
				UserQuoteAccount: m.UserQuoteAccount.String(),
			}
		}
		return out
	case RaydiumCpmm:
		out := stream.MarketContextMsg{MarketType: stream.MarketRaydiumCpmm}
		if m := c.RaydiumCpmm; m != nil {
			out.RaydiumCpmm = &stream.RaydiumCpmmContextMsg{
				Pool:             m.Pool.String(),
				Config:           m.Config.String(),
				QuoteMint:        m.QuoteMint.String(),
				UserQuoteAccount: m.UserQuoteAccount.String(),
			}
		}
		return out
	}
	return stream.MarketContextMsg{MarketType: string(c.Type)}
}

type field struct {
	raw  string
	name string
	dst  *solana.PublicKey
}

func parseAll(fields ...field) error {
	for _, f := range fields {
		key, err := parseKey(f.raw, f.name)
		if err != nil {
			return err
		}
		*f.dst = key
	}
	return nil
}

func parseKey(raw, name string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid pubkey for %s: %w", name, err)
	}
	return key, nil
}

func missing(kind Type) error {
	return fmt.Errorf("%s context missing", kind)
}
