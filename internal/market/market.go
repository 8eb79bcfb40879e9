// internal/market/market.go
package market

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// USD1Mint is the designated stable quote asset on mainnet.
const USD1Mint = "USD1ttGY1N17NEEHLmELoaybftRBUSErhqYiQzvEmuB"

// USD1MintDevnet is used instead of USD1Mint when running against devnet.
const USD1MintDevnet = "USDCoctVLVnvTXBEuP9s8hntucdJokbo17RwHuNXemT"

// USD1Decimals is the number of decimals of the stable asset.
const USD1Decimals = 6

// StableMint returns the stable quote mint for the selected network.
func StableMint(devnet bool) solana.PublicKey {
	if devnet {
		return solana.MustPublicKeyFromBase58(USD1MintDevnet)
	}
	return solana.MustPublicKeyFromBase58(USD1Mint)
}

// Type identifies the on-chain market mechanism backing a mint.
type Type string

const (
	PumpFun          Type = "pumpfun"
	PumpSwap         Type = "pumpswap"
	MeteoraDbc       Type = "meteora_dbc"
	MeteoraDammV2    Type = "meteora_damm_v2"
	RaydiumLaunchpad Type = "raydium_launchpad"
	RaydiumCpmm      Type = "raydium_cpmm"
)

// ParseType accepts both the wire names and their short aliases.
func ParseType(raw string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pump_fun", "pumpfun":
		return PumpFun, nil
	case "pump_swap", "pumpswap":
		return PumpSwap, nil
	case "meteora_dbc":
		return MeteoraDbc, nil
	case "meteora_damm_v2":
		return MeteoraDammV2, nil
	case "raydium_launchpad":
		return RaydiumLaunchpad, nil
	case "raydium_cpmm":
		return RaydiumCpmm, nil
	default:
		return "", fmt.Errorf("unknown market type %q", raw)
	}
}

// UnmarshalJSON decodes a market type, accepting aliases.
func (t *Type) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Type) String() string { return string(t) }

// BondingCurve reports whether the market is a fresh-launch curve rather than a pool.
func (t Type) BondingCurve() bool {
	return t == PumpFun
}

type MeteoraDbcContext struct {
	Pool      solana.PublicKey
	Config    solana.PublicKey
	QuoteMint solana.PublicKey
}

type PumpSwapContext struct {
	Pool         solana.PublicKey
	GlobalConfig *solana.PublicKey
}

type DammV2Context struct {
	Pool solana.PublicKey
}

type RaydiumLaunchpadContext struct {
	Pool             solana.PublicKey
	Config           solana.PublicKey
	Platform         solana.PublicKey
	QuoteMint        solana.PublicKey
	UserQuoteAccount solana.PublicKey
}

type RaydiumCpmmContext struct {
	Pool             solana.PublicKey
	Config           solana.PublicKey
	QuoteMint        solana.PublicKey
	UserQuoteAccount solana.PublicKey
}

// Context is a tagged union over market kinds. Exactly the variant matching
// Type is set. Values are treated as immutable and replaced wholesale.
type Context struct {
	Type             Type
	MeteoraDbc       *MeteoraDbcContext
	PumpSwap         *PumpSwapContext
	DammV2           *DammV2Context
	RaydiumLaunchpad *RaydiumLaunchpadContext
	RaydiumCpmm      *RaydiumCpmmContext
}

func NewPumpFun() Context { return Context{Type: PumpFun} }

func NewPumpSwap(c PumpSwapContext) Context { return Context{Type: PumpSwap, PumpSwap: &c} }

func NewMeteoraDbc(c MeteoraDbcContext) Context { return Context{Type: MeteoraDbc, MeteoraDbc: &c} }

func NewDammV2(c DammV2Context) Context { return Context{Type: MeteoraDammV2, DammV2: &c} }

func NewRaydiumLaunchpad(c RaydiumLaunchpadContext) Context {
	return Context{Type: RaydiumLaunchpad, RaydiumLaunchpad: &c}
}

func NewRaydiumCpmm(c RaydiumCpmmContext) Context {
	return Context{Type: RaydiumCpmm, RaydiumCpmm: &c}
}

// QuoteMint returns the recorded quote mint for pool-based markets that carry one.
func (c Context) QuoteMint() (solana.PublicKey, bool) {
	switch c.Type {
	case MeteoraDbc:
		if c.MeteoraDbc != nil {
			return c.MeteoraDbc.QuoteMint, true
		}
	case RaydiumLaunchpad:
		if c.RaydiumLaunchpad != nil {
			return c.RaydiumLaunchpad.QuoteMint, true
		}
	case RaydiumCpmm:
		if c.RaydiumCpmm != nil {
			return c.RaydiumCpmm.QuoteMint, true
		}
	}
	return solana.PublicKey{}, false
}

// Pool returns the pool account for pool-based markets.
func (c Context) Pool() (solana.PublicKey, bool) {
	switch {
	case c.MeteoraDbc != nil:
		return c.MeteoraDbc.Pool, true
	case c.PumpSwap != nil:
		return c.PumpSwap.Pool, true
	case c.DammV2 != nil:
		return c.DammV2.Pool, true
	case c.RaydiumLaunchpad != nil:
		return c.RaydiumLaunchpad.Pool, true
	case c.RaydiumCpmm != nil:
		return c.RaydiumCpmm.Pool, true
	}
	return solana.PublicKey{}, false
}

// SellOutput is the asset requested as sell proceeds.
type SellOutput string

const (
	OutputSOL  SellOutput = "SOL"
	OutputUSD1 SellOutput = "USD1"
)

// InferSellOutput picks the proceeds asset for a manual sell. Bonding-curve and
// generic launch markets always pay out in SOL; pool markets pay out in the
// stable asset when their quote mint is the stable mint.
func InferSellOutput(ctx *Context, stable solana.PublicKey) SellOutput {
	if ctx == nil {
		return OutputSOL
	}
	quote, ok := ctx.QuoteMint()
	if ok && quote.Equals(stable) {
		return OutputUSD1
	}
	return OutputSOL
}
