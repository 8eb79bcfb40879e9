package engine

import (
	"errors"
	"math"

	"github.com/lasersell/lasersell/internal/blockchain"
	"github.com/lasersell/lasersell/internal/config"
)

const (
	PhaseSend    = "tx_send"
	PhaseConfirm = "tx_confirm"
)

// CanonicalSellReason normalizes server reason strings for reporting.
func CanonicalSellReason(reason string) string {
	switch reason {
	case "target", "profit", "target_profit":
		return "target"
	case "stop_loss":
		return "stop_loss"
	case "timeout", "deadline_timeout", "deadline":
		return "timeout"
	case "manual", "manual_sell":
		return "manual"
	default:
		return reason
	}
}

// BumpSlippage returns the slippage for the next attempt. The first bump
// uses the first-bump size, later bumps the next-bump size. The result is
// capped at SlippageMaxBps.
func BumpSlippage(current uint16, refreshesUsed int, cfg config.SellConfig) uint16 {
	bump := cfg.SlippageRetryBumpBpsNext
	if refreshesUsed == 0 {
		bump = cfg.SlippageRetryBumpBpsFirst
	}
	next := uint32(current) + uint32(bump)
	if next > math.MaxUint16 {
		next = math.MaxUint16
	}
	return min(uint16(next), cfg.SlippageMaxBps)
}

// ClassifyPhase reports whether err happened while confirming or earlier.
func ClassifyPhase(err error) string {
	var failed *blockchain.TxFailedError
	if errors.Is(err, blockchain.ErrConfirmationTimeout) || errors.As(err, &failed) {
		return PhaseConfirm
	}
	return PhaseSend
}
