package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lasersell/lasersell/internal/blockchain"
)

func TestCanonicalSellReason(t *testing.T) {
	tests := map[string]string{
		"target":           "target",
		"profit":           "target",
		"target_profit":    "target",
		"stop_loss":        "stop_loss",
		"timeout":          "timeout",
		"deadline":         "timeout",
		"deadline_timeout": "timeout",
		"manual":           "manual",
		"manual_sell":      "manual",
		"weird_reason":     "weird_reason",
		"":                 "",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, CanonicalSellReason(in))
		})
	}
}

func TestBumpSlippageSequence(t *testing.T) {
	cfg := testSellConfig()
	current := cfg.SlippagePadBps
	seq := []uint16{current}
	for i := 0; i < 20; i++ {
		current = BumpSlippage(current, i, cfg)
		seq = append(seq, current)
	}

	assert.Equal(t, []uint16{2000, 2020, 2060, 2100}, seq[:4])
	for i := 1; i < len(seq); i++ {
		assert.GreaterOrEqual(t, seq[i], seq[i-1])
		assert.LessOrEqual(t, seq[i], uint16(2500))
	}
	assert.Equal(t, uint16(2500), seq[len(seq)-1])
}

func TestBumpSlippageSaturates(t *testing.T) {
	cfg := testSellConfig()
	cfg.SlippageMaxBps = 65535
	cfg.SlippageRetryBumpBpsNext = 60000
	assert.Equal(t, uint16(65535), BumpSlippage(10000, 3, cfg))
}

func TestClassifyPhase(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"send error", &blockchain.SendError{Err: errors.New("rpc down")}, PhaseSend},
		{"plain", errors.New("sign tx: bad"), PhaseSend},
		{"confirm timeout", fmt.Errorf("await: %w", blockchain.ErrConfirmationTimeout), PhaseConfirm},
		{"on-chain failure", fmt.Errorf("confirm: %w", &blockchain.TxFailedError{Reason: "custom program error"}), PhaseConfirm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPhase(tt.err))
		})
	}
}
