package engine

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/lasersell/lasersell/internal/blockchain"
	"github.com/lasersell/lasersell/internal/events"
	"github.com/lasersell/lasersell/internal/market"
)

const Usd1PollInterval = 5 * time.Second

// BalancePoller reports the wallet's SOL balance once and its stable-asset
// balance periodically.
type BalancePoller struct {
	rpc      blockchain.Client
	sink     events.Sink
	logger   *zap.Logger
	wallet   solana.PublicKey
	stable   solana.PublicKey
	interval time.Duration
}

func NewBalancePoller(rpc blockchain.Client, sink events.Sink, wallet solana.PublicKey, devnet bool, logger *zap.Logger) *BalancePoller {
	return &BalancePoller{
		rpc:      rpc,
		sink:     sink,
		logger:   logger.Named("balance"),
		wallet:   wallet,
		stable:   market.StableMint(devnet),
		interval: Usd1PollInterval,
	}
}

// Run blocks until ctx is cancelled.
func (p *BalancePoller) Run(ctx context.Context) error {
	p.fetchSOL(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.fetchUSD1(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.fetchUSD1(ctx)
		}
	}
}

func (p *BalancePoller) fetchSOL(ctx context.Context) {
	lamports, err := p.rpc.GetBalance(ctx, p.wallet)
	if err != nil {
		p.logger.Warn("Wallet balance fetch failed", zap.String("event", "wallet_balance_fetch_error"), zap.Error(err))
		return
	}
	p.sink.Emit(events.BalanceUpdate{Lamports: lamports})
}

func (p *BalancePoller) fetchUSD1(ctx context.Context) {
	units, err := p.rpc.GetTokenBalanceByMint(ctx, p.wallet, p.stable)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("USD1 balance fetch failed", zap.String("event", "usd1_balance_fetch_error"), zap.Error(err))
		}
		return
	}
	p.sink.Emit(events.Usd1BalanceUpdate{BaseUnits: units})
}
