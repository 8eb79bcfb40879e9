package ui

import (
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/lasersell/lasersell/internal/events"
	"github.com/lasersell/lasersell/internal/market"
	"github.com/lasersell/lasersell/internal/session"
)

const maxLogLines = 200

type sessionRow struct {
	Mint       solana.PublicKey
	Tokens     uint64
	MarketType string
	Status     string
	Slippage   uint16
	Failed     bool
	UpdatedAt  time.Time

	// Read from the shared stream state on every heartbeat.
	state         session.StreamState
	FeeBps        uint64
	P95Down       uint64
	CurveComplete *bool
	Proceeds      uint64
	HasProceeds   bool
}

type logEntry struct {
	At      time.Time
	Level   string
	Message string
}

// dashboard is the state rendered by the Model. It is only touched from
// the bubbletea update loop.
type dashboard struct {
	wallet solana.PublicKey
	devnet bool

	lamports    uint64
	haveSOL     bool
	usd1        uint64
	haveUSD1    bool
	wsConnected bool
	paused      bool
	rpcMS       uint64
	rpcOK       bool
	lastBeat    time.Time

	sessions map[solana.PublicKey]*sessionRow
	order    []solana.PublicKey
	logs     []logEntry
}

func newDashboard(wallet solana.PublicKey, devnet bool) *dashboard {
	return &dashboard{
		wallet:   wallet,
		devnet:   devnet,
		sessions: make(map[solana.PublicKey]*sessionRow),
	}
}

func (d *dashboard) apply(event events.Event, now time.Time) {
	switch e := event.(type) {
	case events.Startup:
		d.wallet = e.WalletPubkey
		d.devnet = e.Devnet
	case events.BalanceUpdate:
		d.lamports, d.haveSOL = e.Lamports, true
	case events.Usd1BalanceUpdate:
		d.usd1, d.haveUSD1 = e.BaseUnits, true
	case events.SolanaWsStatus:
		d.wsConnected = e.Connected
	case events.PauseState:
		d.paused = e.Paused
	case events.RpcMetric:
		d.rpcMS, d.rpcOK = e.DurationMS, e.OK
	case events.Heartbeat:
		d.lastBeat = now
		d.refreshMetrics()
	case events.LogLine:
		d.appendLog(logEntry{At: now, Level: e.Level, Message: e.Message})
	case events.MintDetected:
		d.row(e.Mint, now).Status = "detected"
	case events.SessionStarted:
		r := d.row(e.Mint, now)
		r.Status, r.Failed = "started", false
	case events.SessionStreamState:
		if e.State != nil {
			r := d.row(e.Mint, now)
			r.MarketType = e.State.MarketType().String()
			r.state = e.State
			r.readState()
		}
	case events.PositionTokensUpdated:
		d.row(e.Mint, now).Tokens = e.Tokens
	case events.SellScheduled:
		d.row(e.Mint, now).Status = "scheduled: " + e.Reason
	case events.SellAttempt:
		r := d.row(e.Mint, now)
		r.Status = fmt.Sprintf("selling #%d", e.Attempt)
		r.Slippage = e.SlippageBps
	case events.SellRetry:
		d.row(e.Mint, now).Status = fmt.Sprintf("retry #%d (%s)", e.Attempt, e.Phase)
	case events.SellComplete:
		r := d.row(e.Mint, now)
		r.Status = "sold: " + e.Reason
		r.Slippage = e.SlippageBps
	case events.SessionClosed:
		d.remove(e.Mint)
	case events.SessionError:
		r := d.row(e.Mint, now)
		r.Status, r.Failed = "error", true
		d.appendLog(logEntry{At: now, Level: "ERROR", Message: e.Error})
	}
}

func (d *dashboard) row(mint solana.PublicKey, now time.Time) *sessionRow {
	r, ok := d.sessions[mint]
	if !ok {
		r = &sessionRow{Mint: mint}
		d.sessions[mint] = r
		d.order = append(d.order, mint)
	}
	r.UpdatedAt = now
	return r
}

// refreshMetrics pulls fee, price decline, curve and quote from every
// session's stream state.
func (d *dashboard) refreshMetrics() {
	for _, r := range d.sessions {
		r.readState()
	}
}

func (r *sessionRow) readState() {
	if r.state == nil {
		return
	}
	r.FeeBps = r.state.LatestFeeBps()
	r.P95Down = r.state.DownPerSlotP95()
	if curve, ok := r.state.LatestCurve(); ok {
		complete := curve.Complete
		r.CurveComplete = &complete
	}
	if tokens, ok := r.state.PositionTokens(); ok && tokens > 0 {
		r.Tokens = tokens
	}
	if r.Tokens > 0 {
		if proceeds, ok := r.state.QuoteSellProceeds(r.Tokens); ok {
			r.Proceeds, r.HasProceeds = proceeds, true
		}
	}
}

func (d *dashboard) remove(mint solana.PublicKey) {
	if _, ok := d.sessions[mint]; !ok {
		return
	}
	delete(d.sessions, mint)
	for i, m := range d.order {
		if m == mint {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// rows returns sessions in first-seen order.
func (d *dashboard) rows() []*sessionRow {
	out := make([]*sessionRow, 0, len(d.order))
	for _, mint := range d.order {
		out = append(out, d.sessions[mint])
	}
	return out
}

func (d *dashboard) appendLog(entry logEntry) {
	d.logs = append(d.logs, entry)
	if len(d.logs) > maxLogLines {
		d.logs = d.logs[len(d.logs)-maxLogLines:]
	}
}

func (d *dashboard) clearLogs() { d.logs = nil }

// formatSOL renders lamports with four decimals.
func formatSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9).StringFixed(4)
}

func formatUSD1(baseUnits uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(baseUnits), -market.USD1Decimals).StringFixed(2)
}

func formatBps(bps uint16) string {
	if bps == 0 {
		return "-"
	}
	return decimal.New(int64(bps), -2).String() + "%"
}
