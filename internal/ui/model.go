package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gagliardetto/solana-go"

	"github.com/lasersell/lasersell/internal/events"
	"github.com/lasersell/lasersell/internal/logger"
)

const (
	minTableHeight = 5
	logPaneLines   = 8
)

// EventMsg wraps an engine notification for the update loop.
type EventMsg struct {
	Event events.Event
}

type streamClosedMsg struct{}

// Options configures a dashboard Model.
type Options struct {
	Wallet   solana.PublicKey
	Devnet   bool
	Events   <-chan events.Event
	Commands chan<- events.Command
}

// Model is the bubbletea dashboard. It renders notifications and only ever
// enqueues commands; it never calls into the engine directly.
type Model struct {
	state    *dashboard
	table    table.Model
	help     help.Model
	keys     KeyMap
	events   <-chan events.Event
	commands chan<- events.Command
	mints    []solana.PublicKey

	width  int
	height int
	notice string
	now    func() time.Time
}

func NewModel(opts Options) Model {
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(minTableHeight),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.Inherit(tableHeader).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	s.Selected = s.Selected.Inherit(tableSelected)
	t.SetStyles(s)

	return Model{
		state:    newDashboard(opts.Wallet, opts.Devnet),
		table:    t,
		help:     help.New(),
		keys:     DefaultKeyMap(),
		events:   opts.Events,
		commands: opts.Commands,
		now:      time.Now,
	}
}

func columns(width int) []table.Column {
	status := width - 12 - 14 - 16 - 10 - 12
	if status < 16 {
		status = 16
	}
	return []table.Column{
		{Title: "Mint", Width: 12},
		{Title: "Market", Width: 14},
		{Title: "Tokens", Width: 16},
		{Title: "Slippage", Width: 10},
		{Title: "Status", Width: status},
	}
}

// waitForEvent blocks on the next notification.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.table.SetColumns(columns(msg.Width - 4))
		h := msg.Height - logPaneLines - 10
		if h < minTableHeight {
			h = minTableHeight
		}
		m.table.SetHeight(h)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		m.state.apply(msg.Event, m.now())
		m.syncRows()
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.notice = "event stream closed"
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.send(events.Quit{})
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Pause):
		if m.send(events.TogglePauseNewSessions{}) {
			m.notice = "pause toggled"
		}
		return m, nil
	case key.Matches(msg, m.keys.Sell):
		mint, ok := m.selectedMint()
		if !ok {
			m.notice = "no session selected"
			return m, nil
		}
		if m.send(events.RequestExitSignal{Mint: mint}) {
			m.notice = "manual sell requested for " + logger.ShortenAddress(mint.String())
		}
		return m, nil
	case key.Matches(msg, m.keys.ClearLogs):
		m.state.clearLogs()
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// send enqueues without blocking the update loop.
func (m *Model) send(cmd events.Command) bool {
	if m.commands == nil {
		return false
	}
	select {
	case m.commands <- cmd:
		return true
	default:
		m.notice = "command queue full"
		return false
	}
}

func (m *Model) selectedMint() (solana.PublicKey, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.mints) {
		return solana.PublicKey{}, false
	}
	return m.mints[i], true
}

func (m *Model) syncRows() {
	rows := m.state.rows()
	tableRows := make([]table.Row, 0, len(rows))
	mints := make([]solana.PublicKey, 0, len(rows))
	for _, r := range rows {
		marketType := r.MarketType
		if marketType == "" {
			marketType = "-"
		}
		tableRows = append(tableRows, table.Row{
			logger.ShortenAddress(r.Mint.String()),
			marketType,
			fmt.Sprintf("%d", r.Tokens),
			formatBps(r.Slippage),
			r.Status,
		})
		mints = append(mints, r.Mint)
	}
	m.mints = mints
	m.table.SetRows(tableRows)
	if m.table.Cursor() >= len(tableRows) && len(tableRows) > 0 {
		m.table.SetCursor(len(tableRows) - 1)
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.table.View()))
	b.WriteString("\n")
	if detail := m.detailView(); detail != "" {
		b.WriteString(detail)
		b.WriteString("\n")
	}
	b.WriteString(panelStyle.Render(m.logsView()))
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) headerView() string {
	d := m.state
	network := "mainnet"
	if d.devnet {
		network = "devnet"
	}

	parts := []string{
		titleStyle.Render("⚡ LaserSell"),
		mutedStyle.Render(network),
		textStyle.Render("wallet " + logger.ShortenAddress(d.wallet.String())),
	}
	if d.haveSOL {
		parts = append(parts, textStyle.Render(formatSOL(d.lamports)+" SOL"))
	}
	if d.haveUSD1 {
		parts = append(parts, textStyle.Render(formatUSD1(d.usd1)+" USD1"))
	}
	if d.wsConnected {
		parts = append(parts, goodStyle.Render("● stream"))
	} else {
		parts = append(parts, badStyle.Render("● stream"))
	}
	if d.rpcMS > 0 || d.rpcOK {
		rpc := fmt.Sprintf("rpc %dms", d.rpcMS)
		if d.rpcOK {
			parts = append(parts, goodStyle.Render(rpc))
		} else {
			parts = append(parts, badStyle.Render(rpc))
		}
	}
	if d.paused {
		parts = append(parts, warnStyle.Render("⏸ PAUSED"))
	}
	return headerStyle.Render(strings.Join(parts, "  "))
}

// detailView renders live pricing metrics for the selected session.
func (m Model) detailView() string {
	mint, ok := m.selectedMint()
	if !ok {
		return ""
	}
	r, ok := m.state.sessions[mint]
	if !ok || r.state == nil {
		return ""
	}
	parts := []string{
		"fee " + formatBps(uint16(min(r.FeeBps, 10_000))),
		fmt.Sprintf("p95 down/slot %d", r.P95Down),
	}
	if r.CurveComplete != nil {
		if *r.CurveComplete {
			parts = append(parts, "curve complete")
		} else {
			parts = append(parts, "curve active")
		}
	}
	if r.HasProceeds {
		parts = append(parts, "quote "+formatSOL(r.Proceeds)+" SOL")
	}
	return mutedStyle.Render(strings.Join(parts, " | "))
}

func (m Model) logsView() string {
	logs := m.state.logs
	if len(logs) > logPaneLines {
		logs = logs[len(logs)-logPaneLines:]
	}
	if len(logs) == 0 {
		return mutedStyle.Render("no log lines yet")
	}
	lines := make([]string, 0, len(logs))
	for _, l := range logs {
		lines = append(lines, fmt.Sprintf("%s %s %s",
			mutedStyle.Render(l.At.Format("15:04:05")),
			levelStyle(l.Level).Render(fmt.Sprintf("%-5s", l.Level)),
			l.Message))
	}
	return strings.Join(lines, "\n")
}
