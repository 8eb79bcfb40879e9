// internal/alert/telegram.go
package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lasersell/lasersell/internal/config"
	"github.com/lasersell/lasersell/internal/events"
	"github.com/lasersell/lasersell/internal/logger"
)

const (
	queueSize      = 64
	updatesTimeout = 60
)

var lamportsPerSOL = decimal.NewFromInt(int64(solana.LAMPORTS_PER_SOL))

// BotAPI is the subset of tgbotapi.BotAPI the alerter needs.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Telegram pushes sell outcomes to a chat and accepts a few control
// commands from the same chat.
type Telegram struct {
	api      BotAPI
	chatID   int64
	commands chan<- events.Command
	logger   *zap.Logger

	queue chan string

	mu     sync.Mutex
	profit map[solana.PublicKey]int64
}

// NewTelegram connects to the bot API with the configured token.
func NewTelegram(cfg config.TelegramConfig, commands chan<- events.Command, log *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	log.Info("🤖 Telegram bot connected", zap.String("username", api.Self.UserName))
	return NewTelegramWithAPI(api, cfg.ChatID, commands, log), nil
}

func NewTelegramWithAPI(api BotAPI, chatID int64, commands chan<- events.Command, log *zap.Logger) *Telegram {
	return &Telegram{
		api:      api,
		chatID:   chatID,
		commands: commands,
		logger:   log.Named("telegram"),
		queue:    make(chan string, queueSize),
		profit:   make(map[solana.PublicKey]int64),
	}
}

// Types lists the notifications worth a chat message.
func (t *Telegram) Types() []events.EventType {
	return []events.EventType{
		events.TypeStartup,
		events.TypeSellScheduled,
		events.TypeSellComplete,
		events.TypeSessionError,
		events.TypePauseState,
	}
}

// Handle formats the event and queues it. It never blocks the bus.
func (t *Telegram) Handle(_ context.Context, event events.Event) error {
	var text string
	switch e := event.(type) {
	case events.Startup:
		network := "mainnet"
		if e.Devnet {
			network = "devnet"
		}
		text = fmt.Sprintf("🚀 LaserSell started on %s\nWallet: %s", network, logger.ShortenAddress(e.WalletPubkey.String()))
	case events.SellScheduled:
		t.mu.Lock()
		t.profit[e.Mint] = e.ProfitLamports
		t.mu.Unlock()
		return nil
	case events.SellComplete:
		t.mu.Lock()
		profit, ok := t.profit[e.Mint]
		delete(t.profit, e.Mint)
		t.mu.Unlock()
		text = FormatSellComplete(e, profit, ok)
	case events.SessionError:
		t.mu.Lock()
		delete(t.profit, e.Mint)
		t.mu.Unlock()
		text = fmt.Sprintf("❌ Sell failed\nMint: %s\n%s", logger.ShortenAddress(e.Mint.String()), e.Error)
	case events.PauseState:
		if e.Paused {
			text = "⏸ New sells paused"
		} else {
			text = "▶️ New sells resumed"
		}
	default:
		return nil
	}

	select {
	case t.queue <- text:
	default:
		t.logger.Warn("telegram_queue_full", zap.String("event", string(event.Type())))
	}
	return nil
}

// FormatSellComplete renders a confirmed sell. Profit is included when the
// scheduling signal carried it.
func FormatSellComplete(e events.SellComplete, profitLamports int64, withProfit bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Sold %s\n", logger.ShortenAddress(e.Mint.String()))
	fmt.Fprintf(&b, "Reason: %s\n", e.Reason)
	slippage := decimal.NewFromInt(int64(e.SlippageBps)).Div(decimal.NewFromInt(100))
	fmt.Fprintf(&b, "Slippage: %s%%\n", slippage.String())
	if withProfit {
		fmt.Fprintf(&b, "Profit: %s SOL\n", LamportsToSOL(profitLamports).StringFixed(4))
	}
	fmt.Fprintf(&b, "Tx: %s", e.Signature)
	return b.String()
}

func LamportsToSOL(lamports int64) decimal.Decimal {
	return decimal.NewFromInt(lamports).Div(lamportsPerSOL)
}

// Run delivers queued messages and listens for chat commands until ctx is done.
func (t *Telegram) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = updatesTimeout
	updates := t.api.GetUpdatesChan(u)
	defer t.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case text := <-t.queue:
			t.send(text)
		case update, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if update.Message != nil {
				t.handleMessage(update.Message)
			}
		}
	}
}

func (t *Telegram) send(text string) {
	if _, err := t.api.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		t.logger.Warn("telegram_send_failed", zap.Error(err))
	}
}

func (t *Telegram) handleMessage(msg *tgbotapi.Message) {
	if msg.Chat == nil || msg.Chat.ID != t.chatID || !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "pause":
		t.enqueue(events.TogglePauseNewSessions{})
	case "sell":
		mint, err := solana.PublicKeyFromBase58(strings.TrimSpace(msg.CommandArguments()))
		if err != nil {
			t.send("Usage: /sell <mint>")
			return
		}
		if t.enqueue(events.RequestExitSignal{Mint: mint}) {
			t.send(fmt.Sprintf("📤 Manual sell requested for %s", logger.ShortenAddress(mint.String())))
		}
	default:
		t.send("Commands: /pause, /sell <mint>")
	}
}

func (t *Telegram) enqueue(cmd events.Command) bool {
	if t.commands == nil {
		return false
	}
	select {
	case t.commands <- cmd:
		return true
	default:
		t.send("Engine busy, try again")
		return false
	}
}
