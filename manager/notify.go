package manager

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"goldclose/engine"
	"goldclose/logger"
)

// TelegramNotifier pushes executed close decisions to a Telegram chat
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier connects the bot; token and chat id come from config
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
	}
	logger.Infof("✅ Telegram notifications enabled (@%s)", bot.Self.UserName)
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// NotifyClose sends a close summary; delivery failures are logged only
func (n *TelegramNotifier) NotifyClose(d engine.ClosingDecision, results []CloseResult) {
	var b strings.Builder
	var realized float64
	ok, failed := 0, 0
	for _, r := range results {
		if r.Success {
			ok++
			realized += r.Profit
		} else {
			failed++
		}
	}

	fmt.Fprintf(&b, "🔔 Position close: %s\n", d.Method)
	fmt.Fprintf(&b, "Closed %d tickets", ok)
	if failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", failed)
	}
	fmt.Fprintf(&b, "\nRealized: %.2f USD (expected %.2f)\n", realized, d.ExpectedPnL)
	fmt.Fprintf(&b, "Confidence: %.0f%%\n%s", d.Confidence, d.Reason)

	msg := tgbotapi.NewMessage(n.chatID, b.String())
	if _, err := n.bot.Send(msg); err != nil {
		logger.Warnf("⚠️ Telegram notification failed: %v", err)
	}
}
