package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/camuig/stock-watch/internal/config"
	"github.com/camuig/stock-watch/internal/logger"
	"github.com/camuig/stock-watch/internal/monitor"
)

type Notifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
	logger  *logger.Logger
}

func NewNotifier(cfg config.TelegramConfig, log *logger.Logger) *Notifier {
	if !cfg.Enabled {
		return &Notifier{enabled: false, logger: log}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Error("failed to create telegram bot", "error", err)
		return &Notifier{enabled: false, logger: log}
	}

	log.Info("telegram bot connected", "username", bot.Self.UserName)

	return &Notifier{
		bot:     bot,
		chatID:  cfg.ChatID,
		enabled: true,
		logger:  log,
	}
}

func (n *Notifier) NotifyAlert(alert monitor.Alert) {
	n.send(FormatAlert(alert))
}

func (n *Notifier) NotifyError(context string, err error) {
	msg := fmt.Sprintf("⚠️ *Error* [%s]\n%s", escape(context), escape(err.Error()))
	n.send(msg)
}

// FormatAlert renders an alert as a Markdown message.
func FormatAlert(a monitor.Alert) string {
	var sb strings.Builder

	title := a.Symbol
	if title == "" {
		title = "Reminder"
	}
	sb.WriteString(fmt.Sprintf("🚨 *STOCK ALERT: %s*\n", escape(title)))

	if a.ObservedPrice.Valid {
		sb.WriteString(fmt.Sprintf("Current price: $%s\n", a.ObservedPrice.Decimal.StringFixed(2)))
	}
	if delta := a.FormatDelta(); delta != "" {
		sb.WriteString(fmt.Sprintf("Buy price: $%s | Change: %s\n", a.BuyPrice.Decimal.StringFixed(2), escape(delta)))
	}

	sb.WriteString("\n*Conditions met:*\n")
	for _, reason := range strings.Split(a.Reason, "; ") {
		sb.WriteString("• " + escape(reason) + "\n")
	}

	if a.UserOpinion != "" {
		sb.WriteString("\n_Note:_ " + escape(a.UserOpinion) + "\n")
	}
	sb.WriteString("\n`" + strings.ReplaceAll(a.RawText, "`", "'") + "`")
	return sb.String()
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func (n *Notifier) send(text string) {
	if !n.enabled {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("send telegram message", "error", err)
	}
}
