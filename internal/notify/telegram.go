// Package notify delivers review reminders over Telegram. The chat UI
// itself lives in another service; this is delivery only.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/learncore/internal/logger"
)

// Telegram sends reminder digests through a bot account.
type Telegram struct {
	bot *tgbotapi.BotAPI
	log *logger.Logger
}

// NewTelegram authenticates the bot.
func NewTelegram(token string, log *logger.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %v", err)
	}
	return &Telegram{bot: bot, log: log.With("component", "notify")}, nil
}

// SendReminder implements the scheduler.Notifier interface
func (t *Telegram) SendReminder(chatID int64, dueCount int) error {
	text := fmt.Sprintf("You have %d reviews waiting. A few minutes now keeps them short.", dueCount)
	if dueCount == 1 {
		text = "You have 1 review waiting. It only takes a moment."
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder: %v", err)
	}
	return nil
}
