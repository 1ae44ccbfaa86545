// Package telegram sends harvest cycle summaries via the Telegram Bot API.
// It formats per-source results into a human-readable message and handles
// delivery with retry logic for reliability.
package telegram

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hobbyfetch/cardharvest/internal/scheduler"
)

// sender is the slice of *tgbotapi.BotAPI the notifier uses; tests swap
// in a double so the retry path runs without the Telegram API.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier delivers cycle summaries to a Telegram chat.
type Notifier struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	sleep          func(time.Duration)
}

// NewNotifier creates a notifier for the given bot token and chat.
func NewNotifier(botToken, chatID string) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	return &Notifier{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     3,
		retryDelayBase: time.Second,
		sleep:          time.Sleep,
	}, nil
}

// SendCycleSummary reports a completed cycle, retrying on delivery failures.
func (n *Notifier) SendCycleSummary(started time.Time, results []scheduler.HarvestResult) error {
	msg := tgbotapi.NewMessage(n.chatID, formatSummary(started, results))
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < n.maxRetries; i++ {
		_, err := n.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		n.sleep(n.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", n.maxRetries, lastErr)
}

// formatSummary formats cycle results into a Telegram message.
func formatSummary(started time.Time, results []scheduler.HarvestResult) string {
	message := "🃏 *Harvest Cycle Finished*\n\n"
	message += fmt.Sprintf("📅 Started: %s\n\n", escapeMarkdownV2(started.Format("2006-01-02 15:04:05")))

	total := 0
	for _, r := range results {
		total += r.Persisted
		if r.Err != nil {
			message += fmt.Sprintf("❌ %s: %d records, then failed: %s\n",
				escapeMarkdownV2(string(r.Source)), r.Persisted, escapeMarkdownV2(r.Err.Error()))
			continue
		}
		message += fmt.Sprintf("✅ %s: %d records\n", escapeMarkdownV2(string(r.Source)), r.Persisted)
	}

	message += fmt.Sprintf("\nTotal: *%d* records", total)
	return message
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	result := ""
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			result += "\\" + string(char)
		default:
			result += string(char)
		}
	}
	return result
}
