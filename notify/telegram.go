package notify

import (
	"context"
	"errors"
	"fmt"

	gobot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var ErrTelegramConfig = errors.New("telegram: token and chat id are required")

// Telegram sends messages to one chat.
type Telegram struct {
	bot    *gobot.BotAPI
	chatID int64
}

// NewTelegram connects with token; the Bot API is asked for the bot's own
// identity as a credentials check.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, ErrTelegramConfig
	}
	bot, err := gobot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return newTelegram(bot, chatID), nil
}

func newTelegram(bot *gobot.BotAPI, chatID int64) *Telegram {
	bot.Debug = false
	return &Telegram{bot: bot, chatID: chatID}
}

func (t *Telegram) Username() string {
	return t.bot.Self.UserName
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gobot.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}
