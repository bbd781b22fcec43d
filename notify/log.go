package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Log writes messages to a logger. It is the sender when no Telegram bot is
// configured.
type Log struct {
	log zerolog.Logger
}

func NewLog(l zerolog.Logger) *Log {
	return &Log{log: l}
}

func (l *Log) Send(ctx context.Context, text string) error {
	l.log.Info().Str("channel", "notify").Msg(text)
	return nil
}
