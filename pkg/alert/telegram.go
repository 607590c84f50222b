package alert

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Sender is the part of *tgbotapi.BotAPI used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SendUntilDelivered retries c immediately and without limit until the send
// succeeds. Only ctx cancellation (process shutdown) stops it, so callers must
// not expect bounded latency.
func SendUntilDelivered(ctx context.Context, log logrus.Ext1FieldLogger, api Sender, c tgbotapi.Chattable) error {
	for {
		_, err := api.Send(c)
		if err == nil {
			return nil
		}
		log.WithError(err).Info("failed to send telegram message, retrying")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
}

// Telegram delivers alerts to a single chat.
type Telegram struct {
	api    Sender
	chatID int64
	log    logrus.Ext1FieldLogger
}

func NewTelegram(log logrus.Ext1FieldLogger, api Sender, chatID int64) *Telegram {
	return &Telegram{
		api:    api,
		chatID: chatID,
		log:    log.WithField("chat_id", chatID),
	}
}

// Send posts text to the configured chat, blocking until it is delivered.
func (t *Telegram) Send(ctx context.Context, text string) error {
	return SendUntilDelivered(ctx, t.log, t.api, tgbotapi.NewMessage(t.chatID, text))
}

func (t *Telegram) Raise(ctx context.Context, msg Message) error {
	return t.Send(ctx, msg.Message)
}
