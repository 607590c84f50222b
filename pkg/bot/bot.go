// Package bot answers status commands sent to the Telegram bot.
package bot

import (
	"context"

	"github.com/cockroachdb/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/numbergroup/aptmon/pkg/alert"
	"github.com/numbergroup/aptmon/pkg/config"
	"github.com/numbergroup/aptmon/pkg/rpc"
)

const Greeting = "Hi there, I am Aptmon.\nI am here to monitor you Aptos Validator node\n"

// ErrUpdatesClosed is returned by Serve when the update stream ends on its own.
var ErrUpdatesClosed = errors.New("telegram update stream closed")

// UpdatesGetter is the part of *tgbotapi.BotAPI used to check that polling works.
type UpdatesGetter interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// CheckUpdates makes one non-blocking getUpdates call. GetUpdatesChan retries
// failures forever and only closes its channel after StopReceivingUpdates.
func CheckUpdates(api UpdatesGetter) error {
	check := tgbotapi.NewUpdate(0)
	check.Timeout = 0
	check.Limit = 1
	if _, err := api.GetUpdates(check); err != nil {
		return errors.Wrap(err, "failed to poll telegram updates")
	}
	return nil
}

type Handler struct {
	conf   *config.Config
	api    alert.Sender
	client rpc.Fetcher
	log    logrus.Ext1FieldLogger
}

func NewHandler(conf *config.Config, api alert.Sender, client rpc.Fetcher) *Handler {
	return &Handler{
		conf:   conf,
		api:    api,
		client: client,
		log:    conf.Log.WithField("name", "bot"),
	}
}

// Serve handles updates one at a time until ctx is done or the channel closes.
func (h *Handler) Serve(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrUpdatesClosed
			}
			h.Handle(ctx, update)
		}
	}
}

// Handle replies to a single command. Non-command messages and unknown
// commands are ignored. Every status command does its own fetch.
func (h *Handler) Handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}

	log := h.log.WithField("command", msg.Command())
	var text string
	switch msg.Command() {
	case "help", "start":
		text = Greeting
	case "status":
		text = "Validator Status: \n" + h.describe(ctx, h.conf.LocalURL)
	case "rstatus":
		text = "Remote Node Status: \n" + h.describe(ctx, h.conf.RemoteURL)
	default:
		log.Debug("ignoring unknown command")
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	if err := alert.SendUntilDelivered(ctx, log, h.api, reply); err != nil {
		log.WithError(err).Warn("reply abandoned")
		return
	}
	log.Info("replied to command")
}

func (h *Handler) describe(ctx context.Context, url string) string {
	status, err := h.client.Fetch(ctx, url)
	if err != nil {
		return "RPC Failure: " + err.Error()
	}
	return status.String()
}
