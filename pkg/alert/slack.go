package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/numbergroup/aptmon/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

func NewSlack(conf *config.Config) Slack {
	return Slack{
		conf: conf.Slack,
		log:  conf.Log,
	}
}

type Slack struct {
	conf config.Slack
	log  logrus.Ext1FieldLogger
}

func (s Slack) Raise(ctx context.Context, msg Message) error {
	attachment := slack.Attachment{
		Color:  s.severityColor(msg.Severity),
		Fields: s.buildMetadataFields(msg),
	}

	// Webhook is prioritized, but if it's empty, we can use the channel and token
	if len(s.conf.WebhookURL) != 0 {
		err := slack.PostWebhookContext(ctx, s.conf.WebhookURL, &slack.WebhookMessage{
			Text:        s.formatMessage(msg),
			Attachments: []slack.Attachment{attachment},
		})
		if err != nil {
			s.log.WithError(err).WithField("name", msg.Name).Error("failed to send Slack alert via webhook")
		}
		return err
	}

	if len(s.conf.Channel) != 0 && len(s.conf.Token) != 0 {
		api := slack.New(s.conf.Token)
		_, _, err := api.PostMessageContext(ctx, s.conf.Channel,
			slack.MsgOptionText(s.formatMessage(msg), false),
			slack.MsgOptionAttachments(attachment),
		)
		if err != nil {
			s.log.WithError(err).WithField("name", msg.Name).Error("failed to send Slack alert via channel")
		}
		return err
	}

	return errors.New("no valid Slack configuration found for alerting")
}

func (s Slack) formatMessage(msg Message) string {
	return fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(msg.Severity)), msg.Name, msg.Message)
}

func (s Slack) severityColor(severity Severity) string {
	switch severity {
	case Error:
		return "danger"
	case Info:
		return "good"
	default:
		return "warning"
	}
}

func (s Slack) buildMetadataFields(msg Message) []slack.AttachmentField {
	keys := make([]string, 0, len(msg.Metadata))
	for key := range msg.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var fields []slack.AttachmentField
	for _, key := range keys {
		fields = append(fields, slack.AttachmentField{
			Title: key,
			Value: fmt.Sprintf("%v", msg.Metadata[key]),
			Short: true,
		})
	}

	return fields
}
