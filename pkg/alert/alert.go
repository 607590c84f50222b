package alert

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

type Message struct {
	Message  string
	Severity Severity
	Name     string
	Metadata map[string]any
}

type Alert interface {
	Raise(ctx context.Context, msg Message) error
}

type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
	Info    Severity = "info"
)

// RaiseAll sends msg to every channel in order. Failures are logged and the
// remaining channels are still tried.
func RaiseAll(ctx context.Context, log logrus.Ext1FieldLogger, channels []Alert, msg Message) error {
	var out error
	for _, ch := range channels {
		if err := ch.Raise(ctx, msg); err != nil {
			log.WithError(err).WithField("name", msg.Name).Error("failed to raise alert")
			out = errors.CombineErrors(out, err)
		}
	}
	return out
}
