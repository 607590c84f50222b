package alert

import (
	"context"

	"github.com/PagerDuty/go-pagerduty"
	"github.com/numbergroup/aptmon/pkg/config"
)

func NewPagerduty(conf *config.Config) Pagerduty {
	return Pagerduty{
		RoutingKey: conf.Pagerduty.RoutingKey,
		Service:    conf.Pagerduty.Service,
	}
}

type Pagerduty struct {
	RoutingKey string
	Service    string
}

// Raise only pages for errors; informational messages such as the startup
// announcement are dropped.
func (p Pagerduty) Raise(ctx context.Context, msg Message) error {
	if msg.Severity != Error {
		return nil
	}

	payload := &pagerduty.V2Payload{
		Summary:   msg.Message,
		Severity:  string(msg.Severity),
		Component: msg.Name,
		Source:    p.Service,
		Details:   msg.Metadata,
	}

	_, err := pagerduty.ManageEventWithContext(ctx, pagerduty.V2Event{
		RoutingKey: p.RoutingKey,
		Action:     "trigger",
		Payload:    payload,
	})
	return err
}
