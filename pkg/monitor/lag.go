package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/numbergroup/aptmon/pkg/alert"
	"github.com/numbergroup/aptmon/pkg/config"
	"github.com/numbergroup/aptmon/pkg/metrics"
	"github.com/numbergroup/aptmon/pkg/rpc"
)

// PollDuration is the pause between the end of one cycle and the start of the
// next. It is not adjusted for how long the cycle took.
const PollDuration = 120 * time.Second

type LagMonitor struct {
	alertChannels []alert.Alert
	conf          *config.Config
	client        rpc.Fetcher
	pollDuration  time.Duration
	log           logrus.Ext1FieldLogger
}

func NewLagMonitor(conf *config.Config, alertChannels []alert.Alert, client rpc.Fetcher) *LagMonitor {
	out := &LagMonitor{
		alertChannels: alertChannels,
		conf:          conf,
		client:        client,
		pollDuration:  PollDuration,
	}
	out.log = conf.Log.WithFields(logrus.Fields{
		"name":     out.Name(),
		"endpoint": conf.LocalURL,
	})
	return out
}

func (m *LagMonitor) Name() string {
	return "LagMonitor::" + m.conf.LocalURL
}

// Announce tells the alert channels which validator is being watched.
func (m *LagMonitor) Announce(ctx context.Context) error {
	return m.raise(ctx, "startup", alert.Message{
		Message:  "Monitoring Validator: " + m.conf.LocalURL,
		Severity: alert.Info,
		Name:     m.Name(),
	})
}

// cycle runs one fetch and evaluate pass. The statuses it fetches are owned by
// this call only.
func (m *LagMonitor) cycle(ctx context.Context) (Divergence, error) {
	local, localErr := m.client.Fetch(ctx, m.conf.LocalURL)
	remote, remoteErr := m.client.Fetch(ctx, m.conf.RemoteURL)
	if localErr != nil || remoteErr != nil {
		metrics.Cycles.WithLabelValues("rpc_failure").Inc()
		return Divergence{}, m.rpcFailure(ctx, localErr, remoteErr)
	}

	metrics.BlockHeight.WithLabelValues("local").Set(float64(local.BlockHeight))
	metrics.BlockHeight.WithLabelValues("remote").Set(float64(remote.BlockHeight))
	metrics.Epoch.WithLabelValues("local").Set(float64(local.Epoch))
	metrics.Epoch.WithLabelValues("remote").Set(float64(remote.Epoch))

	div := Evaluate(m.log, local, remote)
	if div.HeightLag {
		m.notify(ctx, "height_lag", alert.Message{
			Message: fmt.Sprintf("Block Height of Aptos Validator is Lagging\n\nValidator Height: %d\nRemote Node Height: %d",
				local.BlockHeight, remote.BlockHeight),
			Severity: alert.Error,
			Name:     m.Name(),
			Metadata: map[string]any{
				"validator_height": local.BlockHeight,
				"remote_height":    remote.BlockHeight,
			},
		})
	}
	if div.EpochLag {
		m.notify(ctx, "epoch_lag", alert.Message{
			Message: fmt.Sprintf("Difference in epoch! Aptos Validator is Lagging\n\nValidator Epoch: %d\nRemote Epoch: %d",
				local.Epoch, remote.Epoch),
			Severity: alert.Error,
			Name:     m.Name(),
			Metadata: map[string]any{
				"validator_epoch": local.Epoch,
				"remote_epoch":    remote.Epoch,
			},
		})
	}

	if div.Lagging() {
		metrics.Cycles.WithLabelValues("lagging").Inc()
	} else {
		metrics.Cycles.WithLabelValues("ok").Inc()
	}
	return div, nil
}

// rpcFailure sends a single notice naming every URL that could not be fetched
// and returns the combined fetch error.
func (m *LagMonitor) rpcFailure(ctx context.Context, fetchErrs ...error) error {
	var urls []string
	var out error
	for _, err := range fetchErrs {
		if err == nil {
			continue
		}
		out = errors.CombineErrors(out, err)
		var fetchErr *rpc.FetchError
		if errors.As(err, &fetchErr) {
			urls = append(urls, fetchErr.URL)
		} else {
			urls = append(urls, err.Error())
		}
	}

	m.notify(ctx, "rpc_failure", alert.Message{
		Message:  "RPC Error the following url is down: " + strings.Join(urls, ", "),
		Severity: alert.Error,
		Name:     m.Name(),
		Metadata: map[string]any{"failed_urls": len(urls)},
	})
	return out
}

func (m *LagMonitor) raise(ctx context.Context, kind string, msg alert.Message) error {
	metrics.Alerts.WithLabelValues(kind).Inc()
	return alert.RaiseAll(ctx, m.log, m.alertChannels, msg)
}

// notify raises msg and drops the error; RaiseAll has already logged each
// failing channel.
func (m *LagMonitor) notify(ctx context.Context, kind string, msg alert.Message) {
	_ = m.raise(ctx, kind, msg)
}

// Run loops until ctx is done. Errors never stop it.
func (m *LagMonitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitoring stopped")
			return
		default:
			if _, err := m.cycle(ctx); err != nil {
				m.log.WithError(err).Error("one monitor cycle has failed due to rpc error")
			} else {
				m.log.Info("successful monitor cycle")
			}
		}

		select {
		case <-time.After(m.pollDuration):
			continue
		case <-ctx.Done():
			m.log.Info("monitoring stopped")
			return
		}
	}
}
