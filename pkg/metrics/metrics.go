package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// Cycles counts monitor cycles by result (ok, lagging, rpc_failure)
	Cycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aptmon_monitor_cycles_total",
			Help: "Total number of monitor cycles",
		},
		[]string{"result"},
	)

	// FetchAttempts counts individual status requests
	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aptmon_fetch_attempts_total",
			Help: "Total number of node status requests",
		},
		[]string{"result"},
	)

	// Alerts counts notifications raised by kind
	Alerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aptmon_alerts_total",
			Help: "Total number of alerts raised",
		},
		[]string{"kind"},
	)

	BlockHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aptmon_block_height",
			Help: "Last seen block height per node",
		},
		[]string{"node"},
	)

	Epoch = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aptmon_epoch",
			Help: "Last seen epoch per node",
		},
		[]string{"node"},
	)
)

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, log logrus.Ext1FieldLogger, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("failed to shut down metrics server")
		}
	}()

	log.WithField("addr", addr).Info("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server failed")
	}
	return nil
}
