package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/numbergroup/aptmon/pkg/metrics"
)

const (
	// MaxAttempts is the total number of requests made before giving up.
	MaxAttempts = 5
	// BackoffStep is multiplied by the attempt number to get the delay.
	BackoffStep = 2 * time.Second
)

// Fetcher is what the monitor and the command bot need from a node client.
type Fetcher interface {
	Fetch(ctx context.Context, baseURL string) (*NodeStatus, error)
}

// FetchError is returned once all attempts against URL have failed.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("rpc failure for %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type SleepFunc func(ctx context.Context, d time.Duration) error

// Client is stateless and safe for concurrent use.
type Client struct {
	http  *resty.Client
	log   logrus.Ext1FieldLogger
	sleep SleepFunc
}

var statusAPI = sonic.Config{UseNumber: true}.Froze()

func NewClient(log logrus.Ext1FieldLogger) *Client {
	return &Client{
		http: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("Accept", "application/json"),
		log:   log,
		sleep: sleepContext,
	}
}

// WithSleep replaces the backoff sleep, used by tests.
func (c *Client) WithSleep(sleep SleepFunc) *Client {
	c.sleep = sleep
	return c
}

// Backoff returns the delay after the given zero based failed attempt.
func Backoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * BackoffStep
}

// Fetch GETs the status document at baseURL. It makes up to MaxAttempts
// requests, sleeping Backoff(i) after failed attempt i. Failure is only ever
// reported through a *FetchError.
func (c *Client) Fetch(ctx context.Context, baseURL string) (*NodeStatus, error) {
	log := c.log.WithField("url", baseURL)
	var lastErr error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		status, err := c.fetchOnce(ctx, baseURL)
		if err == nil {
			metrics.FetchAttempts.WithLabelValues("ok").Inc()
			return status, nil
		}
		metrics.FetchAttempts.WithLabelValues("error").Inc()
		lastErr = err
		log.WithError(err).WithField("attempt", attempt+1).Errorf("there was an issue with the rpc call, check if %s is up", baseURL)

		if attempt == MaxAttempts-1 {
			break
		}
		if err := c.sleep(ctx, Backoff(attempt)); err != nil {
			return nil, &FetchError{URL: baseURL, Attempts: attempt + 1, Err: err}
		}
	}
	log.Errorf("retried %d times, giving up on rpc call", MaxAttempts)
	return nil, &FetchError{URL: baseURL, Attempts: MaxAttempts, Err: lastErr}
}

func (c *Client) fetchOnce(ctx context.Context, baseURL string) (*NodeStatus, error) {
	resp, err := c.http.R().SetContext(ctx).Get(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to perform status request")
	}
	if resp.IsError() {
		return nil, errors.Errorf("unexpected status code %d from status request", resp.StatusCode())
	}

	fields := map[string]any{}
	if err := statusAPI.Unmarshal(resp.Body(), &fields); err != nil {
		return nil, errors.Wrap(err, "failed to decode status response")
	}
	return parseStatus(baseURL, fields)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
