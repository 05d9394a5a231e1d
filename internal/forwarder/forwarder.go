// Package forwarder delivers analytics batches to the downstream analytics
// sink over HTTP. Transient failures (network errors and non-2xx responses)
// are retried with capped exponential backoff; once the attempt ceiling is
// reached the batch is dropped and the error is returned to the caller, which
// rejects the triggering broker message. Batches are never queued internally.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/northbridge-data/analytics-join/internal/join"
)

const (
	defaultPath        = "/analytics/data"
	defaultMaxAttempts = 3
	defaultTimeout     = 5 * time.Second

	defaultInitialInterval = 1 * time.Second
	defaultMaxInterval     = 8 * time.Second
)

type Option func(*Forwarder)

// WithBaseURL sets the analytics sink base URL, e.g. http://localhost:8000.
func WithBaseURL(baseURL string) Option {
	return func(f *Forwarder) {
		f.baseURL = baseURL
	}
}

// WithPath overrides the sink endpoint path.
func WithPath(path string) Option {
	return func(f *Forwarder) {
		f.path = path
	}
}

// WithHTTPClient overrides the HTTP client, including its per-attempt timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Forwarder) {
		f.httpClient = client
	}
}

// WithMaxAttempts sets the delivery attempt ceiling per batch.
func WithMaxAttempts(attempts uint) Option {
	return func(f *Forwarder) {
		f.maxAttempts = attempts
	}
}

// WithBackoffIntervals sets the initial and capped maximum delay between
// delivery attempts.
func WithBackoffIntervals(initial, ceiling time.Duration) Option {
	return func(f *Forwarder) {
		f.initialInterval = initial
		f.maxInterval = ceiling
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithForwarderMetrics injects prometheus metrics into the Forwarder.
func WithForwarderMetrics(metrics *ForwarderMetrics) Option {
	return func(f *Forwarder) {
		f.metrics = metrics
	}
}

type Forwarder struct {
	baseURL         string
	path            string
	httpClient      *http.Client
	maxAttempts     uint
	initialInterval time.Duration
	maxInterval     time.Duration
	logger          *slog.Logger
	metrics         *ForwarderMetrics
}

func New(opts ...Option) (*Forwarder, error) {
	f := &Forwarder{
		path:            defaultPath,
		httpClient:      &http.Client{Timeout: defaultTimeout},
		maxAttempts:     defaultMaxAttempts,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		metrics:         NewForwarderMetrics(nil), // Always set, unregistered by default
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.baseURL == "" {
		return nil, errors.New("analytics sink base URL is required")
	}
	if f.maxAttempts == 0 {
		return nil, errors.New("max attempts must be at least 1")
	}
	if f.logger == nil {
		f.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return f, nil
}

// Send wraps the records in a freshly identified batch and delivers it to the
// sink. An empty record set is a no-op. The returned error is non-nil only
// after the attempt ceiling has been exhausted.
func (f *Forwarder) Send(ctx context.Context, records []join.AnalyticsRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := join.AnalyticsBatch{
		BatchID:     "batch-" + uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Records:     records,
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics batch: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.initialInterval
	bo.MaxInterval = f.maxInterval

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if attempt > 1 {
			f.logger.Warn("retrying analytics batch", "batch_id", batch.BatchID, "attempt", attempt)
			f.metrics.SendRetries.Inc()
		}
		return struct{}{}, f.post(ctx, body)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(f.maxAttempts))
	if err != nil {
		f.metrics.BatchesDropped.Inc()
		f.logger.Error("dropping analytics batch after exhausting retries",
			"batch_id", batch.BatchID,
			"records", len(records),
			"attempts", attempt,
			"error", err)
		return fmt.Errorf("failed to send analytics batch %s: %w", batch.BatchID, err)
	}

	f.metrics.BatchesSent.Inc()
	f.metrics.RecordsForwarded.Add(float64(len(records)))
	f.logger.Info("sent analytics batch", "batch_id", batch.BatchID, "records", len(records))
	return nil
}

func (f *Forwarder) post(ctx context.Context, body []byte) error {
	timer := prometheus.NewTimer(f.metrics.RequestDuration)
	defer timer.ObserveDuration()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+f.path, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("analytics sink returned status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
