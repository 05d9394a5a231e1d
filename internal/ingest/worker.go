package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/northbridge-data/analytics-join/internal/join"
)

// DeliverySource defines the minimal interface the Worker needs from the
// broker consumer.
type DeliverySource interface {
	Deliveries() (<-chan amqp.Delivery, error)
	Close() error
}

// RecordForwarder defines the minimal interface for delivering derived
// records downstream.
type RecordForwarder interface {
	Send(ctx context.Context, records []join.AnalyticsRecord) error
}

// HandleFunc decodes a raw message body and runs the join engine entry point
// for the stream, returning the newly derived records.
type HandleFunc func(ctx context.Context, body []byte) ([]join.AnalyticsRecord, error)

// Worker is the per-stream ingestion loop. The customer and inventory
// streams each run one instance, parameterized by stream name and handler,
// so both get identical ack/reject semantics.
type Worker struct {
	stream    string
	source    DeliverySource
	handle    HandleFunc
	forwarder RecordForwarder
	logger    *slog.Logger
	metrics   *WorkerMetrics
}

type WorkerOption func(*Worker)

func WithStream(stream string) WorkerOption {
	return func(w *Worker) {
		w.stream = stream
	}
}

func WithSource(source DeliverySource) WorkerOption {
	return func(w *Worker) {
		w.source = source
	}
}

func WithHandler(handle HandleFunc) WorkerOption {
	return func(w *Worker) {
		w.handle = handle
	}
}

func WithForwarder(forwarder RecordForwarder) WorkerOption {
	return func(w *Worker) {
		w.forwarder = forwarder
	}
}

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithWorkerMetrics injects prometheus metrics into the Worker.
func WithWorkerMetrics(metrics *WorkerMetrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = metrics
	}
}

func NewWorker(opts ...WorkerOption) *Worker {
	w := &Worker{
		metrics: NewWorkerMetrics(nil), // Always set, unregistered by default
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return w
}

// Run consumes deliveries one at a time until the context is cancelled or
// the delivery channel closes. A closed channel means the broker connection
// is gone, which is fatal and propagates to the caller.
func (w *Worker) Run(ctx context.Context) error {
	if w.source == nil {
		return fmt.Errorf("delivery source is not initialized")
	}
	if w.handle == nil {
		return fmt.Errorf("handler is not initialized")
	}
	if w.forwarder == nil {
		return fmt.Errorf("forwarder is not initialized")
	}
	defer w.source.Close()

	deliveries, err := w.source.Deliveries()
	if err != nil {
		return fmt.Errorf("failed to start consuming %s stream: %w", w.stream, err)
	}

	w.logger.Info("ingestion loop started", "stream", w.stream)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("ingestion loop shutting down", "stream", w.stream)
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for %s stream", w.stream)
			}
			if err := w.process(ctx, d); err != nil {
				// A failed ack or nack means the channel is already dying;
				// bail out now instead of waiting for it to close.
				return err
			}
		}
	}
}

// process runs a single delivery through decode, join, and forward, then
// acks on success or rejects without requeue on any failure. Redelivery and
// dead-lettering of rejected messages is the broker's concern. Processing
// failures are absorbed here; the returned error is reserved for a failed
// ack or nack, which is fatal for the loop.
func (w *Worker) process(ctx context.Context, d amqp.Delivery) error {
	timer := prometheus.NewTimer(w.metrics.ProcessingDuration.WithLabelValues(w.stream))
	defer timer.ObserveDuration()

	records, err := w.handle(ctx, d.Body)
	if err != nil {
		w.logger.Error("error processing message",
			"stream", w.stream,
			"error", err,
			"payload", string(d.Body))
		return w.reject(d)
	}

	if err := w.forwarder.Send(ctx, records); err != nil {
		w.logger.Error("error forwarding records",
			"stream", w.stream,
			"records", len(records),
			"error", err)
		return w.reject(d)
	}

	if err := d.Ack(false); err != nil {
		w.metrics.AckFailures.WithLabelValues(w.stream).Inc()
		return fmt.Errorf("failed to ack message on %s stream: %w", w.stream, err)
	}
	w.metrics.MessagesProcessed.WithLabelValues(w.stream).Inc()
	return nil
}

func (w *Worker) reject(d amqp.Delivery) error {
	// Nack without requeue to avoid a poison-message retry storm; the broker
	// decides about redelivery or dead-lettering.
	if err := d.Nack(false, false); err != nil {
		w.metrics.AckFailures.WithLabelValues(w.stream).Inc()
		return fmt.Errorf("failed to reject message on %s stream: %w", w.stream, err)
	}
	w.metrics.MessagesRejected.WithLabelValues(w.stream).Inc()
	return nil
}
