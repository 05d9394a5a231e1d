// Package ingest consumes entity update messages from the broker and drives
// them through the join engine and the forwarder. One Worker runs per queue;
// both share a single Joiner. Messages are acknowledged only after the whole
// processing chain has succeeded; any failure rejects the message without
// requeue so that a poison message cannot loop.
package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultPrefetch = 10

// amqpChannel is an interface for the subset of amqp091.Channel methods we
// use. This allows for mocking in tests.
type amqpChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

type Consumer struct {
	url      string
	queue    string
	prefetch int
	conn     *amqp.Connection
	channel  amqpChannel
	logger   *slog.Logger
}

type ConsumerOption func(*Consumer)

func WithBrokerURL(url string) ConsumerOption {
	return func(c *Consumer) {
		c.url = url
	}
}

func WithQueue(queue string) ConsumerOption {
	return func(c *Consumer) {
		c.queue = queue
	}
}

// WithPrefetch bounds the number of unacknowledged messages in flight.
func WithPrefetch(prefetch int) ConsumerOption {
	return func(c *Consumer) {
		c.prefetch = prefetch
	}
}

func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// withChannel is used for testing to inject a mock channel.
func withChannel(channel amqpChannel) ConsumerOption {
	return func(c *Consumer) {
		c.channel = channel
	}
}

// NewConsumer dials the broker and opens a channel for the configured queue.
// A connection failure is returned to the caller and is fatal for the
// process; there is no reconnect loop.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	c := &Consumer{prefetch: defaultPrefetch}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if c.queue == "" {
		return nil, errors.New("queue name is required")
	}

	// If a channel was injected (for testing), skip dialing a real one
	if c.channel != nil {
		return c, nil
	}

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	c.conn = conn
	c.channel = channel
	return c, nil
}

// Deliveries declares the durable queue, applies the prefetch limit, and
// starts a manually acknowledged subscription. The returned channel is
// closed by the client when the connection is lost.
func (c *Consumer) Deliveries() (<-chan amqp.Delivery, error) {
	if _, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare queue %q: %w", c.queue, err)
	}
	if err := c.channel.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set prefetch on queue %q: %w", c.queue, err)
	}
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from queue %q: %w", c.queue, err)
	}
	c.logger.Info("consuming from queue", "queue", c.queue, "prefetch", c.prefetch)
	return deliveries, nil
}

func (c *Consumer) Close() error {
	if err := c.channel.Close(); err != nil {
		return err
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
