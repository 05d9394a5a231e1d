package ingest

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

// mockChannel implements amqpChannel for testing.
type mockChannel struct {
	declaredQueue   string
	declaredDurable bool
	prefetchCount   int
	consumeQueue    string
	autoAck         bool
	closed          bool
	deliveries      chan amqp.Delivery
}

func (m *mockChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	m.prefetchCount = prefetchCount
	return nil
}

func (m *mockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	m.declaredQueue = name
	m.declaredDurable = durable
	return amqp.Queue{Name: name}, nil
}

func (m *mockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	m.consumeQueue = queue
	m.autoAck = autoAck
	return m.deliveries, nil
}

func (m *mockChannel) Close() error {
	m.closed = true
	return nil
}

func TestConsumer_Deliveries(t *testing.T) {
	mock := &mockChannel{deliveries: make(chan amqp.Delivery)}

	consumer, err := NewConsumer(
		withChannel(mock),
		WithQueue("customer_data"),
		WithPrefetch(25),
		WithConsumerLogger(testLogger()),
	)
	require.NoError(t, err)

	deliveries, err := consumer.Deliveries()
	require.NoError(t, err)
	require.NotNil(t, deliveries)

	require.Equal(t, "customer_data", mock.declaredQueue)
	require.True(t, mock.declaredDurable, "queues are durable")
	require.Equal(t, 25, mock.prefetchCount)
	require.Equal(t, "customer_data", mock.consumeQueue)
	require.False(t, mock.autoAck, "consumption uses manual acknowledgment")
}

func TestConsumer_DefaultPrefetch(t *testing.T) {
	mock := &mockChannel{deliveries: make(chan amqp.Delivery)}

	consumer, err := NewConsumer(
		withChannel(mock),
		WithQueue("inventory_data"),
		WithConsumerLogger(testLogger()),
	)
	require.NoError(t, err)

	_, err = consumer.Deliveries()
	require.NoError(t, err)
	require.Equal(t, defaultPrefetch, mock.prefetchCount)
}

func TestConsumer_RequiresQueue(t *testing.T) {
	_, err := NewConsumer(withChannel(&mockChannel{}))
	require.Error(t, err)
}

func TestConsumer_Close(t *testing.T) {
	mock := &mockChannel{}
	consumer, err := NewConsumer(withChannel(mock), WithQueue("customer_data"), WithConsumerLogger(testLogger()))
	require.NoError(t, err)

	require.NoError(t, consumer.Close())
	require.True(t, mock.closed)
}
