package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockConsumerChannel struct {
	mock.Mock
}

func (m *MockConsumerChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind, durable, autoDelete, internal, noWait, args).Error(0)
}

func (m *MockConsumerChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	ret := m.Called(name, durable, autoDelete, exclusive, noWait, args)
	return ret.Get(0).(amqp.Queue), ret.Error(1)
}

func (m *MockConsumerChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	return m.Called(name, key, exchange, noWait, args).Error(0)
}

func (m *MockConsumerChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	return m.Called(prefetchCount, prefetchSize, global).Error(0)
}

func (m *MockConsumerChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	ret := m.Called(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(<-chan amqp.Delivery), ret.Error(1)
}

func (m *MockConsumerChannel) Cancel(consumer string, noWait bool) error {
	return m.Called(consumer, noWait).Error(0)
}

func (m *MockConsumerChannel) Close() error {
	return m.Called().Error(0)
}

var receiptConsumerConfig = ConsumerConfig{
	ExchangeName: "lending",
	QueueName:    "receipts",
	ConsumerTag:  "tag",
	RoutingKeys:  []string{RoutingKeyCollectionRecorded},
}

type fakeAcknowledger struct {
	mu     sync.Mutex
	nacked []bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error { return nil }

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, requeue)
	return nil
}

func (a *fakeAcknowledger) Reject(uint64, bool) error { return nil }

func expectTopology(ch *MockConsumerChannel) {
	ch.On("ExchangeDeclare", "lending", amqp.ExchangeTopic, true, false, false, false, amqp.Table(nil)).Return(nil).Once()
	ch.On("QueueDeclare", "receipts", true, false, false, false, amqp.Table(nil)).Return(amqp.Queue{Name: "receipts"}, nil).Once()
	ch.On("QueueBind", "receipts", RoutingKeyCollectionRecorded, "lending", false, amqp.Table(nil)).Return(nil).Once()
	ch.On("Qos", 1, 0, false).Return(nil).Once()
}

func TestNewConsumer(t *testing.T) {
	t.Run("declares topology", func(t *testing.T) {
		ch := new(MockConsumerChannel)
		expectTopology(ch)

		c, err := NewConsumer(ch, receiptConsumerConfig, func(context.Context, amqp.Delivery) {}, logger)

		require.NoError(t, err)
		assert.Equal(t, "receipts", c.queueName)
		ch.AssertExpectations(t)
	})

	t.Run("declares a dead-letter queue and prefetch", func(t *testing.T) {
		ch := new(MockConsumerChannel)
		ch.On("ExchangeDeclare", "lending", amqp.ExchangeTopic, true, false, false, false, amqp.Table(nil)).Return(nil).Once()
		ch.On("ExchangeDeclare", "lending.dlx", amqp.ExchangeFanout, true, false, false, false, amqp.Table(nil)).Return(nil).Once()
		ch.On("QueueDeclare", "receipts.dead", true, false, false, false, amqp.Table(nil)).Return(amqp.Queue{Name: "receipts.dead"}, nil).Once()
		ch.On("QueueBind", "receipts.dead", "", "lending.dlx", false, amqp.Table(nil)).Return(nil).Once()
		ch.On("QueueDeclare", "receipts", true, false, false, false, amqp.Table{"x-dead-letter-exchange": "lending.dlx"}).Return(amqp.Queue{Name: "receipts"}, nil).Once()
		ch.On("QueueBind", "receipts", RoutingKeyCollectionRecorded, "lending", false, amqp.Table(nil)).Return(nil).Once()
		ch.On("Qos", 5, 0, false).Return(nil).Once()

		cfg := receiptConsumerConfig
		cfg.DeadLetterExchange = "lending.dlx"
		cfg.Prefetch = 5
		_, err := NewConsumer(ch, cfg, func(context.Context, amqp.Delivery) {}, logger)

		require.NoError(t, err)
		ch.AssertExpectations(t)
	})

	t.Run("closes the channel when binding fails", func(t *testing.T) {
		ch := new(MockConsumerChannel)
		ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		ch.On("QueueDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(amqp.Queue{Name: "receipts"}, nil).Once()
		ch.On("QueueBind", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("access refused")).Once()
		ch.On("Close").Return(nil).Once()

		_, err := NewConsumer(ch, receiptConsumerConfig, nil, logger)

		assert.ErrorContains(t, err, "failed to bind queue")
		ch.AssertExpectations(t)
	})
}

func TestConsumer_StartStop(t *testing.T) {
	ch := new(MockConsumerChannel)
	expectTopology(ch)
	deliveries := make(chan amqp.Delivery, 1)
	ch.On("Consume", "receipts", "tag", false, false, false, false, amqp.Table(nil)).Return((<-chan amqp.Delivery)(deliveries), nil).Once()
	ch.On("Cancel", "tag", false).Return(nil).Once()
	ch.On("Close").Return(nil).Once()

	var (
		mu       sync.Mutex
		received []string
	)
	handled := make(chan struct{}, 1)
	handler := func(_ context.Context, d amqp.Delivery) {
		mu.Lock()
		received = append(received, d.RoutingKey)
		mu.Unlock()
		handled <- struct{}{}
	}

	c, err := NewConsumer(ch, receiptConsumerConfig, handler, logger)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	deliveries <- amqp.Delivery{RoutingKey: RoutingKeyCollectionRecorded}
	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("delivery was not handled")
	}

	c.Stop()
	c.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{RoutingKeyCollectionRecorded}, received)
	ch.AssertExpectations(t)
}

func TestConsumer_PanickingHandlerDeadLettersMessage(t *testing.T) {
	ch := new(MockConsumerChannel)
	expectTopology(ch)
	deliveries := make(chan amqp.Delivery, 2)
	ch.On("Consume", "receipts", "tag", false, false, false, false, amqp.Table(nil)).Return((<-chan amqp.Delivery)(deliveries), nil).Once()
	ch.On("Cancel", "tag", false).Return(nil).Once()
	ch.On("Close").Return(nil).Once()

	handled := make(chan uint64, 2)
	handler := func(_ context.Context, d amqp.Delivery) {
		if d.DeliveryTag == 1 {
			panic("bad payload")
		}
		handled <- d.DeliveryTag
	}

	c, err := NewConsumer(ch, receiptConsumerConfig, handler, logger)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	ack := &fakeAcknowledger{}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2}

	select {
	case tag := <-handled:
		assert.Equal(t, uint64(2), tag)
	case <-time.After(time.Second):
		t.Fatal("consumer stopped after a panicking handler")
	}
	c.Stop()

	ack.mu.Lock()
	defer ack.mu.Unlock()
	assert.Equal(t, []bool{false}, ack.nacked)
}

func TestConsumer_StopBeforeStart(t *testing.T) {
	ch := new(MockConsumerChannel)
	expectTopology(ch)

	c, err := NewConsumer(ch, receiptConsumerConfig, func(context.Context, amqp.Delivery) {}, logger)
	require.NoError(t, err)

	assert.NotPanics(t, c.Stop)
	ch.AssertNotCalled(t, "Close")
}
