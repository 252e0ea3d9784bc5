package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultPrefetch = 1

type MessageHandler func(ctx context.Context, d amqp.Delivery)

// ConsumerChannel is the subset of *amqp.Channel used by Consumer.
type ConsumerChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	Close() error
}

var _ ConsumerChannel = (*amqp.Channel)(nil)

type ConsumerConfig struct {
	ExchangeName string
	QueueName    string
	ConsumerTag  string
	RoutingKeys  []string
	Prefetch     int
	// DeadLetterExchange, when set, receives messages the handler nacks
	// without requeue. They land in "<QueueName>.dead".
	DeadLetterExchange string
}

// Consumer feeds deliveries from one durable queue to a handler, one at a
// time. The handler owns ack/nack.
type Consumer struct {
	channel     ConsumerChannel
	queueName   string
	consumerTag string
	handler     MessageHandler
	logger      *slog.Logger
	wg          sync.WaitGroup
	cancelFunc  context.CancelFunc
	stopOnce    sync.Once
}

func NewConsumer(ch ConsumerChannel, cfg ConsumerConfig, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	logger = logger.With("component", "consumer", "queue", cfg.QueueName)

	queueName, err := declareTopology(ch, cfg, logger)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	return &Consumer{
		channel:     ch,
		queueName:   queueName,
		consumerTag: cfg.ConsumerTag,
		handler:     handler,
		logger:      logger,
	}, nil
}

func declareTopology(ch ConsumerChannel, cfg ConsumerConfig, logger *slog.Logger) (string, error) {
	logger.Info("Declaring exchange", "name", cfg.ExchangeName, "type", amqp.ExchangeTopic)
	if err := ch.ExchangeDeclare(cfg.ExchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return "", fmt.Errorf("failed to declare exchange '%s': %w", cfg.ExchangeName, err)
	}

	var queueArgs amqp.Table
	if cfg.DeadLetterExchange != "" {
		deadQueue := cfg.QueueName + ".dead"
		logger.Info("Declaring dead-letter exchange", "name", cfg.DeadLetterExchange, "queue", deadQueue)
		if err := ch.ExchangeDeclare(cfg.DeadLetterExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
			return "", fmt.Errorf("failed to declare dead-letter exchange '%s': %w", cfg.DeadLetterExchange, err)
		}
		if _, err := ch.QueueDeclare(deadQueue, true, false, false, false, nil); err != nil {
			return "", fmt.Errorf("failed to declare dead-letter queue '%s': %w", deadQueue, err)
		}
		if err := ch.QueueBind(deadQueue, "", cfg.DeadLetterExchange, false, nil); err != nil {
			return "", fmt.Errorf("failed to bind dead-letter queue '%s': %w", deadQueue, err)
		}
		queueArgs = amqp.Table{"x-dead-letter-exchange": cfg.DeadLetterExchange}
	}

	logger.Info("Declaring queue", "name", cfg.QueueName)
	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, queueArgs)
	if err != nil {
		return "", fmt.Errorf("failed to declare queue '%s': %w", cfg.QueueName, err)
	}

	for _, key := range cfg.RoutingKeys {
		logger.Info("Binding queue", "exchange", cfg.ExchangeName, "key", key)
		if err := ch.QueueBind(q.Name, key, cfg.ExchangeName, false, nil); err != nil {
			return "", fmt.Errorf("failed to bind queue '%s' with key '%s': %w", q.Name, key, err)
		}
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return "", fmt.Errorf("failed to set QoS: %w", err)
	}
	return q.Name, nil
}

func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting message consumption...")
	deliveries, err := c.channel.Consume(c.queueName, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		_ = c.channel.Close()
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-loopCtx.Done():
				c.logger.Info("Consumer context cancelled. Exiting consumption loop.")
				return
			case d, ok := <-deliveries:
				if !ok {
					c.logger.Warn("RabbitMQ delivery channel closed unexpectedly.")
					return
				}
				c.dispatch(loopCtx, d)
			}
		}
	}()

	return nil
}

// dispatch runs the handler and dead-letters the delivery if it panics, so
// one poisoned message cannot stop the loop.
func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "Message handler panicked", "panic", r, "deliveryTag", d.DeliveryTag, "routingKey", d.RoutingKey)
			if d.Acknowledger != nil {
				_ = d.Nack(false, false)
			}
		}
	}()
	c.handler(ctx, d)
}

// Stop cancels the subscription, waits for the in-flight delivery and closes
// the channel. Calling it more than once is a no-op.
func (c *Consumer) Stop() {
	if c.cancelFunc == nil {
		c.logger.Warn("Consumer stop called before Start")
		return
	}
	c.stopOnce.Do(func() {
		c.logger.Info("Stopping consumer...")
		c.cancelFunc()

		if err := c.channel.Cancel(c.consumerTag, false); err != nil {
			c.logger.Warn("Failed to cancel consumer tag", "tag", c.consumerTag, "error", err)
		}
		c.wg.Wait()

		if err := c.channel.Close(); err != nil {
			c.logger.Error("Failed to close consumer channel", "error", err)
			return
		}
		c.logger.Info("Consumer stopped.")
	})
}
