package event

import (
	"context"
	"encoding/json"
	"fmt"
	"lending-backoffice/internal/infrastructure/monitoring"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publisherAppID = "lending-backoffice"

type EventPublisher interface {
	PublishCustomerCreated(ctx context.Context, event CustomerCreatedEvent) error
	PublishCustomerUpdated(ctx context.Context, event CustomerUpdatedEvent) error
	PublishCollectionRecorded(ctx context.Context, event CollectionRecordedEvent) error
	PublishLoanClosed(ctx context.Context, event LoanClosedEvent) error
	PublishLoanOverdue(ctx context.Context, event LoanOverdueEvent) error
}

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ChannelOpener opens a fresh channel per publish. *amqp.Connection
// satisfies it through AMQPOpener.
type ChannelOpener interface {
	Channel() (Channel, error)
}

type AMQPOpener struct {
	Conn *amqp.Connection
}

func (o AMQPOpener) Channel() (Channel, error) {
	return o.Conn.Channel()
}

type RabbitMQEventPublisher struct {
	opener       ChannelOpener
	exchangeName string
	logger       *slog.Logger
}

var _ EventPublisher = (*RabbitMQEventPublisher)(nil)

func NewRabbitMQEventPublisher(opener ChannelOpener, exchangeName string, logger *slog.Logger) (*RabbitMQEventPublisher, error) {
	if opener == nil {
		return nil, fmt.Errorf("RabbitMQ connection cannot be nil")
	}
	if exchangeName == "" {
		return nil, fmt.Errorf("RabbitMQ exchange name cannot be empty")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	tempCh, err := opener.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open temporary channel for exchange declaration: %w", err)
	}
	defer tempCh.Close()

	err = tempCh.ExchangeDeclare(
		exchangeName,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchangeName, err)
	}
	logger.Info("Ensured RabbitMQ exchange exists", "exchange", exchangeName, "type", amqp.ExchangeTopic)

	return &RabbitMQEventPublisher{
		opener:       opener,
		exchangeName: exchangeName,
		logger:       logger.With("component", "RabbitMQEventPublisher", "exchange", exchangeName),
	}, nil
}

func (p *RabbitMQEventPublisher) PublishCustomerCreated(ctx context.Context, event CustomerCreatedEvent) error {
	return p.publish(ctx, RoutingKeyCustomerCreated, event)
}

func (p *RabbitMQEventPublisher) PublishCustomerUpdated(ctx context.Context, event CustomerUpdatedEvent) error {
	return p.publish(ctx, RoutingKeyCustomerUpdated, event)
}

func (p *RabbitMQEventPublisher) PublishCollectionRecorded(ctx context.Context, event CollectionRecordedEvent) error {
	return p.publish(ctx, RoutingKeyCollectionRecorded, event)
}

func (p *RabbitMQEventPublisher) PublishLoanClosed(ctx context.Context, event LoanClosedEvent) error {
	return p.publish(ctx, RoutingKeyLoanClosed, event)
}

func (p *RabbitMQEventPublisher) PublishLoanOverdue(ctx context.Context, event LoanOverdueEvent) error {
	return p.publish(ctx, RoutingKeyLoanOverdue, event)
}

func (p *RabbitMQEventPublisher) publish(ctx context.Context, routingKey string, payload any) (err error) {
	messageID := uuid.NewString()
	logCtx := p.logger.With(slog.String("routingKey", routingKey), slog.String("messageId", messageID))

	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		monitoring.RecordEventPublished(routingKey, status)
	}()

	channel, err := p.opener.Channel()
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to open RabbitMQ channel", slog.Any("error", err))
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer channel.Close()

	body, err := json.Marshal(payload)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to marshal event payload to JSON", slog.Any("error", err))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	logCtx.DebugContext(ctx, "Publishing message", "bodySize", len(body))

	err = channel.PublishWithContext(
		ctx,
		p.exchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Body:         body,
			AppId:        publisherAppID,
		},
	)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to publish message to RabbitMQ", slog.Any("error", err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logCtx.InfoContext(ctx, "Successfully published message")
	return nil
}

// LogPublisher stands in when no broker is configured. Events are logged and
// dropped.
type LogPublisher struct {
	logger *slog.Logger
}

var _ EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("component", "LogPublisher")}
}

func (p *LogPublisher) PublishCustomerCreated(ctx context.Context, event CustomerCreatedEvent) error {
	return p.drop(ctx, RoutingKeyCustomerCreated)
}

func (p *LogPublisher) PublishCustomerUpdated(ctx context.Context, event CustomerUpdatedEvent) error {
	return p.drop(ctx, RoutingKeyCustomerUpdated)
}

func (p *LogPublisher) PublishCollectionRecorded(ctx context.Context, event CollectionRecordedEvent) error {
	return p.drop(ctx, RoutingKeyCollectionRecorded)
}

func (p *LogPublisher) PublishLoanClosed(ctx context.Context, event LoanClosedEvent) error {
	return p.drop(ctx, RoutingKeyLoanClosed)
}

func (p *LogPublisher) PublishLoanOverdue(ctx context.Context, event LoanOverdueEvent) error {
	return p.drop(ctx, RoutingKeyLoanOverdue)
}

func (p *LogPublisher) drop(ctx context.Context, routingKey string) error {
	p.logger.DebugContext(ctx, "Broker not configured, dropping event", "routingKey", routingKey)
	monitoring.RecordEventPublished(routingKey, "dropped")
	return nil
}
