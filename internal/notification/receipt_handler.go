package notification

import (
	"context"
	"encoding/json"
	"errors"
	"lending-backoffice/internal/domain/customer"
	"lending-backoffice/internal/event"
	"lending-backoffice/internal/infrastructure/monitoring"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

type CustomerReader interface {
	GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error)
}

// ReceiptHandler emails a receipt for every collection.recorded event.
type ReceiptHandler struct {
	customers CustomerReader
	sender    Sender
	logger    *slog.Logger
}

func NewReceiptHandler(customers CustomerReader, sender Sender, logger *slog.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		customers: customers,
		sender:    sender,
		logger:    logger.With("component", "ReceiptHandler"),
	}
}

func (h *ReceiptHandler) HandleDelivery(ctx context.Context, d amqp.Delivery) {
	logCtx := h.logger.With(slog.Uint64("deliveryTag", d.DeliveryTag), slog.String("routingKey", d.RoutingKey))

	if d.RoutingKey != event.RoutingKeyCollectionRecorded {
		logCtx.WarnContext(ctx, "Received message with unknown routing key. Discarding.")
		monitoring.RecordReceiptProcessed("rejected")
		_ = d.Reject(false)
		return
	}

	var evt event.CollectionRecordedEvent
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		logCtx.ErrorContext(ctx, "Failed to unmarshal CollectionRecordedEvent", "error", err, "body", string(d.Body))
		monitoring.RecordReceiptProcessed("malformed")
		_ = d.Nack(false, false)
		return
	}

	logCtx = logCtx.With(slog.Int64("loanID", evt.LoanID), slog.Int64("customerID", evt.CustomerID))
	cust, err := h.customers.GetCustomer(ctx, evt.CustomerID)
	if err != nil {
		requeue := !errors.Is(err, customer.ErrNotFound)
		logCtx.ErrorContext(ctx, "Failed to load customer for receipt", "error", err, "requeue", requeue)
		monitoring.RecordReceiptProcessed("failure_customer")
		_ = d.Nack(false, requeue)
		return
	}

	receipt := Receipt{
		To:            cust.Email,
		Name:          cust.Name,
		LoanID:        evt.LoanID,
		Amount:        evt.Amount,
		CollectedDate: evt.CollectedDate,
		AmountDue:     evt.AmountDue,
		LoanClosed:    evt.LoanClosed,
	}
	if err := h.sender.SendReceipt(ctx, receipt); err != nil {
		logCtx.ErrorContext(ctx, "Failed to send receipt", "error", err)
		monitoring.RecordReceiptProcessed("failure_send")
		_ = d.Nack(false, true)
		return
	}

	monitoring.RecordReceiptProcessed("success")
	if err := d.Ack(false); err != nil {
		logCtx.ErrorContext(ctx, "Failed to acknowledge message after successful processing", "error", err)
		return
	}
	logCtx.InfoContext(ctx, "Receipt sent and message acknowledged")
}
