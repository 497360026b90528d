// Package events delivers booking lifecycle events to RabbitMQ and to the log.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/turf/pkg/booking"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	exchangeKindTopic = "topic"
	contentTypeJSON   = "application/json"
)

// Message is the wire form of a booking event.
type Message struct {
	Type       string          `json:"type"`
	BookingID  string          `json:"bookingId,omitempty"`
	OrderID    string          `json:"orderId,omitempty"`
	PaymentID  string          `json:"paymentId,omitempty"`
	Date       string          `json:"date,omitempty"`
	StartTime  string          `json:"startTime,omitempty"`
	Duration   int             `json:"duration,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// NewMessage converts a domain event.
func NewMessage(event booking.Event) Message {
	return Message{
		Type:       string(event.Type),
		BookingID:  event.BookingID,
		OrderID:    event.OrderID,
		PaymentID:  event.PaymentID,
		Date:       event.Date,
		StartTime:  event.StartTime,
		Duration:   event.Duration,
		Amount:     event.Amount,
		Reason:     event.Reason,
		OccurredAt: event.OccurredAt.UTC(),
	}
}

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange string, key string, mandatory bool, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher publishes events to a durable topic exchange, routed by event type.
type AMQPPublisher struct {
	mu       sync.Mutex
	channel  amqpChannel
	exchange string
	closers  []func() error
}

// NewAMQPPublisher dials url and declares exchange.
func NewAMQPPublisher(url string, exchange string) (*AMQPPublisher, error) {
	if strings.TrimSpace(exchange) == "" {
		return nil, errors.New("exchange name is required")
	}
	connection, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	channel, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, exchangeKindTopic, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = connection.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{
		channel:  channel,
		exchange: exchange,
		closers:  []func() error{channel.Close, connection.Close},
	}, nil
}

// Publish sends event as persistent JSON.
func (publisher *AMQPPublisher) Publish(ctx context.Context, event booking.Event) error {
	message := NewMessage(event)
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Type, err)
	}
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	err = publisher.channel.PublishWithContext(ctx, publisher.exchange, message.Type, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    message.OccurredAt,
		Type:         message.Type,
		MessageId:    messageID(message),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (publisher *AMQPPublisher) Close() error {
	var closeErrs []error
	for _, closeFn := range publisher.closers {
		if err := closeFn(); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}
	return errors.Join(closeErrs...)
}

func messageID(message Message) string {
	subject := message.BookingID
	if subject == "" {
		subject = message.PaymentID
	}
	return message.Type + ":" + subject
}

// LogPublisher writes events to a zap logger. Commit failures are logged at
// error level so they surface for follow-up.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher wraps logger. A nil logger discards events.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs event.
func (publisher *LogPublisher) Publish(_ context.Context, event booking.Event) error {
	fields := []zap.Field{
		zap.String("event", string(event.Type)),
		zap.String("booking_id", event.BookingID),
		zap.String("order_id", event.OrderID),
		zap.String("payment_id", event.PaymentID),
		zap.String("date", event.Date),
		zap.String("start_time", event.StartTime),
		zap.Int("duration", event.Duration),
		zap.String("amount", event.Amount.StringFixed(2)),
	}
	if event.Type == booking.EventBookingCommitFailed {
		publisher.logger.Error("booking commit failed after payment", append(fields, zap.String("reason", event.Reason))...)
		return nil
	}
	publisher.logger.Info("booking event", fields...)
	return nil
}

// Fanout delivers each event to every publisher and joins their errors.
type Fanout []booking.EventPublisher

// Publish calls every publisher even when an earlier one fails.
func (fanout Fanout) Publish(ctx context.Context, event booking.Event) error {
	var publishErrs []error
	for _, publisher := range fanout {
		if publisher == nil {
			continue
		}
		if err := publisher.Publish(ctx, event); err != nil {
			publishErrs = append(publishErrs, err)
		}
	}
	return errors.Join(publishErrs...)
}
