package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

// DefaultExchange is the durable topic exchange every event is published to.
const DefaultExchange = "roombooking.events"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher implements application.EventPublisher over RabbitMQ.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
	now      func() time.Time
	logger   *zap.Logger
}

var _ application.EventPublisher = (*AMQPPublisher)(nil)

// DialAMQP connects to url, opens a channel and declares the exchange.
func DialAMQP(url, exchange string, logger *zap.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	publisher := newAMQPPublisher(ch, exchange, logger)
	publisher.conn = conn
	return publisher, nil
}

func newAMQPPublisher(ch channel, exchange string, logger *zap.Logger) *AMQPPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPublisher{
		ch:       ch,
		exchange: exchange,
		now:      time.Now,
		logger:   logger.With(zap.String("component", "amqp_publisher"), zap.String("exchange", exchange)),
	}
}

func (p *AMQPPublisher) BookingsCommitted(ctx context.Context, bookings []scheduler.Booking) error {
	return p.publish(ctx, KeyBookingsCommitted, bookingsPayload(bookings))
}

func (p *AMQPPublisher) BookingsCancelled(ctx context.Context, bookings []scheduler.Booking) error {
	return p.publish(ctx, KeyBookingsCancelled, bookingsPayload(bookings))
}

func (p *AMQPPublisher) ResolutionRecorded(ctx context.Context, record scheduler.ResolutionRecord) error {
	return p.publish(ctx, KeyResolutionRecorded, resolutionPayload(record))
}

func (p *AMQPPublisher) WaitlistUpdated(ctx context.Context, entry scheduler.WaitlistEntry) error {
	return p.publish(ctx, KeyWaitlistUpdated, waitlistPayload(entry))
}

func (p *AMQPPublisher) publish(ctx context.Context, key string, payload any) error {
	occurred := p.now().UTC()
	body, err := json.Marshal(Envelope{Type: key, OccurredAt: occurred, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", key, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    occurred,
		Type:         key,
		Body:         body,
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		p.logger.Warn("publish failed", zap.String("routing_key", key), zap.Error(err))
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.logger.Debug("event published", zap.String("routing_key", key), zap.Int("bytes", len(body)))
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if p.ch != nil {
		firstErr = p.ch.Close()
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
