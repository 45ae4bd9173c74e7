// Package messaging publishes booking lifecycle events to RabbitMQ.
//
// Each event goes to a durable queue of the same name on the default
// exchange. Publishing happens after the booking is committed; a failed
// publish is reported to the caller, which logs it and moves on.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/logger"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue names.
const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingCancelled = "booking.cancelled"
)

// BookingMessage is the JSON body of every booking event.
type BookingMessage struct {
	BookingID  string              `json:"booking_id"`
	EventID    string              `json:"event_id"`
	UserEmail  string              `json:"user_email"`
	Tickets    int                 `json:"ticket_count"`
	Status     model.BookingStatus `json:"status"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// NewBookingMessage builds the message for b at the given instant.
func NewBookingMessage(b *model.Booking, at time.Time) BookingMessage {
	return BookingMessage{
		BookingID:  b.ID,
		EventID:    b.EventID,
		UserEmail:  b.UserEmail,
		Tickets:    b.Tickets,
		Status:     b.Status,
		OccurredAt: at.UTC(),
	}
}

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher holds one connection and one channel. amqp channels are not
// safe for concurrent publishing, so access is serialised.
type Publisher struct {
	mu   sync.Mutex
	conn *amqp.Connection
	ch   channel
	now  func() time.Time
}

// Dial connects to the broker and declares the booking queues.
func Dial(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	p, err := newPublisher(ch)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel) (*Publisher, error) {
	for _, q := range []string{QueueBookingConfirmed, QueueBookingCancelled} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("declare queue %s: %w", q, err)
		}
	}
	return &Publisher{ch: ch, now: time.Now}, nil
}

// BookingConfirmed announces a new confirmed booking.
func (p *Publisher) BookingConfirmed(ctx context.Context, b *model.Booking) error {
	return p.publish(ctx, QueueBookingConfirmed, NewBookingMessage(b, b.CreatedAt))
}

// BookingCancelled announces a cancellation.
func (p *Publisher) BookingCancelled(ctx context.Context, b *model.Booking) error {
	at := p.now()
	if b.CancelledAt != nil {
		at = *b.CancelledAt
	}
	return p.publish(ctx, QueueBookingCancelled, NewBookingMessage(b, at))
}

func (p *Publisher) publish(ctx context.Context, queue string, msg BookingMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", queue, err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		MessageId:    msg.BookingID + ":" + string(msg.Status),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	logger.WithContext(ctx).Debug("booking event published", "queue", queue, "booking_id", msg.BookingID)
	return nil
}

// Close shuts down the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
