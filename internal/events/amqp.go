package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	publishTimeout = 5 * time.Second
	dialTimeout    = 5 * time.Second

	// redialBackoff is the minimum gap after a failed dial before the next
	// attempt, so a down broker costs callers at most one dial per interval.
	redialBackoff = 5 * time.Second
)

// ErrNotConnected is returned while the broker is unreachable and the
// publisher is waiting out redialBackoff.
var ErrNotConnected = errors.New("amqp: not connected")

// AMQPPublisher publishes events to a durable topic exchange, one persistent
// message per event, routed by event type. A dropped connection is re-dialed
// on the next Publish.
type AMQPPublisher struct {
	url      string
	exchange string

	mu         sync.Mutex
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	failedAt   time.Time
	closed     bool
	now        func() time.Time
	dialConfig amqp091.Config
}

// NewAMQPPublisher dials url and declares exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	p := newAMQPPublisher(url, exchange)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func newAMQPPublisher(url, exchange string) *AMQPPublisher {
	return &AMQPPublisher{
		url:        url,
		exchange:   exchange,
		now:        time.Now,
		dialConfig: amqp091.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Dial:      amqp091.DefaultDial(dialTimeout),
		},
	}
}

// connect dials the broker, opens a channel and declares the exchange.
// Callers hold p.mu.
func (p *AMQPPublisher) connect() error {
	err := p.dial()
	if err != nil {
		p.failedAt = p.now()
	}
	return err
}

func (p *AMQPPublisher) dial() error {
	conn, err := amqp091.DialConfig(p.url, p.dialConfig)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	p.conn, p.channel = conn, channel
	return nil
}

// ensureConnected re-dials when the connection or channel has gone away.
// Callers hold p.mu.
func (p *AMQPPublisher) ensureConnected() error {
	if p.closed {
		return amqp091.ErrClosed
	}
	if p.conn != nil && !p.conn.IsClosed() && p.channel != nil && !p.channel.IsClosed() {
		return nil
	}
	p.teardown()

	if !p.failedAt.IsZero() && p.now().Sub(p.failedAt) < redialBackoff {
		return ErrNotConnected
	}
	slog.Info("Reconnecting to AMQP broker", "exchange", p.exchange)
	return p.connect()
}

func (p *AMQPPublisher) teardown() {
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// Publish sends event with its type as routing key.
func (p *AMQPPublisher) Publish(ctx context.Context, event *Event) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// Channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConnected(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,         // exchange
		string(event.Type), // routing key
		false,              // mandatory
		false,              // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		// Drop the handles so the next Publish re-dials.
		if errors.Is(err, amqp091.ErrClosed) {
			p.teardown()
		}
		return fmt.Errorf("publish event: %w", err)
	}

	slog.DebugContext(ctx, "Published event",
		"type", event.Type,
		"exchange", p.exchange,
		"group_id", event.GroupID,
		"expense_id", event.ExpenseID,
	)
	return nil
}

// Close releases the connection. Later publishes fail with amqp091.ErrClosed.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
