package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
)

const (
	breakerName     = "amqp_publish"
	publishTimeout  = 5 * time.Second
	failuresToTrip  = 5
	breakerCooldown = 30 * time.Second
)

// Publish statuses as counted in metrics.
const (
	StatusPublished = "published"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
)

var ErrNotConnected = errors.New("amqp channel not open")

// publisher is the part of *amqp091.Channel used to send messages.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

type Client struct {
	url          string
	exchangeName string
	queueName    string
	maxElapsed   time.Duration

	mu      sync.RWMutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	pub     publisher

	breaker *gobreaker.CircuitBreaker
}

type ClientOption func(*Client)

// WithDialRetry bounds how long NewClient keeps retrying the broker.
func WithDialRetry(maxElapsed time.Duration) ClientOption {
	return func(c *Client) { c.maxElapsed = maxElapsed }
}

// NewClient dials the broker with exponential backoff and declares the
// exchange, queue and binding used for entry events.
func NewClient(ctx context.Context, url, exchangeName, queueName string, opts ...ClientOption) (*Client, error) {
	c := newClient(exchangeName, queueName)
	c.url = url
	c.maxElapsed = time.Minute
	for _, opt := range opts {
		opt(c)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = c.maxElapsed

	err := backoff.RetryNotify(c.connect, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		slog.WarnContext(ctx, "AMQP broker not reachable, retrying",
			append(log.NewFields().WithComponent(log.ComponentAMQP).WithError(err).ToSlice(), "retry_in", wait)...)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to AMQP broker: %w", err)
	}
	return c, nil
}

func newClient(exchangeName, queueName string) *Client {
	c := &Client{
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failuresToTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			slog.Warn("Circuit breaker state changed",
				append(log.NewFields().WithComponent(log.ComponentAMQP).ToSlice(),
					"breaker", name, "from", from.String(), "to", to.String())...)
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(float64(gobreaker.StateClosed))
	return c
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		// Declaration errors are configuration problems, not transient ones.
		return backoff.Permanent(fmt.Errorf("setup exchange and queue: %w", err))
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.pub = channel
	c.mu.Unlock()
	return nil
}

func setup(ch *amqp091.Channel, exchangeName, queueName string) error {
	if err := ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key equals the queue name on the direct exchange.
	if err := ch.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is open.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// reconnectIfClosed makes a single reconnection attempt when the broker
// dropped the connection. The breaker bounds how often this happens.
func (c *Client) reconnectIfClosed() {
	c.mu.RLock()
	closed := c.url != "" && (c.conn == nil || c.conn.IsClosed())
	c.mu.RUnlock()
	if !closed {
		return
	}
	if err := c.connect(); err != nil {
		slog.Warn("AMQP reconnect failed",
			log.NewFields().WithComponent(log.ComponentAMQP).WithError(err).ToSlice()...)
	}
}

// PublishEntryAppended sends an entry.appended event. Once publishing has
// failed repeatedly the breaker opens and calls fail fast with
// gobreaker.ErrOpenState until the cooldown passes.
func (c *Client) PublishEntryAppended(ctx context.Context, rec core.AppendRecord) error {
	body, err := NewEntryAppendedMessage(rec).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	_, err = c.breaker.Execute(func() (any, error) {
		c.reconnectIfClosed()

		c.mu.RLock()
		pub := c.pub
		c.mu.RUnlock()
		if pub == nil {
			return nil, ErrNotConnected
		}

		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		return nil, pub.PublishWithContext(
			ctx,
			c.exchangeName, // exchange
			c.queueName,    // routing key
			false,          // mandatory
			false,          // immediate
			amqp091.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp091.Persistent,
				MessageId:    rec.EventID,
				Type:         EventEntryAppended,
				Timestamp:    rec.AppendedAt,
				Body:         body,
			},
		)
	})

	fields := log.NewFields().
		WithComponent(log.ComponentAMQP).
		WithOperation(log.OpPublish).
		WithTarget(rec.DocumentID, rec.Region).
		WithEntryID(rec.EntryID)

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.EventsPublished.WithLabelValues(StatusRejected).Inc()
		return fmt.Errorf("publish %s: %w", EventEntryAppended, err)
	case err != nil:
		metrics.EventsPublished.WithLabelValues(StatusFailed).Inc()
		return fmt.Errorf("publish %s: %w", EventEntryAppended, err)
	}

	metrics.EventsPublished.WithLabelValues(StatusPublished).Inc()
	slog.DebugContext(ctx, "Published entry event", fields.ToSlice()...)
	return nil
}

// BreakerState exposes the publish breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// EntryHandler processes one decoded entry event.
type EntryHandler func(ctx context.Context, msg *EntryAppendedMessage) error

// ConsumeEntryAppended delivers entry events to handler until ctx is done or
// the broker closes the delivery channel.
func (c *Client) ConsumeEntryAppended(ctx context.Context, handler EntryHandler) error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()
	if ch == nil {
		return ErrNotConnected
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming entry events",
		append(log.NewFields().WithComponent(log.ComponentAMQP).ToSlice(), "queue", c.queueName)...)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			handleDelivery(ctx, delivery, handler)
		}
	}
}

// handleDelivery acks processed messages, drops malformed ones and requeues
// a failed message once before dropping it.
func handleDelivery(ctx context.Context, d amqp091.Delivery, handler EntryHandler) {
	fields := log.NewFields().WithComponent(log.ComponentAMQP)

	msg, err := EntryAppendedMessageFromJSON(d.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping malformed entry event", fields.WithError(err).ToSlice()...)
		_ = d.Nack(false, false)
		return
	}

	fields = fields.WithTarget(msg.DocumentID, msg.Region).WithEntryID(msg.EntryID)
	if err := handler(ctx, msg); err != nil {
		requeue := !d.Redelivered
		slog.ErrorContext(ctx, "Failed to handle entry event",
			append(fields.WithError(err).ToSlice(), "requeue", requeue)...)
		_ = d.Nack(false, requeue)
		return
	}

	_ = d.Ack(false)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	c.pub = nil
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
