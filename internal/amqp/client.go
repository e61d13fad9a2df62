package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	// maxFailures opens the circuit; openTimeout is how long it stays
	// open before a half-open probe.
	maxFailures = 5
	openTimeout = 30 * time.Second

	publishTimeout = 5 * time.Second
)

// Client owns one connection and channel to the broker and the three
// queues of the system: inbound events, rendered replies, and export
// requests. All queues are durable and bound to a direct exchange with
// the queue name as routing key.
type Client struct {
	url          string
	exchangeName string
	eventQueue   string
	replyQueue   string
	exportQueue  string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	// Circuit breaker state, manipulated atomically. lastFailure holds
	// UnixNano so concurrent publishers never race on a time.Time.
	state        int32
	failureCount int64
	lastFailure  int64
}

func NewClient(url, exchangeName, eventQueue, replyQueue, exportQueue string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		eventQueue:   eventQueue,
		replyQueue:   replyQueue,
		exportQueue:  exportQueue,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
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

	if err := setup(channel, c.exchangeName, c.eventQueue, c.replyQueue, c.exportQueue); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()
	return nil
}

func setup(channel *amqp091.Channel, exchangeName string, queues ...string) error {
	err := channel.ExchangeDeclare(
		exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range queues {
		_, err = channel.QueueDeclare(
			queue,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key matches the queue name on the direct exchange.
		err = channel.QueueBind(queue, queue, exchangeName, false, nil)
		if err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}
	return nil
}

// reconnect retries the connection with exponential backoff until the
// context is done.
func (c *Client) reconnect(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(exponentialBackoff(attempt)):
		}

		if err := c.connect(); err != nil {
			slog.WarnContext(ctx, "Reconnect attempt failed",
				"attempt", attempt+1, "error", err)
			continue
		}
		slog.InfoContext(ctx, "Reconnected to broker", "attempts", attempt+1)
		return nil
	}
}

func exponentialBackoff(attempt int) time.Duration {
	d := time.Second << attempt
	if d > 30*time.Second || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection closed",
		"EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	last := time.Unix(0, atomic.LoadInt64(&c.lastFailure))
	if time.Since(last) > openTimeout {
		atomic.StoreInt32(&c.state, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	atomic.StoreInt64(&c.lastFailure, time.Now().UnixNano())
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// PublishInboundEvent enqueues a user utterance for the event worker.
func (c *Client) PublishInboundEvent(ctx context.Context, msg *InboundEventMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal inbound event: %w", err)
	}
	if err := c.publish(ctx, c.eventQueue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published inbound event",
		"event_id", msg.EventID, "owner", msg.Owner, "queue", c.eventQueue)
	return nil
}

// PublishReply enqueues rendered reply text for the chat gateway.
func (c *Client) PublishReply(ctx context.Context, msg *ReplyMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	if err := c.publish(ctx, c.replyQueue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published reply",
		"event_id", msg.EventID, "owner", msg.Owner, "queue", c.replyQueue)
	return nil
}

// PublishExportRequest enqueues a transaction ID for the spreadsheet
// backup. Satisfies services.ExportPublisher.
func (c *Client) PublishExportRequest(ctx context.Context, transactionID string) error {
	body, err := NewExportRequestMessage(transactionID).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal export request: %w", err)
	}
	if err := c.publish(ctx, c.exportQueue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published export request",
		"transaction_id", transactionID, "queue", c.exportQueue)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: circuit breaker is open", routingKey)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	err := channel.PublishWithContext(
		ctx,
		c.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// ConsumeInboundEvents delivers inbound events to handler with manual
// acks. A handler error requeues the delivery; an undecodable body is
// dropped. Connection loss triggers reconnection with backoff.
func (c *Client) ConsumeInboundEvents(ctx context.Context, handler func(context.Context, *InboundEventMessage) error) error {
	return c.consume(ctx, c.eventQueue, func(ctx context.Context, body []byte) error {
		msg, err := InboundEventMessageFromJSON(body)
		if err != nil {
			return fmt.Errorf("%w: %v", errBadMessage, err)
		}
		return handler(ctx, msg)
	})
}

// ConsumeExportRequests delivers export requests to handler with the same
// ack semantics as ConsumeInboundEvents.
func (c *Client) ConsumeExportRequests(ctx context.Context, handler func(context.Context, *ExportRequestMessage) error) error {
	return c.consume(ctx, c.exportQueue, func(ctx context.Context, body []byte) error {
		msg, err := ExportRequestMessageFromJSON(body)
		if err != nil {
			return fmt.Errorf("%w: %v", errBadMessage, err)
		}
		return handler(ctx, msg)
	})
}

var errBadMessage = fmt.Errorf("undecodable message")

func (c *Client) consume(ctx context.Context, queue string, handle func(context.Context, []byte) error) error {
	for {
		c.mu.Lock()
		channel := c.channel
		c.mu.Unlock()

		msgs, err := channel.Consume(
			queue,
			"",    // consumer
			false, // manual ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			if isConnectionError(err) {
				if rerr := c.reconnect(ctx); rerr != nil {
					return rerr
				}
				continue
			}
			return fmt.Errorf("start consuming %s: %w", queue, err)
		}

		slog.InfoContext(ctx, "Started consuming", "queue", queue)

		if err := c.consumeLoop(ctx, queue, msgs, handle); err != nil {
			return err
		}
		// Delivery channel closed under us; reconnect and resume.
		if rerr := c.reconnect(ctx); rerr != nil {
			return rerr
		}
	}
}

func (c *Client) consumeLoop(ctx context.Context, queue string, msgs <-chan amqp091.Delivery, handle func(context.Context, []byte) error) error {
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return nil
			}

			err := handle(ctx, delivery.Body)
			switch {
			case err == nil:
				delivery.Ack(false)
			case errors.Is(err, errBadMessage):
				slog.ErrorContext(ctx, "Dropping undecodable message",
					"queue", queue, "error", err)
				delivery.Nack(false, false)
			default:
				slog.ErrorContext(ctx, "Handler failed, requeueing",
					"queue", queue, "error", err)
				delivery.Nack(false, true)
			}
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
