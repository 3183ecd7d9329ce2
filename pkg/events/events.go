// Package events publishes domain events after the state change they describe has committed.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher is best effort: failures are logged by the caller and never undo state.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, string, interface{}) error { return nil }
func (Nop) Close() error                                       { return nil }

// Multi publishes to every target. All targets are attempted; the first error is returned.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, routingKey, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ErrNotConnected is returned by Publish while the broker connection is being re-established.
var ErrNotConnected = errors.New("events: broker not connected")

// AMQPPublisher sends JSON events to a durable topic exchange. A lost connection or
// channel is re-dialed in the background; Publish never dials.
type AMQPPublisher struct {
	url      string
	exchange string
	log      *logrus.Logger

	baseDelay time.Duration
	maxDelay  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc

	mu           sync.Mutex
	conn         *amqp.Connection
	channel      *amqp.Channel
	reconnecting bool
}

func NewAMQPPublisher(url, exchange string, log *logrus.Logger) (*AMQPPublisher, error) {
	p := newAMQPPublisher(url, exchange, log)
	conn, ch, err := p.dial()
	if err != nil {
		p.cancel()
		return nil, err
	}
	p.conn, p.channel = conn, ch
	p.log.WithField("exchange", p.exchange).Info("connected to RabbitMQ")
	return p, nil
}

func newAMQPPublisher(url, exchange string, log *logrus.Logger) *AMQPPublisher {
	ctx, cancel := context.WithCancel(context.Background())
	return &AMQPPublisher{
		url:       url,
		exchange:  exchange,
		log:       log,
		baseDelay: 500 * time.Millisecond,
		maxDelay:  30 * time.Second,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (p *AMQPPublisher) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return conn, ch, nil
}

// needsReconnect reports whether either half of the session is gone. A channel
// exception closes the channel while the connection stays up.
func needsReconnect(conn *amqp.Connection, ch *amqp.Channel) bool {
	return conn == nil || conn.IsClosed() || ch == nil || ch.IsClosed()
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if needsReconnect(p.conn, p.channel) {
		p.startReconnectLocked()
		return ErrNotConnected
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// startReconnectLocked drops the stale session and starts at most one redial loop.
func (p *AMQPPublisher) startReconnectLocked() {
	if p.reconnecting || p.ctx.Err() != nil {
		return
	}
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	p.reconnecting = true
	go p.reconnect()
}

func (p *AMQPPublisher) reconnect() {
	defer func() {
		p.mu.Lock()
		p.reconnecting = false
		p.mu.Unlock()
	}()
	delay := p.baseDelay
	for attempt := 1; ; attempt++ {
		conn, ch, err := p.dial()
		if err == nil {
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.ctx.Err() != nil {
				ch.Close()
				conn.Close()
				return
			}
			p.conn, p.channel = conn, ch
			p.log.WithFields(logrus.Fields{"exchange": p.exchange, "attempt": attempt}).Info("reconnected to RabbitMQ")
			return
		}
		p.log.WithError(err).WithField("attempt", attempt).Warn("RabbitMQ reconnect failed")
		timer := time.NewTimer(delay)
		select {
		case <-p.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if delay *= 2; delay > p.maxDelay {
			delay = p.maxDelay
		}
	}
}

func (p *AMQPPublisher) Close() error {
	p.cancel()
	p.mu.Lock()
	defer p.mu.Unlock()
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

// Recorder keeps published events in memory. Tests use it to assert on side effects.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

type Event struct {
	RoutingKey string
	Payload    interface{}
}

func (r *Recorder) Publish(_ context.Context, routingKey string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Event{RoutingKey: routingKey, Payload: payload})
	return nil
}

func (r *Recorder) Close() error { return nil }

// Count returns how many events were published under routingKey.
func (r *Recorder) Count(routingKey string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.Events {
		if e.RoutingKey == routingKey {
			n++
		}
	}
	return n
}
