package events

import (
	"context"
	"encoding/json"
	"expvar"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Exported on /debug/vars when the debug module is enabled.
var (
	publishedCount = expvar.NewInt("events_published")
	failedCount    = expvar.NewInt("events_publish_failures")
)

// Publisher delivers events to RabbitMQ topic exchanges, one exchange per
// topic. The connection is established lazily on the first publish and
// reused by every concurrent caller afterwards; a failed publish discards
// it so the next call redials.
type Publisher struct {
	url    string
	logger *logrus.Logger

	mu        sync.Mutex
	conn      *amqp.Connection
	ch        *amqp.Channel
	exchanges map[string]bool
}

func NewPublisher(url string, logger *logrus.Logger) *Publisher {
	return &Publisher{
		url:       url,
		logger:    logger,
		exchanges: make(map[string]bool),
	}
}

// Publish wraps payload in the event envelope and sends it to topic's
// exchange with eventType as the routing key. Failures come back as a
// *NotificationError: connection_unavailable when no broker connection
// could be established, publish_failed otherwise.
func (p *Publisher) Publish(ctx context.Context, topic, eventType string, payload any) error {
	body, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	})
	if err != nil {
		failedCount.Add(1)
		return &NotificationError{Cause: CausePublishFailed, Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel(topic)
	if err != nil {
		failedCount.Add(1)
		return &NotificationError{Cause: CauseConnectionUnavailable, Err: err}
	}
	err = ch.PublishWithContext(ctx,
		topic,
		eventType,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		p.closeLocked()
		failedCount.Add(1)
		return &NotificationError{Cause: CausePublishFailed, Err: err}
	}
	publishedCount.Add(1)
	return nil
}

// Close tears down the broker connection. Safe to call before the first
// publish ever happened.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

// channel returns a live channel with topic's exchange declared, dialing
// first when the previous connection is gone. Callers hold p.mu.
func (p *Publisher) channel(topic string) (*amqp.Channel, error) {
	if p.conn == nil || p.conn.IsClosed() {
		p.closeLocked()
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		p.conn, p.ch = conn, ch
		if p.logger != nil {
			p.logger.Debug("rabbitmq connection established")
		}
	}
	if !p.exchanges[topic] {
		if err := p.ch.ExchangeDeclare(
			topic,
			"topic",
			true,  // durable
			false, // autoDelete
			false, // internal
			false, // noWait
			nil,
		); err != nil {
			p.closeLocked()
			return nil, err
		}
		p.exchanges[topic] = true
	}
	return p.ch, nil
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	p.exchanges = make(map[string]bool)
}
