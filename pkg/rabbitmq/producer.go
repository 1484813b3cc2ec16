// Package rabbitmq publishes JSON events to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends an event to an exchange under a routing key.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close()
}

// EventProducer publishes over a single AMQP channel.
type EventProducer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *zap.Logger

	mu       sync.Mutex
	declared map[string]bool
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer dials the broker and opens a channel.
func NewEventProducer(amqpURL string, logger *zap.Logger) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventProducer{
		conn:     conn,
		channel:  channel,
		logger:   logger,
		declared: make(map[string]bool),
	}, nil
}

// Publish declares the topic exchange on first use and publishes body as
// a persistent JSON message. AMQP channels are not safe for concurrent use,
// so publishes are serialized.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[exchange] {
		err := p.channel.ExchangeDeclare(
			exchange, // name
			"topic",  // type
			true,     // durable
			false,    // auto-deleted
			false,    // internal
			false,    // no-wait
			nil,      // arguments
		)
		if err != nil {
			return err
		}
		p.declared[exchange] = true
	}

	err = p.channel.PublishWithContext(ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         jsonBody,
		})
	if err != nil {
		return err
	}

	p.logger.Debug("published event", zap.String("exchange", exchange), zap.String("routing_key", routingKey))
	return nil
}

// Close gracefully closes the channel and connection.
func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// EventProducerFallback stands in when no broker is configured; it logs and
// drops every event.
type EventProducerFallback struct {
	logger *zap.Logger
}

func NewEventProducerFallback(logger *zap.Logger) *EventProducerFallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventProducerFallback{logger: logger}
}

func (f *EventProducerFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	f.logger.Debug("event dropped, no broker configured",
		zap.String("exchange", exchange),
		zap.String("routing_key", routingKey))
	return nil
}

func (f *EventProducerFallback) Close() {}
