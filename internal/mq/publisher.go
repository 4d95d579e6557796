package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher handles message publishing to RabbitMQ
type Publisher struct {
	mu         sync.Mutex
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *zap.Logger
}

// ReadingAcceptedEvent is published for every reading persisted by an upload.
type ReadingAcceptedEvent struct {
	EventID              string `json:"event_id"`
	RequestID            string `json:"request_id"`
	AccountID            int    `json:"account_id"`
	MeterReadingDateTime string `json:"meter_reading_datetime"`
	MeterReadValue       int    `json:"meter_read_value"`
}

// NewPublisher creates a new RabbitMQ publisher. A nil connection yields a
// nil publisher, which drops events.
func NewPublisher(conn *Connection, exchange, routingKey string, logger *zap.Logger) (*Publisher, error) {
	if conn == nil {
		return nil, nil
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

// PublishReadingAccepted publishes an accepted meter reading event
func (p *Publisher) PublishReadingAccepted(ctx context.Context, event ReadingAcceptedEvent) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    event.EventID,
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published reading accepted event",
		zap.String("routing_key", p.routingKey),
		zap.String("request_id", event.RequestID),
		zap.Int("account_id", event.AccountID),
	)

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p != nil && p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
