package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Connection is the broker connection shared by event publishers.
type Connection struct {
	conn *amqp.Connection
}

// NewConnection dials the broker that receives reading-accepted events. An
// empty url disables events and returns a nil connection.
func NewConnection(lc fx.Lifecycle, logger *zap.Logger, url string) (*Connection, error) {
	if url == "" {
		logger.Info("event publishing disabled", zap.String("reason", "RABBITMQ_URL not set"))
		return nil, nil
	}

	uri, err := amqp.ParseURI(url)
	if err != nil {
		return nil, fmt.Errorf("[RABBITMQ] invalid RABBITMQ_URL: %w", err)
	}
	logger = logger.With(zap.String("broker_host", uri.Host), zap.String("vhost", uri.Vhost))

	conn, err := amqp.Dial(url)
	if err != nil {
		logger.Error("failed to reach event broker", zap.Error(err))
		return nil, fmt.Errorf("[RABBITMQ] cannot publish reading events, broker %s unreachable: %w", uri.Host, err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("event broker connected")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if conn.IsClosed() {
				return nil
			}
			if err := conn.Close(); err != nil {
				logger.Error("failed to close event broker connection", zap.Error(err))
				return err
			}
			logger.Info("event broker connection closed")
			return nil
		},
	})

	return &Connection{conn: conn}, nil
}

// Channel opens a channel for a publisher.
func (c *Connection) Channel() (*amqp.Channel, error) {
	return c.conn.Channel()
}
