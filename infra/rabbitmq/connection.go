package rabbitmq

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const dialAttempts = 5

// dial connects to the broker, backing off linearly between attempts.
func dial(url string) (*amqp.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		zap.L().Warn("Failed to connect to RabbitMQ, retrying...",
			zap.Int("attempt", attempt),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(attempt))
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after retries: %w", lastErr)
}

func declareTopicExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(
		name,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

func messageHeaders(traceID, correlationID, service string) amqp.Table {
	return amqp.Table{
		"x-trace-id":       traceID,
		"x-correlation-id": correlationID,
		"x-service":        service,
	}
}
