package rabbitmq

import (
	"catalog/pkg/events"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher implements events.Publisher over a topic exchange with publisher
// confirms.
type Publisher struct {
	conn    *amqp.Connection
	service string

	declared sync.Map
}

func NewPublisher(url, service string) (*Publisher, error) {
	conn, err := dial(url)
	if err != nil {
		return nil, err
	}

	zap.L().Info("RabbitMQ publisher connected successfully")

	return &Publisher{
		conn:    conn,
		service: service,
	}, nil
}

// Publish sends event to exchange under its routing key and waits for the
// broker to confirm it.
func (p *Publisher) Publish(ctx context.Context, exchange string, event *events.Event, headers events.Headers) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	// A channel per publish keeps confirmations of concurrent publishes apart.
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to create publish channel: %w", err)
	}
	defer ch.Close()

	if _, done := p.declared.Load(exchange); !done {
		if err := declareTopicExchange(ch, exchange); err != nil {
			return fmt.Errorf("failed to declare exchange: %w", err)
		}
		p.declared.Store(exchange, struct{}{})
	}

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to enable confirms: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	routingKey := event.GetRoutingKey()
	if err := ch.PublishWithContext(publishCtx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Timestamp,
		Headers:      messageHeaders(headers.TraceID, headers.CorrelationID, p.service),
	}); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	select {
	case confirm := <-confirms:
		if !confirm.Ack {
			return errors.New("message was not acknowledged by broker")
		}
	case <-publishCtx.Done():
		return fmt.Errorf("publish confirmation timeout: %w", publishCtx.Err())
	}

	zap.L().Debug("Event published",
		zap.String("exchange", exchange),
		zap.String("routingKey", routingKey),
		zap.String("traceId", headers.TraceID),
	)
	return nil
}

func (p *Publisher) IsHealthy() bool {
	return p != nil && p.conn != nil && !p.conn.IsClosed()
}

func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Close(); err != nil {
		zap.L().Error("Failed to close connection", zap.Error(err))
		return err
	}
	zap.L().Info("RabbitMQ publisher closed")
	return nil
}
