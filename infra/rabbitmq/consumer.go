package rabbitmq

import (
	"catalog/pkg/events"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// EventHandler is a function that processes events
type EventHandler func(ctx context.Context, event *events.Event) error

type ConsumerConfig struct {
	Exchange       string   // e.g., "catalog.review"
	QueueName      string   // e.g., "catalog.review.created.v1"
	RoutingKeys    []string // e.g., ["review.created.v1"]
	ServiceName    string
	PrefetchCount  int // messages held unacked by this consumer, default 10
	WorkerPoolSize int // messages processed concurrently, default 1
	HandlerTimeout time.Duration
}

type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  ConsumerConfig
}

func NewConsumer(url string, config ConsumerConfig) (*Consumer, error) {
	if config.PrefetchCount <= 0 {
		config.PrefetchCount = 10
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 1
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = 30 * time.Second
	}

	conn, err := dial(url)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareQueue(channel, config); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	zap.L().Info("RabbitMQ consumer created successfully",
		zap.String("queue", config.QueueName),
		zap.String("exchange", config.Exchange),
		zap.Strings("routingKeys", config.RoutingKeys),
		zap.Int("workers", config.WorkerPoolSize),
	)

	return &Consumer{
		conn:    conn,
		channel: channel,
		config:  config,
	}, nil
}

// declareQueue sets up the queue, its dead letter queue and their bindings.
// Messages rejected by the handler end up in the dead letter queue.
func declareQueue(ch *amqp.Channel, config ConsumerConfig) error {
	if err := ch.Qos(config.PrefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	dlxName := config.Exchange + ".dlx"
	for _, exchange := range []string{config.Exchange, dlxName} {
		if err := declareTopicExchange(ch, exchange); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
		}
	}

	queue, err := ch.QueueDeclare(config.QueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": dlxName,
	})
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	dlqName := config.QueueName + ".dlq"
	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	for _, routingKey := range config.RoutingKeys {
		if err := ch.QueueBind(dlqName, routingKey, dlxName, false, nil); err != nil {
			return fmt.Errorf("failed to bind DLQ: %w", err)
		}
		if err := ch.QueueBind(queue.Name, routingKey, config.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue: %w", err)
		}
	}
	return nil
}

// Consume delivers messages to handler on WorkerPoolSize goroutines until ctx
// is cancelled, then waits for in-flight messages to finish.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	msgs, err := c.channel.Consume(
		c.config.QueueName,
		c.config.ServiceName, // consumer tag
		false,                // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	zap.L().Info("Started consuming messages", zap.String("queue", c.config.QueueName))

	var wg sync.WaitGroup
	defer wg.Wait()

	for range c.config.WorkerPoolSize {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-msgs:
					if !ok {
						return
					}
					handleDelivery(ctx, msg, msg.Body, msg.Headers, handler, c.config.HandlerTimeout)
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
		zap.L().Info("Consumer context cancelled, stopping...")
		return ctx.Err()
	case reason := <-c.conn.NotifyClose(make(chan *amqp.Error, 1)):
		if reason == nil {
			return errors.New("connection closed")
		}
		return fmt.Errorf("connection closed: %w", reason)
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// handleDelivery acks a message once handler succeeds. Malformed messages and
// handler failures are rejected without requeue.
func handleDelivery(ctx context.Context, ack acknowledger, body []byte, headers amqp.Table, handler EventHandler, timeout time.Duration) {
	traceID, _ := headers["x-trace-id"].(string)
	service, _ := headers["x-service"].(string)

	var event events.Event
	if err := json.Unmarshal(body, &event); err != nil {
		zap.L().Error("Failed to unmarshal event",
			zap.Error(err),
			zap.String("traceId", traceID),
			zap.String("sourceService", service),
		)
		_ = ack.Nack(false, false)
		return
	}

	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := handler(processCtx, &event); err != nil {
		zap.L().Error("Failed to process event",
			zap.Error(err),
			zap.String("event", event.Event),
			zap.String("traceId", traceID),
		)
		_ = ack.Nack(false, false)
		return
	}

	if err := ack.Ack(false); err != nil {
		zap.L().Error("Failed to acknowledge message",
			zap.Error(err),
			zap.String("traceId", traceID),
		)
		return
	}

	zap.L().Debug("Processed event",
		zap.String("event", event.Event),
		zap.String("traceId", traceID),
	)
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			zap.L().Error("Failed to close channel", zap.Error(err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			zap.L().Error("Failed to close connection", zap.Error(err))
			return err
		}
	}
	zap.L().Info("RabbitMQ consumer closed")
	return nil
}
