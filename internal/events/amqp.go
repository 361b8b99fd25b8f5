package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avast/retry-go/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fundlabs-io/vault-engine/internal/config"
	"github.com/fundlabs-io/vault-engine/internal/observability/tracing"
	"github.com/fundlabs-io/vault-engine/internal/types"
)

const (
	publishAttempts = 3
	publishDelay    = 200 * time.Millisecond
)

// AmqpSink publishes events to a durable queue as JSON bodies.
type AmqpSink struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
}

func NewAmqpSink(cfg config.EventsConfig) (*AmqpSink, error) {
	conn, err := amqp.Dial(cfg.Url)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	_, err = channel.QueueDeclare(
		cfg.QueueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, err
	}

	return &AmqpSink{
		conn:      conn,
		channel:   channel,
		queueName: cfg.QueueName,
	}, nil
}

func (s *AmqpSink) Publish(ctx context.Context, event types.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	headers := amqp.Table{}
	if id := tracing.TraceID(ctx); id != "" {
		headers["x-trace-id"] = id
	}

	return retry.Do(
		func() error {
			return s.channel.PublishWithContext(
				ctx,
				"", // default exchange
				s.queueName,
				false, // mandatory
				false, // immediate
				amqp.Publishing{
					ContentType: "application/json",
					Headers:     headers,
					Timestamp:   event.Timestamp,
					Body:        body,
				},
			)
		},
		retry.Context(ctx),
		retry.Attempts(publishAttempts),
		retry.Delay(publishDelay),
	)
}

func (s *AmqpSink) Close() error {
	if err := s.channel.Close(); err != nil {
		return err
	}
	return s.conn.Close()
}
