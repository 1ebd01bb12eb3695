// Package rabbitmq publishes engine events to a RabbitMQ exchange for
// external observers (dashboards, audit consumers). Publishing is
// best-effort; the drivers log and continue when the broker is down.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"sms-campaign-engine/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

const exchangeName = "campaigns"
const queueName = "campaigns.events"
const routingKey = "campaigns.events"

// Publisher implements ports.EventPublisher using RabbitMQ.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewPublisher dials RabbitMQ, declares the exchange and queue, and
// binds them.
func NewPublisher(amqpURL string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, channel: ch}, nil
}

// Publish serialises an EngineEvent and sends it to the exchange.
func (p *Publisher) Publish(ctx context.Context, ev ports.EngineEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return p.channel.PublishWithContext(
		ctx,
		exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         ev.Kind,
			Body:         body,
		},
	)
}

// Close cleanly shuts down the channel and connection.
func (p *Publisher) Close() {
	p.channel.Close()
	p.conn.Close()
}

// declare idempotently sets up the exchange, queue, and binding.
func declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}
