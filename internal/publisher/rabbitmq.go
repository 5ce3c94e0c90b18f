// Package publisher fans availability events out to downstream consumers.
//
// Events go to a durable topic exchange under "<prefix>.product.<id>", so a
// consumer can follow one product or bind "<prefix>.#" for all of them. The
// publisher owns one queue bound to the whole prefix.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"stock_watcher/internal/domain"
)

// EventAvailability is the event name carried by availability messages.
const EventAvailability = "availability"

var ErrNacked = errors.New("broker rejected message")

type Config struct {
	URL      string
	Exchange string
	// RoutingKey is the prefix of every routing key.
	RoutingKey string
	QueueName  string
}

// routingKeyFor is the key an event for productID is published under.
func (c Config) routingKeyFor(productID int64) string {
	return fmt.Sprintf("%s.product.%d", c.RoutingKey, productID)
}

func (c Config) bindingKey() string {
	return c.RoutingKey + ".#"
}

type AvailabilityMessage struct {
	Event     string                   `json:"event"`
	Payload   domain.AvailabilityEvent `json:"payload"`
	Timestamp time.Time                `json:"timestamp"`
}

// RabbitMQ publishes availability events with publisher confirms enabled, so
// PublishAvailability returns only once the broker has taken the message.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	logger  *slog.Logger
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	logger = logger.With("component", "publisher")

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"binding", cfg.bindingKey(),
	)

	return &RabbitMQ{conn: conn, channel: ch, cfg: cfg, logger: logger}, nil
}

func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.QueueName, err)
	}

	if err := ch.QueueBind(q.Name, cfg.bindingKey(), cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	return nil
}

// PublishAvailability sends one persistent message per suppressed batch and
// waits for the broker to confirm it.
func (r *RabbitMQ) PublishAvailability(ctx context.Context, event *domain.AvailabilityEvent) error {
	now := time.Now().UTC()
	body, err := json.Marshal(AvailabilityMessage{
		Event:     EventAvailability,
		Payload:   *event,
		Timestamp: now,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := r.cfg.routingKeyFor(event.ProductID)
	confirm, err := r.channel.PublishWithDeferredConfirmWithContext(ctx, r.cfg.Exchange, key, false, false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    uuid.NewString(),
			Type:         EventAvailability,
			Body:         body,
			Timestamp:    now,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", key, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm for %s: %w", key, err)
	}
	if !acked {
		return fmt.Errorf("%w: %s", ErrNacked, key)
	}

	r.logger.Debug("published availability event",
		"routing_key", key,
		"product_id", event.ProductID,
		"skus", len(event.Skus),
	)
	return nil
}

func (r *RabbitMQ) Close() error {
	var errs []error
	if r.channel != nil {
		errs = append(errs, r.channel.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	return errors.Join(errs...)
}
