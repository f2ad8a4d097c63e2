package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/edgard/expensebot/internal/config"
)

const publishTimeout = 5 * time.Second

// AMQPPublisher publishes events to a durable direct exchange.
type AMQPPublisher struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	exchange   string
	queue      string
	routingKey string
	log        *slog.Logger
	mu         sync.Mutex
}

// New returns an AMQP publisher when events are enabled, Noop otherwise.
func New(cfg config.EventsConfig, logger *slog.Logger) (Publisher, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	return NewAMQPPublisher(cfg, logger)
}

// NewAMQPPublisher dials the broker and declares the exchange, queue and binding.
func NewAMQPPublisher(cfg config.EventsConfig, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p := &AMQPPublisher{
		conn:       conn,
		channel:    channel,
		exchange:   cfg.Exchange,
		queue:      cfg.Queue,
		routingKey: cfg.RoutingKey,
		log:        logger.With("component", "event_publisher"),
	}

	if err := p.setup(); err != nil {
		p.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	p.log.Info("AMQP publisher ready", "exchange", p.exchange, "queue", p.queue, "routing_key", p.routingKey)
	return p, nil
}

func (p *AMQPPublisher) setup() error {
	err := p.channel.ExchangeDeclare(
		p.exchange, // name
		"direct",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if p.queue == "" {
		return nil
	}

	_, err = p.channel.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := p.channel.QueueBind(p.queue, p.routingKey, p.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishExpenseRecorded sends one persistent JSON message.
func (p *AMQPPublisher) PublishExpenseRecorded(ctx context.Context, event ExpenseRecorded) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.EventID,
			Type:         "expense.recorded",
			Timestamp:    event.RecordedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	p.log.DebugContext(ctx, "Published expense event",
		"event_id", event.EventID,
		"transaction_id", event.TransactionID)
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
