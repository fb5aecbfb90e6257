package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/JaimeStill/terra/pkg/lifecycle"
)

// Channel is the publishing subset of *amqp.Channel.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher emits submission events. It connects lazily and redials after
// a failed publish.
type Publisher struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   Channel
	open func() (*amqp.Connection, Channel, error)
	now  func() time.Time
}

// NewPublisher creates a Publisher for cfg's exchange.
func NewPublisher(cfg *Config, logger *slog.Logger) *Publisher {
	p := &Publisher{
		cfg:    *cfg,
		logger: logger.With("system", "events.publisher"),
		now:    time.Now,
	}
	p.open = p.dial
	return p
}

// Start closes the connection on shutdown.
func (p *Publisher) Start(lc *lifecycle.Coordinator) error {
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := p.Close(); err != nil {
			p.logger.Error("publisher close failed", "error", err)
		}
	})
	return nil
}

// NotifyReprocess publishes a reprocess event for id.
func (p *Publisher) NotifyReprocess(ctx context.Context, id uuid.UUID) error {
	return p.Publish(ctx, RoutingReprocess, SubmissionEvent{SubmissionID: id})
}

// NotifyCreated publishes a submission-created event for id.
func (p *Publisher) NotifyCreated(ctx context.Context, id uuid.UUID) error {
	return p.Publish(ctx, RoutingCreated, SubmissionEvent{SubmissionID: id})
}

// Publish sends ev as a persistent JSON message with routingKey.
func (p *Publisher) Publish(ctx context.Context, routingKey string, ev SubmissionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		conn, ch, err := p.open()
		if err != nil {
			return err
		}
		p.conn, p.ch = conn, ch
	}

	err = p.ch.Publish(p.cfg.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now(),
	})
	if err != nil {
		p.closeLocked()
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	p.logger.InfoContext(ctx, "event published", "routing_key", routingKey, "submission_id", ev.SubmissionID)
	return nil
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	var err error
	if p.ch != nil {
		err = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
		p.conn = nil
	}
	return err
}

func (p *Publisher) dial() (*amqp.Connection, Channel, error) {
	conn, err := dial(&p.cfg)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", p.cfg.Exchange, err)
	}
	return conn, ch, nil
}
