package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streadway/amqp"

	"github.com/JaimeStill/terra/internal/metrics"
	"github.com/JaimeStill/terra/pkg/lifecycle"
)

// Handler processes a delivery. Return nil to ack, Permanent(err) to drop,
// or any other error to retry through the retry exchange.
type Handler func(ctx context.Context, msg *Message) error

// Subscriber consumes submission events with a bounded worker pool. Every
// delivery is acked only after its handler returns. A closed delivery
// channel triggers a reconnect with exponential backoff.
type Subscriber struct {
	cfg      Config
	handlers map[string]Handler
	logger   *slog.Logger

	// mu serializes operations on ch, which is not safe for concurrent use.
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel

	connected    atomic.Bool
	lastDelivery atomic.Int64

	republish func(routingKey string, pub amqp.Publishing) error
}

// NewSubscriber creates a Subscriber dispatching by routing key. No
// connection is made until Start.
func NewSubscriber(cfg *Config, handlers map[string]Handler, logger *slog.Logger) *Subscriber {
	s := &Subscriber{
		cfg:      *cfg,
		handlers: handlers,
		logger:   logger.With("system", "events"),
	}
	s.republish = s.publishRetry
	return s
}

// Start runs the consume loop under the coordinator. The loop stops and
// drains in-flight deliveries on shutdown.
func (s *Subscriber) Start(lc *lifecycle.Coordinator) error {
	s.logger.Info("starting submission subscriber",
		"exchange", s.cfg.Exchange,
		"queue", s.cfg.Queue,
		"workers", s.cfg.Workers(),
	)
	lc.Run(s.Run)
	return nil
}

// Ready reports whether the subscriber is connected and consuming.
func (s *Subscriber) Ready() bool {
	return s.connected.Load()
}

// LastDeliveryAt returns when the last delivery was observed.
func (s *Subscriber) LastDeliveryAt() time.Time {
	ns := s.lastDelivery.Load()
	if ns <= 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Run consumes until ctx is done.
func (s *Subscriber) Run(ctx context.Context) {
	workers := s.cfg.Workers()
	jobs := make(chan amqp.Delivery, workers)

	// handlers keep running through shutdown so their acks reach the broker
	work := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := range workers {
		id := i + 1
		wg.Go(func() {
			for d := range jobs {
				s.dispatch(work, id, d)
			}
		})
	}

	defer func() {
		close(jobs)
		wg.Wait()
		s.close()
		s.logger.Info("submission subscriber stopped")
	}()

	maxBackoff := s.cfg.MaxReconnectDuration()
	backoff := time.Second
	for ctx.Err() == nil {
		msgs, err := s.consume()
		if err != nil {
			s.setConnected(false)
			s.logger.Error("consume setup failed", "queue", s.cfg.Queue, "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		s.logger.Info("consuming", "exchange", s.cfg.Exchange, "queue", s.cfg.Queue, "workers", workers)
		backoff = time.Second

		if !pump(ctx, msgs, jobs) {
			return
		}

		s.setConnected(false)
		s.logger.Warn("delivery channel closed, reconnecting", "queue", s.cfg.Queue)
		if !sleep(ctx, backoff) {
			return
		}
	}
}

func pump(ctx context.Context, msgs <-chan amqp.Delivery, jobs chan<- amqp.Delivery) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case d, ok := <-msgs:
			if !ok {
				return true
			}
			select {
			case jobs <- d:
			case <-ctx.Done():
				return false
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// consume (re)connects when needed, reapplies topology, and starts consuming.
func (s *Subscriber) consume() (<-chan amqp.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.conn.IsClosed() || s.ch == nil {
		if err := s.connectLocked(); err != nil {
			return nil, err
		}
	}

	if err := s.ch.Qos(s.cfg.Workers(), 0, false); err != nil {
		s.dropLocked()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	if err := declareTopology(s.ch, &s.cfg, s.handlers); err != nil {
		s.dropLocked()
		return nil, err
	}

	msgs, err := s.ch.Consume(s.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		s.dropLocked()
		return nil, fmt.Errorf("consume %s: %w", s.cfg.Queue, err)
	}

	s.setConnected(true)
	return msgs, nil
}

func (s *Subscriber) connectLocked() error {
	s.dropLocked()

	conn, err := dial(&s.cfg)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	s.conn = conn
	s.ch = ch
	return nil
}

func (s *Subscriber) dropLocked() {
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked()
	s.setConnected(false)
}

func (s *Subscriber) setConnected(v bool) {
	s.connected.Store(v)
	if v {
		metrics.BrokerConnected.Set(1)
	} else {
		metrics.BrokerConnected.Set(0)
	}
}

func (s *Subscriber) publishRetry(routingKey string, pub amqp.Publishing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return fmt.Errorf("publish retry: channel closed")
	}
	return s.ch.Publish(s.cfg.RetryExchange(), routingKey, false, false, pub)
}

// dispatch runs the handler for d and settles the delivery.
func (s *Subscriber) dispatch(ctx context.Context, worker int, d amqp.Delivery) {
	started := time.Now()
	s.lastDelivery.Store(started.UnixNano())
	metrics.BrokerLastDeliverySeconds.Set(float64(started.Unix()))
	metrics.WorkerInFlight.Inc()
	defer metrics.WorkerInFlight.Dec()

	msg := &Message{
		Body:        d.Body,
		RoutingKey:  d.RoutingKey,
		ContentType: d.ContentType,
		Timestamp:   d.Timestamp,
		DeliveryTag: d.DeliveryTag,
		Redelivered: d.Redelivered,
		Attempt:     retryCount(d.Headers),
	}

	var err error
	if h, ok := s.handlers[d.RoutingKey]; ok {
		err = invoke(ctx, h, msg)
	} else {
		err = Permanent(fmt.Errorf("no handler for routing key %q", d.RoutingKey))
	}

	result, settleErr := s.settle(d, msg.Attempt, err)
	metrics.DeliveriesTotal.WithLabelValues(result).Inc()

	attrs := []any{
		"worker", worker,
		"routing_key", d.RoutingKey,
		"delivery_tag", d.DeliveryTag,
		"attempt", msg.Attempt,
		"result", result,
		"duration_ms", time.Since(started).Milliseconds(),
	}
	if settleErr != nil {
		attrs = append(attrs, "settle_error", settleErr)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "delivery failed", append(attrs, "error", err)...)
		return
	}
	s.logger.DebugContext(ctx, "delivery handled", attrs...)
}

func invoke(ctx context.Context, h Handler, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return h(ctx, msg)
}

// settle acks, drops, or retries d according to err and returns the
// delivery result label.
func (s *Subscriber) settle(d amqp.Delivery, attempt int, err error) (string, error) {
	switch {
	case err == nil:
		return "ack", s.ack(d)
	case IsPermanent(err), attempt >= s.cfg.MaxRetries:
		return "drop", s.nack(d, false)
	}

	pub := amqp.Publishing{
		Headers:      withRetryCount(d.Headers, attempt+1),
		ContentType:  d.ContentType,
		Body:         d.Body,
		DeliveryMode: d.DeliveryMode,
		Timestamp:    d.Timestamp,
	}
	if perr := s.republish(d.RoutingKey, pub); perr != nil {
		return "requeue", errors.Join(fmt.Errorf("republish: %w", perr), s.nack(d, true))
	}
	return "retry", s.ack(d)
}

func (s *Subscriber) ack(d amqp.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return d.Ack(false)
}

func (s *Subscriber) nack(d amqp.Delivery, requeue bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return d.Nack(false, requeue)
}

func dial(cfg *Config) (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(cfg.DialTimeoutDuration()),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	return conn, nil
}

// declareTopology declares the event exchange, the work queue bound to
// every handled routing key, and a retry exchange whose queue dead-letters
// back to the event exchange after the retry delay.
func declareTopology(ch *amqp.Channel, cfg *Config, handlers map[string]Handler) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}
	for key := range handlers {
		if err := ch.QueueBind(cfg.Queue, key, cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, cfg.Queue, err)
		}
	}

	retryExchange := cfg.RetryExchange()
	retryQueue := cfg.Queue + ".retry"
	if err := ch.ExchangeDeclare(retryExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", retryExchange, err)
	}
	_, err := ch.QueueDeclare(retryQueue, true, false, false, false, amqp.Table{
		"x-message-ttl":          int32(cfg.RetryDelayDuration().Milliseconds()),
		"x-dead-letter-exchange": cfg.Exchange,
	})
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", retryQueue, err)
	}
	if err := ch.QueueBind(retryQueue, "", retryExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", retryQueue, err)
	}
	return nil
}
