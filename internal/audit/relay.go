// Package audit relays security events to a durable broker queue so sign-in
// activity, token rotations and bans survive process restarts and can feed
// downstream tooling.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/stempede/stempede-api/internal"
	"github.com/stempede/stempede-api/internal/core/events"
)

// Relay subscribes to the in-process event bus and forwards each security
// event to the audit queue. Publish failures are logged, never propagated:
// auditing must not fail the request that produced the event.
type Relay struct {
	cfg    internal.BrokerConfig
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRelay(cfg internal.BrokerConfig, logger *slog.Logger) *Relay {
	return &Relay{cfg: cfg, logger: logger}
}

// Register wires the relay into the bus for every security event type.
func (r *Relay) Register(bus *events.EventBus) {
	for _, eventType := range events.SecurityEventTypes() {
		bus.Subscribe(eventType, r.handle)
	}
}

func (r *Relay) handle(ctx context.Context, ev events.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := r.publish(ctx, body); err != nil {
		r.logger.Error("audit relay publish failed",
			"event_type", ev.EventType(),
			"event_id", ev.EventID(),
			"error", err)
	}
	return nil
}

func (r *Relay) publish(ctx context.Context, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, err := r.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, "", r.cfg.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		// drop the channel so the next event reconnects
		r.reset()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (r *Relay) channel() (*amqp.Channel, error) {
	if r.ch != nil && !r.conn.IsClosed() {
		return r.ch, nil
	}
	r.reset()

	conn, err := amqp.Dial(r.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(r.cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	r.conn = conn
	r.ch = ch
	return ch, nil
}

func (r *Relay) reset() {
	if r.ch != nil {
		_ = r.ch.Close()
		r.ch = nil
	}
	if r.conn != nil {
		_ = r.conn.Close()
		r.conn = nil
	}
}

func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}
