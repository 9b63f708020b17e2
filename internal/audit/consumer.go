package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/stempede/stempede-api/internal"
)

// Entry is the decoded audit record pulled off the queue.
type Entry struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    int64                  `json:"user_id"`
	Username  string                 `json:"username,omitempty"`
	IPAddress string                 `json:"ip_address"`
	Data      map[string]interface{} `json:"data"`
}

// Consumer drains the audit queue and writes each entry to the structured
// log. It runs a reconnect loop with capped backoff and only returns when the
// context is cancelled.
type Consumer struct {
	cfg    internal.BrokerConfig
	logger *slog.Logger
}

func NewConsumer(cfg internal.BrokerConfig, logger *slog.Logger) *Consumer {
	return &Consumer{cfg: cfg, logger: logger}
}

func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := amqp.Dial(c.cfg.URL)
		if err != nil {
			c.logger.Error("audit consumer dial failed", "error", err, "retry_in", backoff.String())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := c.consume(ctx, conn); err != nil {
			_ = conn.Close()
			if errors.Is(err, context.Canceled) {
				return err
			}
			c.logger.Warn("audit consume loop ended, reconnecting", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("audit consumer qos failed", "error", err)
	}

	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.record(d.Body); err != nil {
				c.logger.Error("audit record failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) record(body []byte) error {
	var entry Entry
	if err := json.Unmarshal(body, &entry); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	c.logger.Info("security audit",
		"event_id", entry.ID,
		"event_type", entry.Type,
		"occurred_at", entry.Timestamp,
		"user_id", entry.UserID,
		"username", entry.Username,
		"ip_address", entry.IPAddress,
	)
	return nil
}
