package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/escrow/internal/audit"
)

// DefaultChannel is the Redis channel committed ledger events are published on.
const DefaultChannel = "escrow.events"

// Message describes a notification payload for a committed audit event.
type Message struct {
	Kind        audit.Kind  `json:"kind"`
	Destination string      `json:"destination"`
	Body        string      `json:"body"`
	Event       audit.Event `json:"event"`
}

// Notifier delivers notifications to downstream systems. Delivery happens
// after the state change committed, so failures never undo ledger writes.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", string(message.Kind),
		"destination", message.Destination,
		"body", message.Body,
		"seq", message.Event.Seq,
	)
	return nil
}

// RedisNotifier publishes messages as JSON on a Redis pub/sub channel so UIs
// can refresh on CampaignCreated, ContributionMade and FundsWithdrawn.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier builds a publisher on channel, falling back to DefaultChannel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

// Send publishes the message.
func (n *RedisNotifier) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ForEvent builds the message for a committed event.
func ForEvent(ev audit.Event, destination, body string) Message {
	return Message{Kind: ev.Kind, Destination: destination, Body: body, Event: ev}
}
