package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChangesChannel is the pub/sub channel carrying change announcements.
const ChangesChannel = "subtrack:changes"

type changeMessage struct {
	Instance string `json:"instance"`
	UserID   string `json:"userId"`
}

// RedisBus relays change announcements between server instances.
type RedisBus struct {
	client   *redis.Client
	instance string
	logger   *slog.Logger
}

// NewRedisBus connects to redisURL and verifies the connection.
func NewRedisBus(ctx context.Context, redisURL string, logger *slog.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return NewRedisBusFromClient(client, logger), nil
}

func NewRedisBusFromClient(client *redis.Client, logger *slog.Logger) *RedisBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{
		client:   client,
		instance: uuid.NewString(),
		logger:   logger.With("component", "redis_bus"),
	}
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}

// Publish implements Publisher.
func (b *RedisBus) Publish(ctx context.Context, userID string) error {
	payload, err := json.Marshal(changeMessage{Instance: b.instance, UserID: userID})
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, ChangesChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Run subscribes to ChangesChannel and calls onChange for announcements
// from other instances until ctx is done.
func (b *RedisBus) Run(ctx context.Context, onChange func(userID string)) error {
	pubsub := b.client.Subscribe(ctx, ChangesChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", ChangesChannel, err)
	}
	b.logger.Info("Subscribed to change channel", "channel", ChangesChannel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var change changeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				b.logger.Warn("Dropping malformed change message", "error", err)
				continue
			}
			if change.Instance == b.instance || change.UserID == "" {
				continue
			}
			onChange(change.UserID)
		}
	}
}
