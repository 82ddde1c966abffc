package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBoard lets redis expire the message, so every api-server instance
// sharing the redis shows the same one.
type RedisBoard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisBoard(client *redis.Client, ttl time.Duration) *RedisBoard {
	return &RedisBoard{client: client, ttl: ttl}
}

func messageKey(profileID string) string {
	return fmt.Sprintf("profile:%s:message", profileID)
}

func (b *RedisBoard) Post(ctx context.Context, profileID string, severity Severity, text string) error {
	data, err := json.Marshal(Message{
		Severity:  severity,
		Text:      text,
		ExpiresAt: time.Now().Add(b.ttl),
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := b.client.Set(ctx, messageKey(profileID), data, b.ttl).Err(); err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

func (b *RedisBoard) Current(ctx context.Context, profileID string) (Message, bool, error) {
	data, err := b.client.Get(ctx, messageKey(profileID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, fmt.Errorf("read message: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, false, fmt.Errorf("decode message: %w", err)
	}
	return msg, true, nil
}
