package inapp

import (
	"context"
	"fmt"

	"notification-workers/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

// RedisEmitter publishes each event on a per-user pub/sub channel, read by
// the websocket gateway.
type RedisEmitter struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisEmitter(rdb redis.Cmdable, prefix string) *RedisEmitter {
	return &RedisEmitter{rdb: rdb, prefix: prefix}
}

// Channel returns the pub/sub channel of a user.
func (e *RedisEmitter) Channel(userID int64) string {
	return fmt.Sprintf("%s:%d", e.prefix, userID)
}

func (e *RedisEmitter) Emit(ctx context.Context, userID int64, event string, payload interface{}) error {
	msg, err := newEnvelope(userID, event, payload)
	if err != nil {
		return errors.NewInvalidPayloadError(event, err)
	}
	if err := e.rdb.Publish(ctx, e.Channel(userID), msg).Err(); err != nil {
		return errors.NewChannelDeliveryError("redis", err)
	}
	return nil
}
