package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"notification-workers/internal/common/errors"
	"notification-workers/pkg/registry"

	"github.com/redis/go-redis/v9"
)

// Publisher emits a payload on a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
}

// RedisPublisher XADDs to the stream that owns the subject.
type RedisPublisher struct {
	rdb    redis.Cmdable
	reg    *registry.SubjectRegistry
	maxLen int64
}

func NewRedisPublisher(rdb redis.Cmdable, reg *registry.SubjectRegistry, maxLen int64) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, reg: reg, maxLen: maxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	stream, ok := p.reg.StreamFor(subject)
	if !ok {
		return fmt.Errorf("subject %s is not registered on any stream", subject)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", subject, err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			fieldSubject: subject,
			fieldData:    string(data),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.rdb.XAdd(ctx, args).Err(); err != nil {
		return errors.NewExternalServiceError("redis", fmt.Errorf("xadd %s: %w", stream, err))
	}
	return nil
}
