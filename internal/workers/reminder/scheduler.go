// Package reminder raises the one-time "still needs signature" reminder when
// a transaction's scheduler key expires in Redis.
package reminder

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"notification-workers/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

// Scheduler registers per-transaction keys that expire after the reminder delay.
type Scheduler struct {
	rdb    redis.Cmdable
	prefix string
}

func NewScheduler(rdb redis.Cmdable, prefix string) *Scheduler {
	return &Scheduler{rdb: rdb, prefix: prefix}
}

// Key returns the scheduler key of a transaction.
func (s *Scheduler) Key(transactionID int64) string {
	return fmt.Sprintf("%s:%d", s.prefix, transactionID)
}

// Schedule arms the reminder. An armed reminder is never pushed back.
func (s *Scheduler) Schedule(ctx context.Context, transactionID int64, delay time.Duration) error {
	if delay <= 0 {
		return fmt.Errorf("reminder delay must be positive, got %s", delay)
	}
	if err := s.rdb.SetNX(ctx, s.Key(transactionID), transactionID, delay).Err(); err != nil {
		return errors.NewExternalServiceError("redis", fmt.Errorf("schedule reminder %d: %w", transactionID, err))
	}
	return nil
}

// ParseKey extracts the transaction id from a scheduler key.
func (s *Scheduler) ParseKey(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, s.prefix+":")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
