package consumer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"

	"github.com/go-co-op/gocron/v2"
	"github.com/redis/go-redis/v9"
)

const (
	fieldSubject = "subject"
	fieldData    = "data"
)

// RedisSourceConfig binds a consumer group to one stream.
type RedisSourceConfig struct {
	Stream   string
	Group    string // durable name
	Consumer string // unique per process
	Subjects []string

	BatchSize       int64
	Block           time.Duration
	AckWait         time.Duration
	ReclaimInterval time.Duration
}

// RedisSource reads a stream through a consumer group. Nacked entries stay in
// the group's pending list and are reclaimed once idle longer than AckWait.
type RedisSource struct {
	rdb       redis.Cmdable
	cfg       RedisSourceConfig
	subjects  map[string]struct{}
	logger    logger.Logger
	scheduler gocron.Scheduler

	mu      sync.Mutex
	pending []*Message
	queued  map[string]struct{}
}

// NewRedisSource creates the consumer group if needed and starts the reclaim job.
func NewRedisSource(ctx context.Context, rdb redis.Cmdable, cfg RedisSourceConfig, log logger.Logger) (*RedisSource, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Consumer == "" {
		cfg.Consumer = cfg.Group
	}

	err := rdb.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group %s on %s: %w", cfg.Group, cfg.Stream, err)
	}

	s := &RedisSource{
		rdb:      rdb,
		cfg:      cfg,
		subjects: make(map[string]struct{}, len(cfg.Subjects)),
		logger:   log.WithFields(map[string]interface{}{"component": "redis-source", "stream": cfg.Stream, "group": cfg.Group}),
		queued:   make(map[string]struct{}),
	}
	for _, sub := range cfg.Subjects {
		s.subjects[sub] = struct{}{}
	}

	if cfg.ReclaimInterval > 0 {
		if err := s.startReclaimer(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *RedisSource) startReclaimer(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create reclaim scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.cfg.ReclaimInterval),
		gocron.NewTask(func() {
			if n, err := s.Reclaim(ctx); err != nil {
				s.logger.Warn("Reclaim failed", map[string]interface{}{"error": err.Error()})
			} else if n > 0 {
				s.logger.Debug("Reclaimed pending entries", map[string]interface{}{"count": n})
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule reclaim job: %w", err)
	}
	sched.Start()
	s.scheduler = sched
	return nil
}

// Reclaim claims entries idle longer than AckWait for this consumer and
// queues them for the next Fetch. It returns how many were queued.
func (s *RedisSource) Reclaim(ctx context.Context) (int, error) {
	msgs, _, err := s.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.cfg.Stream,
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		MinIdle:  s.cfg.AckWait,
		Start:    "0-0",
		Count:    s.cfg.BatchSize,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}

	queued := 0
	for _, xm := range msgs {
		msg := s.toMessage(xm)
		msg.Deliveries = s.deliveryCount(ctx, xm.ID)

		s.mu.Lock()
		if _, dup := s.queued[msg.ID]; !dup {
			s.queued[msg.ID] = struct{}{}
			s.pending = append(s.pending, msg)
			queued++
		}
		s.mu.Unlock()
	}
	if queued > 0 {
		metrics.ConsumerReclaimed.WithLabelValues(s.cfg.Stream).Add(float64(queued))
	}
	return queued, nil
}

func (s *RedisSource) deliveryCount(ctx context.Context, id string) int {
	res, err := s.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: s.cfg.Stream,
		Group:  s.cfg.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(res) == 0 {
		return 1
	}
	return int(res[0].RetryCount)
}

// Fetch returns reclaimed entries first, then blocks for new ones.
// Entries whose subject is not routed here are acked and skipped.
func (s *RedisSource) Fetch(ctx context.Context) ([]*Message, error) {
	if batch := s.takePending(); len(batch) > 0 {
		return s.filter(ctx, batch), nil
	}

	streams, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, ">"},
		Count:    s.cfg.BatchSize,
		Block:    s.cfg.Block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var batch []*Message
	for _, st := range streams {
		for _, xm := range st.Messages {
			msg := s.toMessage(xm)
			msg.Deliveries = 1
			batch = append(batch, msg)
		}
	}
	return s.filter(ctx, batch), nil
}

func (s *RedisSource) takePending() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.pending)
	if n == 0 {
		return nil
	}
	if int64(n) > s.cfg.BatchSize {
		n = int(s.cfg.BatchSize)
	}
	batch := s.pending[:n]
	s.pending = append([]*Message(nil), s.pending[n:]...)
	for _, m := range batch {
		delete(s.queued, m.ID)
	}
	return batch
}

func (s *RedisSource) filter(ctx context.Context, batch []*Message) []*Message {
	out := batch[:0]
	for _, msg := range batch {
		if _, ok := s.subjects[msg.Subject]; ok || len(s.subjects) == 0 {
			out = append(out, msg)
			continue
		}
		if err := s.Ack(ctx, msg); err != nil {
			s.logger.Warn("Failed to ack unrouted entry", map[string]interface{}{"messageId": msg.ID, "error": err.Error()})
		}
	}
	return out
}

func (s *RedisSource) toMessage(xm redis.XMessage) *Message {
	msg := &Message{ID: xm.ID}
	if v, ok := xm.Values[fieldSubject].(string); ok {
		msg.Subject = v
	}
	if v, ok := xm.Values[fieldData].(string); ok {
		msg.Data = []byte(v)
	}
	return msg
}

func (s *RedisSource) Ack(ctx context.Context, msg *Message) error {
	return s.rdb.XAck(ctx, s.cfg.Stream, s.cfg.Group, msg.ID).Err()
}

// Nack leaves the entry pending; the reclaim job hands it back after AckWait.
func (s *RedisSource) Nack(_ context.Context, _ *Message) error {
	return nil
}

// Close stops the reclaim job. Broadcast groups (unique durable names) are
// destroyed so they do not accumulate on the stream.
func (s *RedisSource) Close() error {
	if s.scheduler != nil {
		return s.scheduler.Shutdown()
	}
	return nil
}

// DestroyGroup removes the consumer group. Used for per-process fan-out groups.
func (s *RedisSource) DestroyGroup(ctx context.Context) error {
	return s.rdb.XGroupDestroy(ctx, s.cfg.Stream, s.cfg.Group).Err()
}
