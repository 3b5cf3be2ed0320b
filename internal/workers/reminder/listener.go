package reminder

import (
	"context"
	"fmt"
	"strings"

	"notification-workers/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// KeyHandler handles one expired key.
type KeyHandler interface {
	Handle(ctx context.Context, key string) error
}

// Listener subscribes to Redis keyspace expiry events and dispatches the
// scheduler's keys.
type Listener struct {
	rdb     *redis.Client
	db      int
	prefix  string
	handler KeyHandler
	logger  logger.Logger
}

func NewListener(rdb *redis.Client, db int, prefix string, handler KeyHandler, log logger.Logger) *Listener {
	return &Listener{
		rdb:     rdb,
		db:      db,
		prefix:  prefix,
		handler: handler,
		logger:  log.WithFields(map[string]interface{}{"component": "reminder-listener"}),
	}
}

// Channel is the keyevent channel for expirations in the listener's db.
func (l *Listener) Channel() string {
	return fmt.Sprintf("__keyevent@%d__:expired", l.db)
}

// Run blocks until ctx is done. Expiry events are only published when the
// server's notify-keyspace-events includes keyevent and expired flags; they
// are merged into whatever the server already has, but managed servers may
// refuse CONFIG.
func (l *Listener) Run(ctx context.Context) error {
	l.enableExpiryEvents(ctx)

	sub := l.rdb.PSubscribe(ctx, l.Channel())
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", l.Channel(), err)
	}
	l.logger.Info("Reminder listener started", map[string]interface{}{"channel": l.Channel()})

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(msg.Payload, l.prefix+":") {
				continue
			}
			// errors are logged by the handler; the key is gone either way
			_ = l.handler.Handle(ctx, msg.Payload)
		}
	}
}

func (l *Listener) enableExpiryEvents(ctx context.Context) {
	current, err := l.rdb.ConfigGet(ctx, "notify-keyspace-events").Result()
	if err != nil {
		l.logger.Warn("Could not read keyspace notification flags", map[string]interface{}{"error": err})
		return
	}
	have := current["notify-keyspace-events"]
	want := keyspaceFlags(have)
	if want == have {
		return
	}
	if err := l.rdb.ConfigSet(ctx, "notify-keyspace-events", want).Err(); err != nil {
		l.logger.Warn("Could not enable keyspace notifications", map[string]interface{}{
			"current": have,
			"error":   err,
		})
		return
	}
	l.logger.Info("Keyspace notifications enabled", map[string]interface{}{"flags": want})
}

// keyspaceFlags adds keyevent (E) and expired (x) to the current
// notify-keyspace-events flags. "A" already covers x.
func keyspaceFlags(current string) string {
	flags := current
	if !strings.Contains(flags, "E") {
		flags += "E"
	}
	if !strings.ContainsAny(flags, "xA") {
		flags += "x"
	}
	return flags
}
