package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/common/lock"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"
	"notification-workers/internal/store"
	"notification-workers/internal/store/storetest"
	"notification-workers/internal/workers/fanout"
	"notification-workers/internal/workers/receiver"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prefix = "transaction:sign:reminder"

type nopRouter struct{}

func (nopRouter) Deliver(context.Context, *models.Notification, []models.NotificationReceiver) error {
	return nil
}

func (nopRouter) Remove(context.Context, map[int64][]int64) error { return nil }

func (nopRouter) NotifyClients(context.Context, fanout.NotifyClients) error { return nil }

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func signer(userID int64, signed bool) store.RequiredKeyOwner {
	id := userID
	return store.RequiredKeyOwner{UserKeyID: userID * 100, UserID: &id, Signed: signed}
}

func newHandler(t *testing.T, rdb *redis.Client) (*Handler, *storetest.Memory) {
	t.Helper()
	mem := storetest.NewMemory()
	mem.Transactions[42] = models.Transaction{ID: 42, Status: models.StatusWaitingForSignatures}
	mem.Creators[42] = 10
	mem.RequiredKeys[42] = []store.RequiredKeyOwner{signer(1, true), signer(2, false)}

	svc := receiver.NewService(mem, nopRouter{}, logger.NewNoOpLogger())
	h := NewHandler(NewScheduler(rdb, prefix), mem, svc, lock.NewLocker(rdb, "lock:"), 10*time.Second, time.Minute, logger.NewNoOpLogger())
	return h, mem
}

func TestScheduler_ScheduleNeverExtends(t *testing.T) {
	mr, rdb := setupRedis(t)
	s := NewScheduler(rdb, prefix)
	ctx := context.Background()

	require.NoError(t, s.Schedule(ctx, 42, time.Hour))
	mr.FastForward(30 * time.Minute)
	require.NoError(t, s.Schedule(ctx, 42, time.Hour))

	assert.True(t, mr.Exists(prefix+":42"))
	assert.Equal(t, 30*time.Minute, mr.TTL(prefix+":42"))

	mr.FastForward(31 * time.Minute)
	assert.False(t, mr.Exists(prefix+":42"))

	assert.Error(t, s.Schedule(ctx, 42, 0))
}

func TestScheduler_ParseKey(t *testing.T) {
	s := NewScheduler(nil, prefix)
	tests := []struct {
		key  string
		id   int64
		want bool
	}{
		{prefix + ":42", 42, true},
		{s.Key(7), 7, true},
		{prefix + ":abc", 0, false},
		{prefix + ":-1", 0, false},
		{"other:42", 0, false},
		{prefix, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			id, ok := s.ParseKey(tt.key)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestHandler_SendsReminderOnce(t *testing.T) {
	_, rdb := setupRedis(t)
	h, mem := newHandler(t, rdb)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, prefix+":42"))
	require.NoError(t, h.Handle(ctx, prefix+":42"))

	reminders := mem.NotificationsOf(models.TypeTransactionSignatureReminder, 42)
	require.Len(t, reminders, 1)
	assert.Equal(t, []int64{2, 10}, mem.ReceiverUsers(reminders[0].ID), "pending signers plus creator")
}

func TestHandler_ConcurrentFiringsSendOnce(t *testing.T) {
	_, rdb := setupRedis(t)
	h, mem := newHandler(t, rdb)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Handle(context.Background(), prefix+":42")
		}()
	}
	wg.Wait()

	assert.Len(t, mem.NotificationsOf(models.TypeTransactionSignatureReminder, 42), 1)
}

func TestHandler_Ignores(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		setup func(mem *storetest.Memory)
	}{
		{name: "unparseable key", key: prefix + ":nope"},
		{name: "unknown transaction", key: prefix + ":999"},
		{
			name: "no longer waiting for signatures",
			key:  prefix + ":42",
			setup: func(mem *storetest.Memory) {
				tx := mem.Transactions[42]
				tx.Status = models.StatusExecuted
				mem.Transactions[42] = tx
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rdb := setupRedis(t)
			h, mem := newHandler(t, rdb)
			if tt.setup != nil {
				tt.setup(mem)
			}
			require.NoError(t, h.Handle(context.Background(), tt.key))
			assert.Empty(t, mem.AllNotifications())
		})
	}
}

func TestHandler_LockContentionSkips(t *testing.T) {
	_, rdb := setupRedis(t)
	h, mem := newHandler(t, rdb)
	ctx := context.Background()

	held, err := lock.NewLocker(rdb, "lock:").Acquire(ctx, prefix+":42", time.Minute)
	require.NoError(t, err)
	defer held.Release(ctx)

	require.NoError(t, h.Handle(ctx, prefix+":42"))
	assert.Empty(t, mem.AllNotifications())
}

type notifierFunc func(ctx context.Context, tx *models.Transaction) ([]models.NotificationReceiver, error)

func (f notifierFunc) RemindRequiredSigners(ctx context.Context, tx *models.Transaction) ([]models.NotificationReceiver, error) {
	return f(ctx, tx)
}

func TestHandler_RetryableFailureRearms(t *testing.T) {
	mr, rdb := setupRedis(t)
	h, mem := newHandler(t, rdb)
	ctx := context.Background()

	calls := 0
	svc := h.notifier
	h.notifier = notifierFunc(func(ctx context.Context, tx *models.Transaction) ([]models.NotificationReceiver, error) {
		calls++
		if calls == 1 {
			return nil, errors.NewPersistenceError("create notification", assert.AnError)
		}
		return svc.RemindRequiredSigners(ctx, tx)
	})
	h.retryDelay = 5 * time.Minute

	err := h.Handle(ctx, prefix+":42")
	require.Error(t, err)
	assert.True(t, mr.Exists(prefix+":42"))
	assert.Equal(t, 5*time.Minute, mr.TTL(prefix+":42"))
	assert.Empty(t, mem.AllNotifications())

	// the re-armed key fires again and the reminder goes out
	mr.FastForward(5 * time.Minute)
	require.False(t, mr.Exists(prefix+":42"))
	require.NoError(t, h.Handle(ctx, prefix+":42"))
	assert.Equal(t, 2, calls)
	require.Len(t, mem.AllNotifications(), 1)
	assert.Equal(t, models.TypeTransactionSignatureReminder, mem.AllNotifications()[0].Type)
}

func TestHandler_PermanentFailureDoesNotRearm(t *testing.T) {
	mr, rdb := setupRedis(t)
	h, _ := newHandler(t, rdb)
	h.notifier = notifierFunc(func(context.Context, *models.Transaction) ([]models.NotificationReceiver, error) {
		return nil, errors.NewInvalidPayloadError("reminder", assert.AnError)
	})

	require.Error(t, h.Handle(context.Background(), prefix+":42"))
	assert.False(t, mr.Exists(prefix+":42"))
}

func TestKeyspaceFlags(t *testing.T) {
	tests := []struct {
		current string
		want    string
	}{
		{"", "Ex"},
		{"Ex", "Ex"},
		{"xE", "xE"},
		{"KEA", "KEA"},
		{"Kg", "KgEx"},
		{"El", "Elx"},
		{"x", "xE"},
	}
	for _, tt := range tests {
		t.Run(tt.current, func(t *testing.T) {
			assert.Equal(t, tt.want, keyspaceFlags(tt.current))
		})
	}
}

type recordingHandler struct {
	mu   sync.Mutex
	keys []string
	done chan struct{}
}

func (r *recordingHandler) Handle(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	close(r.done)
	return nil
}

func TestListener_DispatchesExpiredSchedulerKeys(t *testing.T) {
	_, rdb := setupRedis(t)
	rec := &recordingHandler{done: make(chan struct{})}
	l := NewListener(rdb, 0, prefix, rec, logger.NewNoOpLogger())
	assert.Equal(t, "__keyevent@0__:expired", l.Channel())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()

	// miniredis does not emit keyspace events; publish them the way Redis would.
	require.Eventually(t, func() bool {
		n, err := rdb.Publish(ctx, l.Channel(), "unrelated:key").Result()
		return err == nil && n > 0
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, rdb.Publish(ctx, l.Channel(), prefix+":42").Err())

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	rec.mu.Lock()
	assert.Equal(t, []string{prefix + ":42"}, rec.keys)
	rec.mu.Unlock()

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}
