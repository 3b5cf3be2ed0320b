package receiver

import (
	"context"
	"testing"
	"time"

	"notification-workers/internal/common/consumer"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"
	"notification-workers/internal/store"
	"notification-workers/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleTransactionCreated(t *testing.T) {
	svc, mem, _ := newService(t)
	sched := &mockScheduler{}
	WithReminders(sched, 24*time.Hour)(svc)
	mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(1, false), key(creatorID, false)}
	mem.Observers[txID] = []models.TransactionObserver{{TransactionID: txID, UserID: 5}}

	require.NoError(t, svc.HandleTransactionCreated(context.Background(), TransactionEvent{TransactionID: txID}))

	created := mem.NotificationsOf(models.TypeTransactionCreated, txID)
	require.Len(t, created, 1)
	assert.Equal(t, []int64{1, 5}, mem.ReceiverUsers(created[0].ID), "creator is the actor and is skipped")
	require.NotNil(t, created[0].ActorID)
	assert.Equal(t, creatorID, *created[0].ActorID)

	assert.Len(t, mem.NotificationsOf(models.TypeIndicatorSign, txID), 1)

	require.Len(t, sched.calls, 1)
	assert.Equal(t, txID, sched.calls[0].TransactionID)
	assert.Equal(t, 24*time.Hour, sched.calls[0].Delay)
}

func TestHandleTransactionCreated_NotWaitingSkipsReminder(t *testing.T) {
	svc, mem, _ := newService(t)
	sched := &mockScheduler{}
	WithReminders(sched, time.Hour)(svc)
	mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(1, true)}

	require.NoError(t, svc.HandleTransactionCreated(context.Background(), TransactionEvent{TransactionID: txID, Status: models.StatusWaitingForExecution}))
	assert.Empty(t, sched.calls)
}

func TestHandleStatusUpdate_Executed(t *testing.T) {
	svc, mem, router := newService(t)
	mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(1, true), key(2, true)}
	mem.Observers[txID] = []models.TransactionObserver{{TransactionID: txID, UserID: 5}}
	mem.Groups[txID] = []int64{77}

	require.NoError(t, svc.HandleStatusUpdate(context.Background(), TransactionEvent{TransactionID: txID, Status: models.StatusExecuted}))

	executed := mem.NotificationsOf(models.TypeTransactionExecuted, txID)
	require.Len(t, executed, 1)
	assert.Equal(t, []int64{1, 2, 5, creatorID}, mem.ReceiverUsers(executed[0].ID))
	assert.Len(t, mem.NotificationsOf(models.TypeIndicatorExecuted, txID), 1)

	require.Len(t, router.clients, 1)
	ev := router.clients[0]
	assert.ElementsMatch(t, []int64{1, 2, 5, creatorID}, ev.UserIDs)
	assert.Equal(t, []int64{txID}, ev.TransactionIDs)
	assert.Equal(t, []int64{77}, ev.GroupIDs)
	assert.Equal(t, string(models.StatusExecuted), ev.EventType)
}

func TestHandleStatusUpdate_ReadyForExecutionGoesToCreator(t *testing.T) {
	svc, mem, _ := newService(t)
	mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(1, true)}

	require.NoError(t, svc.HandleStatusUpdate(context.Background(), TransactionEvent{TransactionID: txID, Status: models.StatusWaitingForExecution}))

	ready := mem.NotificationsOf(models.TypeTransactionReadyForExecution, txID)
	require.Len(t, ready, 1)
	assert.Equal(t, []int64{creatorID}, mem.ReceiverUsers(ready[0].ID))
}

func TestHandleUserRegistered(t *testing.T) {
	svc, mem, _ := newService(t)
	mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(1, false), key(9, false)}
	mem.Transactions[43] = models.Transaction{ID: 43, Status: models.StatusExecuted}
	mem.RequiredKeys[43] = []store.RequiredKeyOwner{key(9, true)}

	require.NoError(t, svc.HandleUserRegistered(context.Background(), UserRegistered{UserID: 9}))

	sign := mem.NotificationsOf(models.TypeIndicatorSign, txID)
	require.Len(t, sign, 1)
	assert.Equal(t, []int64{1, 9}, mem.ReceiverUsers(sign[0].ID))
	assert.Empty(t, mem.NotificationsOf(models.TypeIndicatorExecuted, 43), "terminal transactions are not re-synced")
}

func TestScheduleReminder(t *testing.T) {
	svc, _, _ := newService(t)
	require.NoError(t, svc.ScheduleReminder(context.Background(), ReminderRequest{TransactionID: txID}), "no scheduler configured")

	sched := &mockScheduler{}
	WithReminders(sched, time.Hour)(svc)
	require.NoError(t, svc.ScheduleReminder(context.Background(), ReminderRequest{TransactionID: txID, DelaySeconds: 30}))
	require.Len(t, sched.calls, 1)
	assert.Equal(t, 30*time.Second, sched.calls[0].Delay)
}

func TestRoutes_CoverReceiverStream(t *testing.T) {
	svc, _, _ := newService(t)
	routes, err := consumer.AttachSchemas(registry.Default(), svc.Routes())
	require.NoError(t, err)

	var subjects []string
	for _, r := range routes {
		subjects = append(subjects, r.Subject)
	}
	assert.ElementsMatch(t, registry.Default().Subjects(registry.StreamReceiver), subjects)
}

type nopSource struct{ acked, nacked int }

func (n *nopSource) Fetch(context.Context) ([]*consumer.Message, error) { return nil, nil }
func (n *nopSource) Ack(context.Context, *consumer.Message) error { n.acked++; return nil }
func (n *nopSource) Nack(context.Context, *consumer.Message) error { n.nacked++; return nil }
func (n *nopSource) Close() error { return nil }

func TestRoutes_NotifyGeneralThroughConsumer(t *testing.T) {
	svc, mem, _ := newService(t)
	c := consumer.New(registry.StreamReceiver, &nopSource{}, svc.Routes(), 3, nil, logger.NewNoOpLogger())

	d := c.Process(context.Background(), &consumer.Message{
		ID:         "1-0",
		Subject:    registry.SubjectNotifyGeneral,
		Data:       []byte(`[{"userIds":[1,2],"type":"GENERAL","content":"hi","entityId":5},{"userIds":[],"type":"GENERAL","entityId":6}]`),
		Deliveries: 1,
	})
	assert.Equal(t, "ack", d.String())

	general := mem.NotificationsOf(models.TypeGeneral, 5)
	require.Len(t, general, 1)
	assert.Equal(t, []int64{1, 2}, mem.ReceiverUsers(general[0].ID))
	assert.Empty(t, mem.NotificationsOf(models.TypeGeneral, 6))
}
