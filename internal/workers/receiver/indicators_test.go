package receiver

import (
	"context"
	stderrors "errors"
	"testing"

	"notification-workers/internal/models"
	"notification-workers/internal/store"
	"notification-workers/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedIndicator stores an indicator notification of typ for txID with the given receivers.
func seedIndicator(t *testing.T, mem *storetest.Memory, typ models.NotificationType, users ...int64) models.Notification {
	t.Helper()
	ctx := context.Background()
	n, err := mem.CreateNotification(ctx, store.CreateNotificationParams{Type: typ, EntityID: ptr(txID)})
	require.NoError(t, err)
	for _, u := range users {
		_, _, err := mem.TryCreateReceiver(ctx, n.ID, u)
		require.NoError(t, err)
	}
	return *n
}

func indicatorTypes(mem *storetest.Memory) []models.NotificationType {
	ns, _ := mem.ListIndicatorNotifications(context.Background(), txID)
	var out []models.NotificationType
	for _, n := range ns {
		out = append(out, n.Type)
	}
	return out
}

func TestParticipants(t *testing.T) {
	svc, mem, _ := newService(t)
	mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(1, true), key(2, false)}
	mem.Signers[txID] = []models.TransactionSigner{{TransactionID: txID, UserKeyID: 100, UserID: 1}}
	mem.Observers[txID] = []models.TransactionObserver{{TransactionID: txID, UserID: 5, Role: models.ObserverRoleFull}}
	mem.Approvers[txID] = []models.TransactionApprover{
		{ID: 1, TransactionID: ptr(txID), Threshold: ptr(1)},
		{ID: 2, ListID: ptr(int64(1)), UserID: ptr(int64(3))},
		{ID: 3, ListID: ptr(int64(1)), UserID: ptr(int64(4)), Approved: ptr(true)},
		{ID: 4, TransactionID: ptr(txID), UserID: ptr(int64(2)), Approved: ptr(false)},
	}

	tx := mem.Transactions[txID]
	p, err := svc.Participants(context.Background(), &tx)
	require.NoError(t, err)

	assert.Equal(t, creatorID, p.CreatorID)
	assert.Equal(t, []int64{1}, p.SignerIDs)
	assert.Equal(t, []int64{5}, p.ObserverIDs)
	assert.Equal(t, []int64{1, 2}, p.RequiredSignerIDs)
	assert.Equal(t, []int64{2}, p.PendingSignerIDs)
	assert.ElementsMatch(t, []int64{3, 4, 2}, p.ApproverIDs)
	assert.ElementsMatch(t, []int64{4, 2}, p.ApproversGaveChoiceIDs)
	assert.Equal(t, []int64{3}, p.ApproversShouldChooseIDs)
	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, p.RequiredIDs)
	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, p.ParticipantIDs)
	assert.NotContains(t, p.ParticipantIDs, creatorID)
	assert.NotContains(t, p.ParticipantIDs, int64(5))
}

func TestParticipants_TerminalStatusClearsApproverChoice(t *testing.T) {
	for _, status := range []models.TransactionStatus{
		models.StatusExecuted, models.StatusExpired, models.StatusCanceled, models.StatusFailed, models.StatusArchived,
	} {
		t.Run(string(status), func(t *testing.T) {
			svc, mem, _ := newService(t)
			mem.Approvers[txID] = []models.TransactionApprover{{ID: 1, TransactionID: ptr(txID), UserID: ptr(int64(3))}}
			tx := mem.Transactions[txID]
			tx.Status = status

			p, err := svc.Participants(context.Background(), &tx)
			require.NoError(t, err)
			assert.Equal(t, []int64{3}, p.ApproverIDs)
			assert.Empty(t, p.ApproversShouldChooseIDs)
		})
	}
}

func TestSyncIndicators_SignToExecutable(t *testing.T) {
	svc, mem, router := newService(t)
	mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(1, false), key(2, false), key(3, false)}

	require.NoError(t, svc.SyncIndicators(context.Background(), txID, models.StatusWaitingForSignatures))
	sign := mem.NotificationsOf(models.TypeIndicatorSign, txID)
	require.Len(t, sign, 1)
	assert.Equal(t, []int64{1, 2, 3}, mem.ReceiverUsers(sign[0].ID))

	// all three signed; the transaction is now executable
	mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(1, true), key(2, true), key(3, true)}
	require.NoError(t, svc.SyncIndicators(context.Background(), txID, models.StatusWaitingForExecution))

	assert.Empty(t, mem.NotificationsOf(models.TypeIndicatorSign, txID))
	exec := mem.NotificationsOf(models.TypeIndicatorExecutable, txID)
	require.Len(t, exec, 1)
	assert.Equal(t, []int64{1, 2, 3}, mem.ReceiverUsers(exec[0].ID))
	assert.ElementsMatch(t, []int64{1, 2, 3}, router.removedUsers())
}

func TestSyncIndicators_ExecutableRemovesOtherKindsKeepsApprove(t *testing.T) {
	svc, mem, _ := newService(t)
	mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(1, true)}
	mem.Approvers[txID] = []models.TransactionApprover{{ID: 1, TransactionID: ptr(txID), UserID: ptr(int64(3))}}
	seedIndicator(t, mem, models.TypeIndicatorSign, 1)
	seedIndicator(t, mem, models.TypeIndicatorExecuted, 1)
	seedIndicator(t, mem, models.TypeIndicatorExpired, 1)
	seedIndicator(t, mem, models.TypeIndicatorArchived, 1)
	seedIndicator(t, mem, models.TypeIndicatorApprove, 3)

	require.NoError(t, svc.SyncIndicators(context.Background(), txID, models.StatusWaitingForExecution))

	assert.ElementsMatch(t, []models.NotificationType{models.TypeIndicatorApprove, models.TypeIndicatorExecutable}, indicatorTypes(mem))
	assert.Len(t, mem.NotificationsOf(models.TypeIndicatorExecutable, txID), 1)
}

func TestSyncIndicators_TerminalStatusDropsApprove(t *testing.T) {
	svc, mem, _ := newService(t)
	mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(1, true)}
	mem.Approvers[txID] = []models.TransactionApprover{{ID: 1, TransactionID: ptr(txID), UserID: ptr(int64(3))}}
	seedIndicator(t, mem, models.TypeIndicatorApprove, 3)

	require.NoError(t, svc.SyncIndicators(context.Background(), txID, models.StatusExecuted))

	assert.Equal(t, []models.NotificationType{models.TypeIndicatorExecuted}, indicatorTypes(mem))
	executed := mem.NotificationsOf(models.TypeIndicatorExecuted, txID)
	assert.ElementsMatch(t, []int64{1, 3}, mem.ReceiverUsers(executed[0].ID))
}

func TestSyncIndicators_FailedAndCanceledHaveNoIndicator(t *testing.T) {
	for _, status := range []models.TransactionStatus{models.StatusFailed, models.StatusCanceled} {
		t.Run(string(status), func(t *testing.T) {
			svc, mem, _ := newService(t)
			mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(1, false)}
			seedIndicator(t, mem, models.TypeIndicatorSign, 1)

			require.NoError(t, svc.SyncIndicators(context.Background(), txID, status))
			assert.Empty(t, indicatorTypes(mem))
		})
	}
}

func TestSyncIndicators_IsIdempotent(t *testing.T) {
	svc, mem, router := newService(t)
	mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(1, false), key(2, false)}
	ctx := context.Background()

	require.NoError(t, svc.SyncIndicators(ctx, txID, ""))
	deliveries := len(router.delivered)
	require.NoError(t, svc.SyncIndicators(ctx, txID, ""))

	assert.Equal(t, deliveries, len(router.delivered), "second sync creates nothing")
	assert.Empty(t, router.removed)
	sign := mem.NotificationsOf(models.TypeIndicatorSign, txID)
	require.Len(t, sign, 1)
	assert.Equal(t, []int64{1, 2}, mem.ReceiverUsers(sign[0].ID))
}

func TestSyncIndicators_AddsAndPrunesReceivers(t *testing.T) {
	svc, mem, router := newService(t)
	mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(2, false), key(3, false)}
	sign := seedIndicator(t, mem, models.TypeIndicatorSign, 1, 2)

	require.NoError(t, svc.SyncIndicators(context.Background(), txID, ""))

	assert.Equal(t, []int64{2, 3}, mem.ReceiverUsers(sign.ID))
	assert.Equal(t, []int64{1}, router.removedUsers())
	require.NotEmpty(t, router.delivered)
	last := router.delivered[len(router.delivered)-1]
	require.Len(t, last.Receivers, 1)
	assert.Equal(t, int64(3), last.Receivers[0].UserID)
}

func TestSyncIndicators_PruneFailureDoesNotBlockAdditionsAndHeals(t *testing.T) {
	svc, mem, _ := newService(t)
	mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(2, false), key(3, false)}
	sign := seedIndicator(t, mem, models.TypeIndicatorSign, 1, 2)
	mem.FailDeleteReceivers = stderrors.New("deadlock detected")

	require.NoError(t, svc.SyncIndicators(context.Background(), txID, ""))
	assert.Equal(t, []int64{1, 2, 3}, mem.ReceiverUsers(sign.ID), "addition went through, stale receiver left")

	mem.FailDeleteReceivers = nil
	require.NoError(t, svc.SyncIndicators(context.Background(), txID, ""))
	assert.Equal(t, []int64{2, 3}, mem.ReceiverUsers(sign.ID))
}

func TestSyncIndicators_CollapsesDuplicateNotifications(t *testing.T) {
	svc, mem, _ := newService(t)
	mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(1, false)}
	first := seedIndicator(t, mem, models.TypeIndicatorSign, 1)
	seedIndicator(t, mem, models.TypeIndicatorSign, 1)

	require.NoError(t, svc.SyncIndicators(context.Background(), txID, ""))

	sign := mem.NotificationsOf(models.TypeIndicatorSign, txID)
	require.Len(t, sign, 1)
	assert.Equal(t, first.ID, sign[0].ID)
}

func TestSyncIndicators_EmptyTargetDeletesIndicator(t *testing.T) {
	svc, mem, router := newService(t)
	mem.RequiredKeys[txID] = []store.RequiredKeyOwner{key(1, true)}
	seedIndicator(t, mem, models.TypeIndicatorSign, 1)

	require.NoError(t, svc.SyncIndicators(context.Background(), txID, ""))

	assert.Empty(t, indicatorTypes(mem))
	assert.Equal(t, []int64{1}, router.removedUsers())
}

func TestSyncIndicators_UnknownTransaction(t *testing.T) {
	svc, _, _ := newService(t)
	err := svc.SyncIndicators(context.Background(), 999, "")
	require.Error(t, err)
}
