// Package storetest provides an in-memory store.Store for worker tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"notification-workers/internal/models"
	"notification-workers/internal/store"
)

// Memory is a store.Store backed by maps. Seed the exported fields before
// use; ExecTx restores notifications and receivers when fn fails.
type Memory struct {
	mu     sync.Mutex
	nextID int64

	notifications map[int64]models.Notification
	receivers     map[int64]models.NotificationReceiver

	Users        map[int64]models.User
	Preferences  []models.NotificationPreferences
	Transactions map[int64]models.Transaction
	Creators     map[int64]int64
	Observers    map[int64][]models.TransactionObserver
	Signers      map[int64][]models.TransactionSigner
	Approvers    map[int64][]models.TransactionApprover
	Groups       map[int64][]int64
	RequiredKeys map[int64][]store.RequiredKeyOwner

	// FailReceiverFor makes TryCreateReceiver fail for the given user.
	FailReceiverFor map[int64]error
	// FailDeleteReceivers makes DeleteReceivers fail.
	FailDeleteReceivers error

	// TxCount counts ExecTx calls.
	TxCount int
}

var _ store.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		notifications:   make(map[int64]models.Notification),
		receivers:       make(map[int64]models.NotificationReceiver),
		Users:           make(map[int64]models.User),
		Transactions:    make(map[int64]models.Transaction),
		Creators:        make(map[int64]int64),
		Observers:       make(map[int64][]models.TransactionObserver),
		Signers:         make(map[int64][]models.TransactionSigner),
		Approvers:       make(map[int64][]models.TransactionApprover),
		Groups:          make(map[int64][]int64),
		RequiredKeys:    make(map[int64][]store.RequiredKeyOwner),
		FailReceiverFor: make(map[int64]error),
	}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

// ExecTx runs fn against m and restores notifications and receivers if fn
// returns an error.
func (m *Memory) ExecTx(ctx context.Context, fn func(q store.Querier) error) error {
	m.mu.Lock()
	m.TxCount++
	notifications := make(map[int64]models.Notification, len(m.notifications))
	for k, v := range m.notifications {
		notifications[k] = v
	}
	receivers := make(map[int64]models.NotificationReceiver, len(m.receivers))
	for k, v := range m.receivers {
		receivers[k] = v
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.notifications = notifications
		m.receivers = receivers
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// AllNotifications returns every stored notification ordered by id.
func (m *Memory) AllNotifications() []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Notification, 0, len(m.notifications))
	for _, n := range m.notifications {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NotificationsOf returns the notifications of a type for an entity.
func (m *Memory) NotificationsOf(typ models.NotificationType, entityID int64) []models.Notification {
	var out []models.Notification
	for _, n := range m.AllNotifications() {
		if n.Type == typ && n.EntityID != nil && *n.EntityID == entityID {
			out = append(out, n)
		}
	}
	return out
}

// ReceiverUsers returns the sorted user ids receiving a notification.
func (m *Memory) ReceiverUsers(notificationID int64) []int64 {
	rs, _ := m.ListReceivers(context.Background(), notificationID)
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.UserID
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Receiver returns a receiver by id.
func (m *Memory) Receiver(id int64) (models.NotificationReceiver, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receivers[id]
	return r, ok
}

// SeedReceiver inserts a receiver directly.
func (m *Memory) SeedReceiver(r models.NotificationReceiver) models.NotificationReceiver {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id()
	m.receivers[r.ID] = r
	return r
}

func (m *Memory) FindNotification(_ context.Context, typ models.NotificationType, entityID int64) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.Notification
	for _, n := range m.notifications {
		if n.Type == typ && n.EntityID != nil && *n.EntityID == entityID {
			if found == nil || n.ID < found.ID {
				n := n
				found = &n
			}
		}
	}
	if found == nil {
		return nil, store.ErrRecordNotFound
	}
	return found, nil
}

func (m *Memory) CreateNotification(_ context.Context, arg store.CreateNotificationParams) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := models.Notification{
		ID:        m.id(),
		Type:      arg.Type,
		Content:   arg.Content,
		EntityID:  arg.EntityID,
		ActorID:   arg.ActorID,
		CreatedAt: time.Now().UTC(),
	}
	m.notifications[n.ID] = n
	return &n, nil
}

func (m *Memory) ListIndicatorNotifications(_ context.Context, entityID int64) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range m.AllNotifications() {
		if n.Type.IsIndicator() && n.EntityID != nil && *n.EntityID == entityID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *Memory) DeleteNotification(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for rid, r := range m.receivers {
		if r.NotificationID == id {
			delete(m.receivers, rid)
		}
	}
	delete(m.notifications, id)
	return nil
}

func (m *Memory) ListReceivers(_ context.Context, notificationID int64) ([]models.NotificationReceiver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.NotificationReceiver
	for _, r := range m.receivers {
		if r.NotificationID == notificationID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) TryCreateReceiver(_ context.Context, notificationID, userID int64) (*models.NotificationReceiver, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailReceiverFor[userID]; err != nil {
		return nil, false, err
	}
	for _, r := range m.receivers {
		if r.NotificationID == notificationID && r.UserID == userID {
			return nil, false, nil
		}
	}
	r := models.NotificationReceiver{
		ID:             m.id(),
		NotificationID: notificationID,
		UserID:         userID,
		UpdatedAt:      time.Now().UTC(),
	}
	m.receivers[r.ID] = r
	return &r, true, nil
}

func (m *Memory) DeleteReceivers(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDeleteReceivers != nil {
		return m.FailDeleteReceivers
	}
	for _, id := range ids {
		delete(m.receivers, id)
	}
	return nil
}

func (m *Memory) UpdateEmailState(_ context.Context, ids []int64, state models.DeliveryState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if r, ok := m.receivers[id]; ok {
			r.IsEmailSent = state
			m.receivers[id] = r
		}
	}
	return nil
}

func (m *Memory) UpdateInAppState(_ context.Context, ids []int64, state models.DeliveryState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if r, ok := m.receivers[id]; ok {
			r.IsInAppNotified = state
			m.receivers[id] = r
		}
	}
	return nil
}

func (m *Memory) GetPreferences(_ context.Context, userIDs []int64, typ models.NotificationType) ([]models.NotificationPreferences, error) {
	want := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	var out []models.NotificationPreferences
	for _, p := range m.Preferences {
		if p.Type == typ && want[p.UserID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) GetUsersByIDs(_ context.Context, ids []int64) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := m.Users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *Memory) GetTransaction(_ context.Context, id int64) (*models.Transaction, error) {
	tx, ok := m.Transactions[id]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	return &tx, nil
}

func (m *Memory) GetTransactionCreatorID(_ context.Context, transactionID int64) (int64, error) {
	id, ok := m.Creators[transactionID]
	if !ok {
		return 0, store.ErrRecordNotFound
	}
	return id, nil
}

func (m *Memory) ListObservers(_ context.Context, transactionID int64) ([]models.TransactionObserver, error) {
	return m.Observers[transactionID], nil
}

func (m *Memory) ListSigners(_ context.Context, transactionID int64) ([]models.TransactionSigner, error) {
	return m.Signers[transactionID], nil
}

func (m *Memory) ListApprovers(_ context.Context, transactionID int64) ([]models.TransactionApprover, error) {
	return m.Approvers[transactionID], nil
}

func (m *Memory) ListTransactionGroupIDs(_ context.Context, transactionID int64) ([]int64, error) {
	return m.Groups[transactionID], nil
}

func (m *Memory) ListRequiredKeyOwners(_ context.Context, transactionID int64) ([]store.RequiredKeyOwner, error) {
	return m.RequiredKeys[transactionID], nil
}

func (m *Memory) ListActiveTransactionsForUser(_ context.Context, userID int64) ([]models.Transaction, error) {
	var out []models.Transaction
	for txID, keys := range m.RequiredKeys {
		tx, ok := m.Transactions[txID]
		if !ok || tx.Status.IsTerminal() {
			continue
		}
		for _, k := range keys {
			if k.UserID != nil && *k.UserID == userID {
				out = append(out, tx)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
