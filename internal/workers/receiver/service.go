// Package receiver owns notification and receiver persistence: general
// notifications, transaction participants and the per-transaction indicator
// state machine.
package receiver

import (
	"context"
	stderrors "errors"
	"time"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"
	"notification-workers/internal/store"
	"notification-workers/internal/workers/fanout"
)

// Router delivers persisted notifications to clients.
type Router interface {
	Deliver(ctx context.Context, n *models.Notification, receivers []models.NotificationReceiver) error
	Remove(ctx context.Context, removed map[int64][]int64) error
	NotifyClients(ctx context.Context, ev fanout.NotifyClients) error
}

// ReminderScheduler arms the one-time signature reminder of a transaction.
type ReminderScheduler interface {
	Schedule(ctx context.Context, transactionID int64, delay time.Duration) error
}

type Service struct {
	store         store.Store
	router        Router
	signers       SignerResolver
	reminders     ReminderScheduler
	reminderDelay time.Duration
	logger        logger.Logger
}

type Option func(*Service)

// WithReminders enables scheduling signature reminders after delay.
func WithReminders(s ReminderScheduler, delay time.Duration) Option {
	return func(svc *Service) {
		svc.reminders = s
		svc.reminderDelay = delay
	}
}

// WithSignerResolver replaces the store-backed signer resolution.
func WithSignerResolver(r SignerResolver) Option {
	return func(svc *Service) { svc.signers = r }
}

func NewService(st store.Store, router Router, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:   st,
		router:  router,
		signers: NewStoreSignerResolver(st),
		logger:  log.WithFields(map[string]interface{}{"component": "receiver-service"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyGeneralParams describes one general notification request.
type NotifyGeneralParams struct {
	UserIDs  []int64                 `json:"userIds"`
	Type     models.NotificationType `json:"type"`
	Content  string                  `json:"content"`
	EntityID *int64                  `json:"entityId"`
	ActorID  *int64                  `json:"actorId,omitempty"`
}

// NotifyGeneral adds the users as receivers of the open notification of
// (Type, EntityID), creating it if needed, then hands the new receivers to
// the router. Users that already receive it are skipped and a failing
// receiver insert does not stop the rest; the created subset is returned.
func (s *Service) NotifyGeneral(ctx context.Context, p NotifyGeneralParams) ([]models.NotificationReceiver, error) {
	userIDs := unique(p.UserIDs)
	if len(userIDs) == 0 {
		return nil, nil
	}
	if !p.Type.Valid() {
		return nil, errors.NewInvalidPayloadError("notify-general", stderrors.New("unknown notification type "+string(p.Type)))
	}

	var (
		n       *models.Notification
		created []models.NotificationReceiver
	)
	err := s.store.ExecTx(ctx, func(q store.Querier) error {
		var err error
		n, err = findOrCreate(ctx, q, p)
		if err != nil {
			return err
		}
		created = s.addReceivers(ctx, q, n, userIDs)
		return nil
	})
	if err != nil {
		return nil, errors.NewPersistenceError("notify general", err)
	}

	if len(created) > 0 {
		if err := s.router.Deliver(ctx, n, created); err != nil {
			s.logger.Error("Failed to deliver notification", map[string]interface{}{
				"notificationId": n.ID,
				"type":           n.Type,
				"error":          err,
			})
		}
	}
	return created, nil
}

// findOrCreate reuses the open notification of the same type and entity.
// Its original content is kept.
func findOrCreate(ctx context.Context, q store.Querier, p NotifyGeneralParams) (*models.Notification, error) {
	if p.EntityID != nil {
		n, err := q.FindNotification(ctx, p.Type, *p.EntityID)
		if err == nil {
			return n, nil
		}
		if !stderrors.Is(err, store.ErrRecordNotFound) {
			return nil, err
		}
	}
	return q.CreateNotification(ctx, store.CreateNotificationParams{
		Type:     p.Type,
		Content:  p.Content,
		EntityID: p.EntityID,
		ActorID:  p.ActorID,
	})
}

func (s *Service) addReceivers(ctx context.Context, q store.Querier, n *models.Notification, userIDs []int64) []models.NotificationReceiver {
	var created []models.NotificationReceiver
	for _, userID := range userIDs {
		r, ok, err := q.TryCreateReceiver(ctx, n.ID, userID)
		if err != nil {
			s.logger.Warn("Failed to create receiver", map[string]interface{}{
				"notificationId": n.ID,
				"userId":         userID,
				"error":          err,
			})
			continue
		}
		if ok {
			created = append(created, *r)
		}
	}
	return created
}

// NotifyTransactionRequiredSigners tells the signers that still have to sign,
// and the creator, that the transaction waits for signatures.
func (s *Service) NotifyTransactionRequiredSigners(ctx context.Context, transactionID int64) ([]models.NotificationReceiver, error) {
	tx, err := s.transaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return s.notifyPendingSigners(ctx, tx, models.TypeTransactionWaitingForSignatures, "Transaction is waiting for your signature")
}

// RemindRequiredSigners sends the one-time signature reminder of tx to the
// signers that still have to sign and the creator.
func (s *Service) RemindRequiredSigners(ctx context.Context, tx *models.Transaction) ([]models.NotificationReceiver, error) {
	return s.notifyPendingSigners(ctx, tx, models.TypeTransactionSignatureReminder, "Reminder: transaction is still waiting for your signature")
}

func (s *Service) notifyPendingSigners(ctx context.Context, tx *models.Transaction, typ models.NotificationType, content string) ([]models.NotificationReceiver, error) {
	required, err := s.signers.RequiredSigners(ctx, tx)
	if err != nil {
		return nil, err
	}
	creatorID, err := s.creator(ctx, tx.ID)
	if err != nil {
		return nil, err
	}

	return s.NotifyGeneral(ctx, NotifyGeneralParams{
		UserIDs:  append(append([]int64{}, required.Pending...), creatorID),
		Type:     typ,
		Content:  content,
		EntityID: &tx.ID,
	})
}

func (s *Service) transaction(ctx context.Context, id int64) (*models.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		if stderrors.Is(err, store.ErrRecordNotFound) {
			return nil, errors.NewNotFoundError("transaction", id)
		}
		return nil, errors.NewPersistenceError("get transaction", err)
	}
	return tx, nil
}

func (s *Service) creator(ctx context.Context, transactionID int64) (int64, error) {
	id, err := s.store.GetTransactionCreatorID(ctx, transactionID)
	if err != nil {
		if stderrors.Is(err, store.ErrRecordNotFound) {
			return 0, errors.NewNotFoundError("transaction creator", transactionID)
		}
		return 0, errors.NewPersistenceError("get transaction creator", err)
	}
	return id, nil
}

// unique drops duplicates and keeps first-seen order.
func unique(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func union(sets ...[]int64) []int64 {
	var all []int64
	for _, s := range sets {
		all = append(all, s...)
	}
	return unique(all)
}

func without(ids []int64, drop ...int64) []int64 {
	skip := make(map[int64]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}
