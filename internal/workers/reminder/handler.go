package reminder

import (
	"context"
	stderrors "errors"
	"time"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/common/lock"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/models"
	"notification-workers/internal/store"
)

// Notifier sends the reminder notification.
type Notifier interface {
	RemindRequiredSigners(ctx context.Context, tx *models.Transaction) ([]models.NotificationReceiver, error)
}

// Handler reacts to an expired scheduler key.
type Handler struct {
	scheduler *Scheduler
	store     store.Querier
	notifier  Notifier
	locker    *lock.Locker
	lockTTL    time.Duration
	retryDelay time.Duration
	logger     logger.Logger
}

// NewHandler builds a Handler. A non-positive retryDelay defaults to one minute.
func NewHandler(scheduler *Scheduler, q store.Querier, notifier Notifier, locker *lock.Locker, lockTTL, retryDelay time.Duration, log logger.Logger) *Handler {
	if retryDelay <= 0 {
		retryDelay = time.Minute
	}
	return &Handler{
		scheduler:  scheduler,
		store:      q,
		notifier:   notifier,
		locker:     locker,
		lockTTL:    lockTTL,
		retryDelay: retryDelay,
		logger:     log.WithFields(map[string]interface{}{"component": "reminder"}),
	}
}

// Handle sends the reminder for key at most once per transaction. The check
// and the send run under a lock on key so concurrent firings cannot both
// pass the existence check; the loser skips silently. The expired key is the
// only trigger, so a retryable failure schedules the key again.
func (h *Handler) Handle(ctx context.Context, key string) error {
	txID, ok := h.scheduler.ParseKey(key)
	if !ok {
		h.outcome("ignored")
		return nil
	}

	err := h.locker.WithLock(ctx, key, h.lockTTL, func(ctx context.Context) error {
		return h.remind(ctx, txID)
	})
	if errors.HasCode(err, errors.ErrCodeLockNotAcquired) {
		h.logger.Debug("Reminder already being handled", map[string]interface{}{"key": key})
		h.outcome("locked")
		return nil
	}
	if err == nil {
		return nil
	}

	h.outcome("failed")
	h.logger.Error("Reminder failed", map[string]interface{}{
		"transactionId": txID,
		"error":         err,
	})
	if !errors.IsRetryable(err) {
		return err
	}
	if serr := h.scheduler.Schedule(ctx, txID, h.retryDelay); serr != nil {
		h.logger.Error("Could not re-arm reminder", map[string]interface{}{
			"transactionId": txID,
			"error":         serr,
		})
		return err
	}
	h.outcome("rearmed")
	h.logger.Warn("Reminder re-armed", map[string]interface{}{
		"transactionId": txID,
		"retryIn":       h.retryDelay.String(),
	})
	return err
}

func (h *Handler) remind(ctx context.Context, txID int64) error {
	tx, err := h.store.GetTransaction(ctx, txID)
	if err != nil {
		if stderrors.Is(err, store.ErrRecordNotFound) {
			h.outcome("ignored")
			return nil
		}
		return errors.NewPersistenceError("get transaction", err)
	}
	if tx.Status != models.StatusWaitingForSignatures {
		h.outcome("ignored")
		return nil
	}

	_, err = h.store.FindNotification(ctx, models.TypeTransactionSignatureReminder, txID)
	if err == nil {
		h.outcome("duplicate")
		return nil
	}
	if !stderrors.Is(err, store.ErrRecordNotFound) {
		return errors.NewPersistenceError("find reminder", err)
	}

	receivers, err := h.notifier.RemindRequiredSigners(ctx, tx)
	if err != nil {
		return err
	}
	h.outcome("sent")
	h.logger.Info("Signature reminder sent", map[string]interface{}{
		"transactionId": txID,
		"receivers":     len(receivers),
	})
	return nil
}

func (h *Handler) outcome(o string) {
	metrics.ReminderOutcomes.WithLabelValues(o).Inc()
}
