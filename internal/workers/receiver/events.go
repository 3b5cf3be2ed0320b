package receiver

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/models"
	"notification-workers/internal/workers/fanout"
)

// TransactionEvent reports a created transaction or a status change.
type TransactionEvent struct {
	TransactionID int64                    `json:"transactionId"`
	Status        models.TransactionStatus `json:"status,omitempty"`
}

type ReminderRequest struct {
	TransactionID int64 `json:"transactionId"`
	DelaySeconds  int   `json:"delaySeconds,omitempty"`
}

type RequiredSignersRequest struct {
	TransactionID int64 `json:"transactionId"`
}

type UserRegistered struct {
	UserID int64 `json:"userId"`
}

// HandleTransactionCreated syncs indicators, tells observers and pending
// signers about the new transaction and arms the signature reminder.
func (s *Service) HandleTransactionCreated(ctx context.Context, ev TransactionEvent) error {
	tx, err := s.transaction(ctx, ev.TransactionID)
	if err != nil {
		return err
	}
	if ev.Status != "" {
		tx.Status = ev.Status
	}

	if err := s.SyncIndicators(ctx, tx.ID, tx.Status); err != nil {
		return err
	}

	p, err := s.Participants(ctx, tx)
	if err != nil {
		return err
	}
	creator := p.CreatorID
	if _, err := s.NotifyGeneral(ctx, NotifyGeneralParams{
		UserIDs:  without(union(p.ObserverIDs, p.PendingSignerIDs), creator),
		Type:     models.TypeTransactionCreated,
		Content:  fmt.Sprintf("A new transaction %s was created", displayName(tx)),
		EntityID: &tx.ID,
		ActorID:  &creator,
	}); err != nil {
		return err
	}

	if tx.Status == models.StatusWaitingForSignatures {
		return s.ScheduleReminder(ctx, ReminderRequest{TransactionID: tx.ID})
	}
	return nil
}

// HandleStatusUpdate syncs indicators, sends the informational notification
// of the new status and asks clients to refresh the transaction.
func (s *Service) HandleStatusUpdate(ctx context.Context, ev TransactionEvent) error {
	tx, err := s.transaction(ctx, ev.TransactionID)
	if err != nil {
		return err
	}
	if ev.Status != "" {
		tx.Status = ev.Status
	}

	if err := s.SyncIndicators(ctx, tx.ID, tx.Status); err != nil {
		return err
	}

	p, err := s.Participants(ctx, tx)
	if err != nil {
		return err
	}

	switch tx.Status {
	case models.StatusWaitingForExecution:
		_, err = s.NotifyGeneral(ctx, NotifyGeneralParams{
			UserIDs:  []int64{p.CreatorID},
			Type:     models.TypeTransactionReadyForExecution,
			Content:  fmt.Sprintf("Transaction %s is ready for execution", displayName(tx)),
			EntityID: &tx.ID,
		})
	case models.StatusExecuted:
		_, err = s.NotifyGeneral(ctx, NotifyGeneralParams{
			UserIDs:  union(p.ParticipantIDs, p.ObserverIDs, []int64{p.CreatorID}),
			Type:     models.TypeTransactionExecuted,
			Content:  fmt.Sprintf("Transaction %s was executed", displayName(tx)),
			EntityID: &tx.ID,
		})
	}
	if err != nil {
		return err
	}

	groups, err := s.store.ListTransactionGroupIDs(ctx, tx.ID)
	if err != nil {
		return errors.NewPersistenceError("list transaction groups", err)
	}
	return s.router.NotifyClients(ctx, fanout.NotifyClients{
		UserIDs:        union(p.ParticipantIDs, p.ObserverIDs, []int64{p.CreatorID}),
		TransactionIDs: []int64{tx.ID},
		GroupIDs:       groups,
		EventType:      string(tx.Status),
	})
}

// HandleUserRegistered re-syncs the indicators of every open transaction the
// user holds a required key for, so a new user sees existing badges.
func (s *Service) HandleUserRegistered(ctx context.Context, ev UserRegistered) error {
	txs, err := s.store.ListActiveTransactionsForUser(ctx, ev.UserID)
	if err != nil {
		return errors.NewPersistenceError("list active transactions", err)
	}

	var errs []error
	for _, tx := range txs {
		if err := s.SyncIndicators(ctx, tx.ID, tx.Status); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// ScheduleReminder arms the signature reminder. Without a scheduler it is a no-op.
func (s *Service) ScheduleReminder(ctx context.Context, req ReminderRequest) error {
	if s.reminders == nil {
		return nil
	}
	delay := s.reminderDelay
	if req.DelaySeconds > 0 {
		delay = time.Duration(req.DelaySeconds) * time.Second
	}
	return s.reminders.Schedule(ctx, req.TransactionID, delay)
}

func displayName(tx *models.Transaction) string {
	if tx.Name != "" {
		return fmt.Sprintf("%q", tx.Name)
	}
	if tx.TransactionID != "" {
		return tx.TransactionID
	}
	return fmt.Sprintf("#%d", tx.ID)
}
