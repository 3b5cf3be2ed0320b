package receiver

import (
	"context"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/models"
	"notification-workers/internal/store"
)

// SyncIndicators converges the indicator notifications of a transaction on
// its current state: at most one live notification per indicator kind, whose
// receivers are exactly the users who must see it. APPROVE is synced on its
// own and may coexist with the status indicator. An empty status means the
// transaction's stored status.
//
// Partial failures are logged; the next call repairs what this one missed.
func (s *Service) SyncIndicators(ctx context.Context, transactionID int64, status models.TransactionStatus) error {
	tx, err := s.transaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if status != "" {
		tx.Status = status
	}

	p, err := s.Participants(ctx, tx)
	if err != nil {
		return err
	}
	newType, hasNew := tx.Status.IndicatorType()

	existing, err := s.store.ListIndicatorNotifications(ctx, tx.ID)
	if err != nil {
		return errors.NewPersistenceError("list indicator notifications", err)
	}

	removed := make(map[int64][]int64)
	current := make(map[models.NotificationType]*models.Notification)
	var stale []models.Notification
	for i := range existing {
		n := existing[i]
		keep := n.Type == models.TypeIndicatorApprove || (hasNew && n.Type == newType)
		// Duplicates of a kept kind are stale too; the oldest wins.
		if keep && current[n.Type] == nil {
			current[n.Type] = &existing[i]
			continue
		}
		stale = append(stale, n)
	}

	for _, n := range stale {
		if err := s.deleteIndicator(ctx, n, removed); err != nil {
			s.logger.Warn("Failed to delete stale indicator", map[string]interface{}{
				"transactionId":  tx.ID,
				"notificationId": n.ID,
				"type":           n.Type,
				"error":          err,
			})
		}
	}

	s.syncActionIndicators(ctx, tx.ID, models.TypeIndicatorApprove, p.ApproversShouldChooseIDs, current[models.TypeIndicatorApprove], removed)
	if hasNew {
		targets := p.ParticipantIDs
		if newType == models.TypeIndicatorSign {
			targets = p.PendingSignerIDs
		}
		s.syncActionIndicators(ctx, tx.ID, newType, targets, current[newType], removed)
	}

	if len(removed) > 0 {
		if err := s.router.Remove(ctx, removed); err != nil {
			s.logger.Warn("Failed to fan out indicator removal", map[string]interface{}{
				"transactionId": tx.ID,
				"error":         err,
			})
		}
	}
	return nil
}

// deleteIndicator drops n and its receivers and records who lost them.
func (s *Service) deleteIndicator(ctx context.Context, n models.Notification, removed map[int64][]int64) error {
	var receivers []models.NotificationReceiver
	err := s.store.ExecTx(ctx, func(q store.Querier) error {
		var err error
		receivers, err = q.ListReceivers(ctx, n.ID)
		if err != nil {
			return err
		}
		return q.DeleteNotification(ctx, n.ID)
	})
	if err != nil {
		return errors.NewPersistenceError("delete indicator", err)
	}
	for _, r := range receivers {
		removed[r.UserID] = append(removed[r.UserID], r.ID)
	}
	metrics.IndicatorSyncOperations.WithLabelValues(string(n.Type), "deleted").Inc()
	return nil
}

// syncActionIndicators makes the receivers of the typ indicator equal targets.
// Removal failures do not block additions.
func (s *Service) syncActionIndicators(ctx context.Context, transactionID int64, typ models.NotificationType, targets []int64, existing *models.Notification, removed map[int64][]int64) {
	targets = unique(targets)
	log := s.logger.WithFields(map[string]interface{}{"transactionId": transactionID, "type": typ})

	if existing == nil {
		if len(targets) == 0 {
			return
		}
		if _, err := s.NotifyGeneral(ctx, NotifyGeneralParams{UserIDs: targets, Type: typ, EntityID: &transactionID}); err != nil {
			log.Error("Failed to create indicator", map[string]interface{}{"error": err})
			return
		}
		metrics.IndicatorSyncOperations.WithLabelValues(string(typ), "created").Inc()
		return
	}

	if len(targets) == 0 {
		if err := s.deleteIndicator(ctx, *existing, removed); err != nil {
			log.Warn("Failed to delete emptied indicator", map[string]interface{}{"error": err})
		}
		return
	}

	receivers, err := s.store.ListReceivers(ctx, existing.ID)
	if err != nil {
		log.Error("Failed to list indicator receivers", map[string]interface{}{"error": err})
		return
	}

	wanted := make(map[int64]bool, len(targets))
	for _, id := range targets {
		wanted[id] = true
	}
	have := make(map[int64]bool, len(receivers))
	var toRemove []models.NotificationReceiver
	for _, r := range receivers {
		have[r.UserID] = true
		if !wanted[r.UserID] {
			toRemove = append(toRemove, r)
		}
	}
	var toAdd []int64
	for _, id := range targets {
		if !have[id] {
			toAdd = append(toAdd, id)
		}
	}

	if len(toRemove) > 0 {
		ids := make([]int64, len(toRemove))
		for i, r := range toRemove {
			ids[i] = r.ID
		}
		err := s.store.ExecTx(ctx, func(q store.Querier) error {
			return q.DeleteReceivers(ctx, ids)
		})
		if err != nil {
			log.Warn("Failed to prune indicator receivers", map[string]interface{}{"receiverIds": ids, "error": err})
		} else {
			for _, r := range toRemove {
				removed[r.UserID] = append(removed[r.UserID], r.ID)
			}
			metrics.IndicatorSyncOperations.WithLabelValues(string(typ), "pruned").Inc()
		}
	}

	if len(toAdd) > 0 {
		if _, err := s.NotifyGeneral(ctx, NotifyGeneralParams{UserIDs: toAdd, Type: typ, EntityID: &transactionID}); err != nil {
			log.Error("Failed to extend indicator", map[string]interface{}{"error": err})
			return
		}
		metrics.IndicatorSyncOperations.WithLabelValues(string(typ), "extended").Inc()
	}
}
