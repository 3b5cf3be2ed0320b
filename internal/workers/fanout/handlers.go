package fanout

import (
	"context"
	stderrors "errors"
	"fmt"

	"notification-workers/internal/channels/inapp"
	"notification-workers/internal/common/consumer"
	"notification-workers/internal/common/logger"
	"notification-workers/pkg/registry"
)

// Handlers consume the fan-out stream and emit to clients.
type Handlers struct {
	emitter inapp.Emitter
	logger  logger.Logger
}

func NewHandlers(emitter inapp.Emitter, log logger.Logger) *Handlers {
	return &Handlers{
		emitter: emitter,
		logger:  log.WithFields(map[string]interface{}{"component": "fanout-consumer"}),
	}
}

// Routes binds the fan-out subjects.
func (h *Handlers) Routes() []consumer.Route {
	return []consumer.Route{
		consumer.Handle(registry.SubjectFanOutNew, h.HandleNew),
		consumer.Handle(registry.SubjectFanOutDelete, h.HandleDelete),
		consumer.Handle(registry.SubjectFanOutNotifyClients, h.HandleNotifyClients),
	}
}

func (h *Handlers) HandleNew(ctx context.Context, items []NewNotifications) error {
	var errs []error
	for _, it := range items {
		if err := h.emitter.Emit(ctx, it.UserID, inapp.EventNotificationsNew, it.NotificationReceivers); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", it.UserID, err))
		}
	}
	return h.joined(registry.SubjectFanOutNew, errs)
}

func (h *Handlers) HandleDelete(ctx context.Context, items []DeleteNotifications) error {
	var errs []error
	for _, it := range items {
		if err := h.emitter.Emit(ctx, it.UserID, inapp.EventNotificationsIndicatorsDelete, it.NotificationReceiverIDs); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", it.UserID, err))
		}
	}
	return h.joined(registry.SubjectFanOutDelete, errs)
}

func (h *Handlers) HandleNotifyClients(ctx context.Context, items []NotifyClients) error {
	var errs []error
	for _, it := range items {
		action := inapp.TransactionAction{
			TransactionIDs: it.TransactionIDs,
			GroupIDs:       it.GroupIDs,
			EventType:      it.EventType,
		}
		for _, userID := range it.UserIDs {
			if err := h.emitter.Emit(ctx, userID, inapp.EventTransactionAction, action); err != nil {
				errs = append(errs, fmt.Errorf("user %d: %w", userID, err))
			}
		}
	}
	return h.joined(registry.SubjectFanOutNotifyClients, errs)
}

func (h *Handlers) joined(subject string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	err := stderrors.Join(errs...)
	h.logger.Warn("Client emit failed", map[string]interface{}{
		"subject":  subject,
		"failures": len(errs),
		"error":    err,
	})
	return err
}
