package receiver

import (
	"context"
	stderrors "errors"

	"notification-workers/internal/common/consumer"
	"notification-workers/pkg/registry"
)

// Routes binds the receiver stream subjects to the service.
func (s *Service) Routes() []consumer.Route {
	return []consumer.Route{
		consumer.Handle(registry.SubjectTransactionCreated, batch(s.HandleTransactionCreated)),
		consumer.Handle(registry.SubjectTransactionStatusUpdate, batch(s.HandleStatusUpdate)),
		consumer.Handle(registry.SubjectTransactionReminder, batch(s.ScheduleReminder)),
		consumer.Handle(registry.SubjectTransactionRequiredSigners, batch(func(ctx context.Context, req RequiredSignersRequest) error {
			_, err := s.NotifyTransactionRequiredSigners(ctx, req.TransactionID)
			return err
		})),
		consumer.Handle(registry.SubjectUserRegistered, batch(s.HandleUserRegistered)),
		consumer.Handle(registry.SubjectNotifyGeneral, batch(func(ctx context.Context, p NotifyGeneralParams) error {
			_, err := s.NotifyGeneral(ctx, p)
			return err
		})),
	}
}

// batch runs fn for every item. Items are independent, so a failure does
// not skip the rest; the batch fails if any item did.
func batch[T any](fn func(ctx context.Context, item T) error) func(ctx context.Context, items []T) error {
	return func(ctx context.Context, items []T) error {
		var errs []error
		for _, it := range items {
			if err := fn(ctx, it); err != nil {
				errs = append(errs, err)
			}
		}
		return stderrors.Join(errs...)
	}
}
