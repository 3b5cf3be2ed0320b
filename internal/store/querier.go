package store

import (
	"context"

	"notification-workers/internal/models"
)

// Querier lists every statement the workers run.
type Querier interface {
	// notifications
	FindNotification(ctx context.Context, typ models.NotificationType, entityID int64) (*models.Notification, error)
	CreateNotification(ctx context.Context, arg CreateNotificationParams) (*models.Notification, error)
	ListIndicatorNotifications(ctx context.Context, entityID int64) ([]models.Notification, error)
	DeleteNotification(ctx context.Context, id int64) error

	// receivers
	ListReceivers(ctx context.Context, notificationID int64) ([]models.NotificationReceiver, error)
	TryCreateReceiver(ctx context.Context, notificationID, userID int64) (*models.NotificationReceiver, bool, error)
	DeleteReceivers(ctx context.Context, ids []int64) error
	UpdateEmailState(ctx context.Context, ids []int64, state models.DeliveryState) error
	UpdateInAppState(ctx context.Context, ids []int64, state models.DeliveryState) error

	// preferences and users
	GetPreferences(ctx context.Context, userIDs []int64, typ models.NotificationType) ([]models.NotificationPreferences, error)
	GetUsersByIDs(ctx context.Context, ids []int64) ([]models.User, error)

	// transactions
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	GetTransactionCreatorID(ctx context.Context, transactionID int64) (int64, error)
	ListObservers(ctx context.Context, transactionID int64) ([]models.TransactionObserver, error)
	ListSigners(ctx context.Context, transactionID int64) ([]models.TransactionSigner, error)
	ListApprovers(ctx context.Context, transactionID int64) ([]models.TransactionApprover, error)
	ListTransactionGroupIDs(ctx context.Context, transactionID int64) ([]int64, error)
	ListRequiredKeyOwners(ctx context.Context, transactionID int64) ([]RequiredKeyOwner, error)
	ListActiveTransactionsForUser(ctx context.Context, userID int64) ([]models.Transaction, error)
}

var _ Querier = (*Queries)(nil)
