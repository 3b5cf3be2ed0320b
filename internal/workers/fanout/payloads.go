package fanout

import "notification-workers/internal/models"

// NewNotifications asks every instance to push receivers to one user.
type NewNotifications struct {
	UserID                int64                         `json:"userId"`
	NotificationReceivers []models.NotificationReceiver `json:"notificationReceivers"`
}

// DeleteNotifications asks every instance to drop receivers from one user.
type DeleteNotifications struct {
	UserID                  int64   `json:"userId"`
	NotificationReceiverIDs []int64 `json:"notificationReceiverIds"`
}

// NotifyClients asks clients of the listed users to refresh transactions.
type NotifyClients struct {
	UserIDs        []int64 `json:"userIds"`
	TransactionIDs []int64 `json:"transactionIds"`
	GroupIDs       []int64 `json:"groupIds"`
	EventType      string  `json:"eventType"`
}
