// Package email is the outbound email channel.
package email

import (
	"context"

	"notification-workers/internal/models"
)

// Email is one outbound message. One send may address many recipients.
type Email struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Sender delivers an Email through a provider.
type Sender interface {
	Send(ctx context.Context, msg Email) error
}

var subjects = map[models.NotificationType]string{
	models.TypeTransactionCreated:              "New transaction created",
	models.TypeTransactionWaitingForSignatures: "Transaction is waiting for your signature",
	models.TypeTransactionSignatureReminder:    "Reminder: transaction still needs your signature",
	models.TypeTransactionReadyForExecution:    "Transaction is ready for execution",
	models.TypeTransactionExecuted:             "Transaction executed",
}

// SubjectFor returns the email subject of a notification type. Indicator,
// general and custom notifications are in-app only and report false.
func SubjectFor(t models.NotificationType) (string, bool) {
	s, ok := subjects[t]
	return s, ok
}
