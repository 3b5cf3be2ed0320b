package email

import (
	"testing"
	"time"

	"notification-workers/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSubjectFor(t *testing.T) {
	tests := []struct {
		typ  models.NotificationType
		want bool
	}{
		{models.TypeTransactionCreated, true},
		{models.TypeTransactionWaitingForSignatures, true},
		{models.TypeTransactionSignatureReminder, true},
		{models.TypeTransactionReadyForExecution, true},
		{models.TypeTransactionExecuted, true},
		{models.TypeGeneral, false},
		{models.TypeCustom, false},
	}
	for _, it := range models.IndicatorTypes {
		tests = append(tests, struct {
			typ  models.NotificationType
			want bool
		}{it, false})
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			subject, ok := SubjectFor(tt.typ)
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.NotEmpty(t, subject)
			}
		})
	}
}

func TestNotificationText(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	n := &models.Notification{Type: models.TypeTransactionExecuted, Content: "Your transaction was executed."}
	tx := &models.Transaction{
		ID:            42,
		Name:          "Treasury transfer",
		Status:        models.StatusExecuted,
		CreatedAt:     now.Add(-72 * time.Hour),
		TransactionID: "0.0.2@1700000000.000000000",
	}

	body := NotificationText(n, tx, "https://app.example.com/", now)
	assert.Contains(t, body, "Your transaction was executed.")
	assert.Contains(t, body, "Transaction: Treasury transfer")
	assert.Contains(t, body, "Status: EXECUTED")
	assert.Contains(t, body, "Created 3 days ago")
	assert.Contains(t, body, "https://app.example.com/transactions/42")
}

func TestNotificationText_FallsBackToTransactionID(t *testing.T) {
	tx := &models.Transaction{ID: 7, Status: models.StatusWaitingForSignatures, TransactionID: "0.0.2@1"}
	body := NotificationText(&models.Notification{}, tx, "", time.Now())
	assert.Contains(t, body, "Transaction: 0.0.2@1")
	assert.NotContains(t, body, "Open:")
}

func TestInviteAndResetEmails(t *testing.T) {
	invite := InviteEmail("new@example.com", "Temp#123", "https://app.example.com")
	assert.Equal(t, []string{"new@example.com"}, invite.To)
	assert.Contains(t, invite.Text, "Temp#123")
	assert.Contains(t, invite.Text, "https://app.example.com")

	reset := PasswordResetEmail("user@example.com", "918273")
	assert.Equal(t, "Password reset", reset.Subject)
	assert.Contains(t, reset.Text, "918273")
}
