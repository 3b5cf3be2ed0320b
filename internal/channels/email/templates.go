package email

import (
	"fmt"
	"strings"
	"time"

	"notification-workers/internal/models"

	"github.com/dustin/go-humanize"
)

// InviteEmail builds the message sent to a newly invited user.
func InviteEmail(to, tempPassword, url string) Email {
	var b strings.Builder
	b.WriteString("You have been invited to the transaction tool.\n\n")
	fmt.Fprintf(&b, "Temporary password: %s\n", tempPassword)
	if url != "" {
		fmt.Fprintf(&b, "Sign in at %s and change it on first login.\n", url)
	}
	return Email{To: []string{to}, Subject: "You have been invited", Text: b.String()}
}

// PasswordResetEmail carries a one-time password.
func PasswordResetEmail(to, otp string) Email {
	return Email{
		To:      []string{to},
		Subject: "Password reset",
		Text:    fmt.Sprintf("Your password reset code is %s.\nIf you did not ask for a reset, ignore this email.\n", otp),
	}
}

// NotificationText renders the body of a transaction notification email.
// now is passed in so relative times are stable in tests.
func NotificationText(n *models.Notification, tx *models.Transaction, appURL string, now time.Time) string {
	var b strings.Builder
	if n.Content != "" {
		b.WriteString(n.Content)
		b.WriteString("\n\n")
	}
	if tx != nil {
		name := tx.Name
		if name == "" {
			name = tx.TransactionID
		}
		fmt.Fprintf(&b, "Transaction: %s\n", name)
		fmt.Fprintf(&b, "Status: %s\n", tx.Status)
		if !tx.CreatedAt.IsZero() {
			fmt.Fprintf(&b, "Created %s\n", humanize.RelTime(tx.CreatedAt, now, "ago", "from now"))
		}
		if !tx.ValidStart.IsZero() {
			fmt.Fprintf(&b, "Valid start %s\n", humanize.RelTime(tx.ValidStart, now, "ago", "from now"))
		}
		if appURL != "" {
			fmt.Fprintf(&b, "\nOpen: %s/transactions/%d\n", strings.TrimRight(appURL, "/"), tx.ID)
		}
	}
	return b.String()
}
