package registry

// Stream names.
const (
	StreamEmail    = "notifications.email"
	StreamReceiver = "notifications.receiver"
	StreamFanOut   = "notifications.fan-out"
)

// Subjects on StreamEmail.
const (
	SubjectEmailInvite        = "notifications.email.invite"
	SubjectEmailPasswordReset = "notifications.email.password-reset"
	SubjectEmailSend          = "notifications.email.send"
)

// Subjects on StreamReceiver.
const (
	SubjectTransactionCreated         = "notifications.receiver.transaction.created"
	SubjectTransactionStatusUpdate    = "notifications.receiver.transaction.status-update"
	SubjectTransactionReminder        = "notifications.receiver.transaction.reminder"
	SubjectTransactionRequiredSigners = "notifications.receiver.transaction.required-signers"
	SubjectUserRegistered             = "notifications.receiver.user.registered"
	SubjectNotifyGeneral              = "notifications.receiver.notify-general"
)

// Subjects on StreamFanOut.
const (
	SubjectFanOutNew           = "notifications.fan-out.new"
	SubjectFanOutDelete        = "notifications.fan-out.delete"
	SubjectFanOutNotifyClients = "notifications.fan-out.notify-clients"
)
