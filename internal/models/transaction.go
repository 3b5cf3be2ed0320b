// internal/models/transaction.go
package models

import "time"

// TransactionStatus mirrors the lifecycle status owned by the execution service.
type TransactionStatus string

const (
	StatusNew                  TransactionStatus = "NEW"
	StatusCanceled             TransactionStatus = "CANCELED"
	StatusRejected             TransactionStatus = "REJECTED"
	StatusWaitingForSignatures TransactionStatus = "WAITING FOR SIGNATURES"
	StatusWaitingForExecution  TransactionStatus = "WAITING FOR EXECUTION"
	StatusExecuted             TransactionStatus = "EXECUTED"
	StatusFailed               TransactionStatus = "FAILED"
	StatusExpired              TransactionStatus = "EXPIRED"
	StatusArchived             TransactionStatus = "ARCHIVED"
)

// IsTerminal reports whether nobody is asked to act on the transaction anymore.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusExpired, StatusCanceled, StatusExecuted, StatusFailed, StatusArchived:
		return true
	}
	return false
}

// IndicatorType returns the indicator kind a status maps to, if any.
// APPROVE is never returned: it is synced independently of status.
func (s TransactionStatus) IndicatorType() (NotificationType, bool) {
	switch s {
	case StatusWaitingForSignatures:
		return TypeIndicatorSign, true
	case StatusWaitingForExecution:
		return TypeIndicatorExecutable, true
	case StatusExecuted:
		return TypeIndicatorExecuted, true
	case StatusExpired:
		return TypeIndicatorExpired, true
	case StatusArchived:
		return TypeIndicatorArchived, true
	}
	return "", false
}

// Transaction is the subset of the transaction row this service reads.
type Transaction struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	Status        TransactionStatus `json:"status"`
	CreatorKeyID  int64             `json:"creatorKeyId"`
	ValidStart    time.Time         `json:"validStart"`
	CreatedAt     time.Time         `json:"createdAt"`
	TransactionID string            `json:"transactionId"`
}

// ObserverRole controls how much of a transaction an observer sees.
type ObserverRole string

const (
	ObserverRoleApprover ObserverRole = "APPROVER"
	ObserverRoleStatus   ObserverRole = "STATUS"
	ObserverRoleFull     ObserverRole = "FULL"
)

// TransactionObserver is an explicitly subscribed user.
type TransactionObserver struct {
	ID            int64        `json:"id"`
	TransactionID int64        `json:"transactionId"`
	UserID        int64        `json:"userId"`
	Role          ObserverRole `json:"role"`
}

// TransactionSigner records a signature collected from one of a user's keys.
type TransactionSigner struct {
	ID            int64 `json:"id"`
	TransactionID int64 `json:"transactionId"`
	UserKeyID     int64 `json:"userKeyId"`
	UserID        int64 `json:"userId"`
}

// TransactionApprover is one node of an approval tree. A node either names a
// user (leaf) or groups children through ListID. Approved is nil while the
// approver has not decided.
type TransactionApprover struct {
	ID            int64  `json:"id"`
	TransactionID *int64 `json:"transactionId"`
	ListID        *int64 `json:"listId"`
	Threshold     *int   `json:"threshold"`
	UserID        *int64 `json:"userId"`
	Approved      *bool  `json:"approved"`
}

// HasDecided reports whether the approver already approved or rejected.
func (a TransactionApprover) HasDecided() bool {
	return a.Approved != nil
}
