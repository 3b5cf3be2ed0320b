// internal/models/notification.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// NotificationType is the kind of event a notification describes.
type NotificationType string

const (
	TypeTransactionCreated              NotificationType = "TRANSACTION_CREATED"
	TypeTransactionWaitingForSignatures NotificationType = "TRANSACTION_WAITING_FOR_SIGNATURES"
	TypeTransactionSignatureReminder    NotificationType = "TRANSACTION_WAITING_FOR_SIGNATURES_REMINDER"
	TypeTransactionReadyForExecution    NotificationType = "TRANSACTION_READY_FOR_EXECUTION"
	TypeTransactionExecuted             NotificationType = "TRANSACTION_EXECUTED"

	TypeIndicatorApprove    NotificationType = "TRANSACTION_INDICATOR_APPROVE"
	TypeIndicatorSign       NotificationType = "TRANSACTION_INDICATOR_SIGN"
	TypeIndicatorExecutable NotificationType = "TRANSACTION_INDICATOR_EXECUTABLE"
	TypeIndicatorExecuted   NotificationType = "TRANSACTION_INDICATOR_EXECUTED"
	TypeIndicatorExpired    NotificationType = "TRANSACTION_INDICATOR_EXPIRED"
	TypeIndicatorArchived   NotificationType = "TRANSACTION_INDICATOR_ARCHIVED"

	TypeGeneral NotificationType = "GENERAL"
	TypeCustom  NotificationType = "CUSTOM"
)

// IndicatorTypes lists the six indicator kinds.
var IndicatorTypes = []NotificationType{
	TypeIndicatorApprove,
	TypeIndicatorSign,
	TypeIndicatorExecutable,
	TypeIndicatorExecuted,
	TypeIndicatorExpired,
	TypeIndicatorArchived,
}

// IsIndicator reports whether t only drives a UI badge.
func (t NotificationType) IsIndicator() bool {
	for _, it := range IndicatorTypes {
		if it == t {
			return true
		}
	}
	return false
}

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case TypeTransactionCreated, TypeTransactionWaitingForSignatures, TypeTransactionSignatureReminder,
		TypeTransactionReadyForExecution, TypeTransactionExecuted, TypeGeneral, TypeCustom:
		return true
	}
	return t.IsIndicator()
}

// Notification is one logical event. Immutable once created.
type Notification struct {
	ID        int64            `json:"id"`
	Type      NotificationType `json:"type"`
	Content   string           `json:"content"`
	EntityID  *int64           `json:"entityId"`
	ActorID   *int64           `json:"actorId"`
	CreatedAt time.Time        `json:"createdAt"`
}

// DeliveryState is the per-channel outcome of a receiver.
//
// Unattempted is stored as NULL and means the user opted out of the channel
// (or the channel never applied). Attempted (false) means delivery was tried
// and is unconfirmed. Confirmed (true) means the channel accepted it.
type DeliveryState int8

const (
	DeliveryUnattempted DeliveryState = iota
	DeliveryAttempted
	DeliveryConfirmed
)

func (s DeliveryState) String() string {
	switch s {
	case DeliveryAttempted:
		return "attempted"
	case DeliveryConfirmed:
		return "confirmed"
	default:
		return "unattempted"
	}
}

// Scan maps a nullable boolean column onto the three states.
func (s *DeliveryState) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = DeliveryUnattempted
	case bool:
		if v {
			*s = DeliveryConfirmed
		} else {
			*s = DeliveryAttempted
		}
	case []byte:
		return s.Scan(string(v))
	case string:
		switch v {
		case "t", "true", "TRUE":
			*s = DeliveryConfirmed
		case "f", "false", "FALSE":
			*s = DeliveryAttempted
		default:
			return fmt.Errorf("cannot scan %q into DeliveryState", v)
		}
	default:
		return fmt.Errorf("cannot scan %T into DeliveryState", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (s DeliveryState) Value() (driver.Value, error) {
	switch s {
	case DeliveryAttempted:
		return false, nil
	case DeliveryConfirmed:
		return true, nil
	default:
		return nil, nil
	}
}

// MarshalJSON keeps the wire format clients already read: null, false, true.
func (s DeliveryState) MarshalJSON() ([]byte, error) {
	switch s {
	case DeliveryAttempted:
		return []byte("false"), nil
	case DeliveryConfirmed:
		return []byte("true"), nil
	default:
		return []byte("null"), nil
	}
}

func (s *DeliveryState) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	if b == nil {
		return s.Scan(nil)
	}
	return s.Scan(*b)
}

// NotificationReceiver is the per-user delivery record of a notification.
// (NotificationID, UserID) is unique.
type NotificationReceiver struct {
	ID              int64         `json:"id"`
	NotificationID  int64         `json:"notificationId"`
	UserID          int64         `json:"userId"`
	IsRead          bool          `json:"isRead"`
	IsEmailSent     DeliveryState `json:"isEmailSent"`
	IsInAppNotified DeliveryState `json:"isInAppNotified"`
	UpdatedAt       time.Time     `json:"updatedAt"`

	Notification *Notification `json:"notification,omitempty"`
}

// NotificationPreferences is a per-user, per-type channel toggle.
// A missing row means both channels are enabled.
type NotificationPreferences struct {
	UserID int64            `json:"userId"`
	Type   NotificationType `json:"type"`
	Email  bool             `json:"email"`
	InApp  bool             `json:"inApp"`
}
