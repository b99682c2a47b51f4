package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType enumerates the kinds of in-app notifications.
type NotificationType string

// Valid notification types.
const (
	NotificationInfo     NotificationType = "info"
	NotificationSuccess  NotificationType = "success"
	NotificationWarning  NotificationType = "warning"
	NotificationError    NotificationType = "error"
	NotificationLike     NotificationType = "like"
	NotificationComment  NotificationType = "comment"
	NotificationInterest NotificationType = "interest"
)

// ErrInvalidNotificationType is returned for unknown notification types.
var ErrInvalidNotificationType = errors.New("invalid notification type")

var validNotificationTypes = map[NotificationType]bool{
	NotificationInfo:     true,
	NotificationSuccess:  true,
	NotificationWarning:  true,
	NotificationError:    true,
	NotificationLike:     true,
	NotificationComment:  true,
	NotificationInterest: true,
}

// Validate checks that the type is one of the known values.
func (t NotificationType) Validate() error {
	if !validNotificationTypes[t] {
		return fmt.Errorf("%w: %q", ErrInvalidNotificationType, string(t))
	}
	return nil
}

// RecipientKind selects the addressing mode of a notification.
type RecipientKind string

// Addressing modes: a specific user, every user holding a role, or everyone.
const (
	RecipientUser      RecipientKind = "user"
	RecipientRole      RecipientKind = "role"
	RecipientBroadcast RecipientKind = "all"
)

// ErrInvalidRecipient is returned when a recipient fails validation.
var ErrInvalidRecipient = errors.New("invalid recipient")

// Recipient is the tagged addressing variant for a notification.
// Value holds the user id for RecipientUser, the role name for RecipientRole,
// and is empty for RecipientBroadcast.
type Recipient struct {
	Kind  RecipientKind `json:"kind"`
	Value string        `json:"value,omitempty"`
}

// Validate checks kind/value consistency.
func (r Recipient) Validate() error {
	switch r.Kind {
	case RecipientUser, RecipientRole:
		if r.Value == "" {
			return fmt.Errorf("%w: kind %q requires a value", ErrInvalidRecipient, r.Kind)
		}
	case RecipientBroadcast:
		if r.Value != "" {
			return fmt.Errorf("%w: broadcast recipient must not carry a value", ErrInvalidRecipient)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecipient, r.Kind)
	}
	return nil
}

// Sender identifies who produced a notification.
type Sender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// SystemSender is the default sender attribution when a producer supplies none.
var SystemSender = Sender{ID: "system", Name: "System", Role: "system"}

// Notification is an in-app message addressed to a user, a role, or everyone.
// Notifications are created unread and only ever transition unread -> read.
type Notification struct {
	ID           uuid.UUID        `json:"id"`
	Title        string           `json:"title"`
	Message      string           `json:"message"`
	Type         NotificationType `json:"type"`
	HighPriority bool             `json:"high_priority"`
	Sender       Sender           `json:"sender"`
	Recipient    Recipient        `json:"recipient"`
	Read         bool             `json:"read"`
	CreatedAt    time.Time        `json:"created_at"`
}

// CreateNotificationRequest is the payload for creating a notification.
// Sender is optional; the system identity is used when absent. Read is not
// accepted from callers: notifications always start unread.
type CreateNotificationRequest struct {
	Title        string           `json:"title" validate:"required,min=1,max=255"`
	Message      string           `json:"message" validate:"required,min=1,max=4000"`
	Type         NotificationType `json:"type,omitempty"`
	HighPriority bool             `json:"high_priority,omitempty"`
	Sender       *Sender          `json:"sender,omitempty"`
	Recipient    Recipient        `json:"recipient"`
}
