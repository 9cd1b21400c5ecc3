package models

import "time"

// NotificationType selects the delivery channels of a notification.
type NotificationType string

const (
	TypeEmail NotificationType = "email"
	TypePush  NotificationType = "push"
	TypeBoth  NotificationType = "both"
)

// IncludesEmail reports whether the email channel is requested.
func (t NotificationType) IncludesEmail() bool {
	return t == TypeEmail || t == TypeBoth
}

// IncludesPush reports whether the realtime channel is requested.
func (t NotificationType) IncludesPush() bool {
	return t == TypePush || t == TypeBoth
}

// Valid reports whether t is one of the declared types.
func (t NotificationType) Valid() bool {
	switch t {
	case TypeEmail, TypePush, TypeBoth:
		return true
	default:
		return false
	}
}

// Notification is a persisted notification record.
type Notification struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Read        bool             `json:"read"`
	ReadAt      *time.Time       `json:"readAt,omitempty"`
	Type        NotificationType `json:"type"`
	EmailSent   bool             `json:"emailSent"`
	EmailSentAt *time.Time       `json:"emailSentAt,omitempty"`
	Payload     map[string]any   `json:"payload,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// NewNotification carries the caller-supplied fields of a record to create.
type NewNotification struct {
	UserID   string
	Title    string
	Message  string
	Type     NotificationType
	Payload  map[string]any
	Metadata map[string]any
}

// NotificationAdded is published on the notificationAdded topic.
type NotificationAdded struct {
	NotificationAdded Notification `json:"notificationAdded"`
	UserID            string       `json:"userId"`
}
