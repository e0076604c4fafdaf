package model

import "time"

// NotificationKind is the severity of a notification.
type NotificationKind string

const (
	NotifyInfo    NotificationKind = "info"
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

func (k NotificationKind) String() string { return string(k) }

// IsValid reports whether k is a known notification kind.
func (k NotificationKind) IsValid() bool {
	switch k {
	case NotifyInfo, NotifySuccess, NotifyError:
		return true
	}
	return false
}

// Notification is a transient notice describing a workflow outcome.
// ID is the creation time in unix nanoseconds and strictly increases
// within one queue.
type Notification struct {
	ID        int64            `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Reference string           `json:"reference,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
