package models

import "time"

// NotificationType is the kind of a user notification.
type NotificationType string

const (
	NotificationMessage NotificationType = "message"
	NotificationRequest NotificationType = "request"
)

// NotificationScope tells group notifications from private ones.
type NotificationScope string

const (
	ScopeGroup   NotificationScope = "group"
	ScopePrivate NotificationScope = "private"
)

// RequestStatus is the lifecycle state of a join request notification.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// MessageDetail describes a missed chat message.
type MessageDetail struct {
	Type     NotificationScope `json:"type"`
	Message  string            `json:"message"`
	SenderID int               `json:"sender"`
	GroupID  *int              `json:"group,omitempty"`
	IsRead   bool              `json:"is_read"`
}

// RequestDetail describes a group join request.
type RequestDetail struct {
	Type     NotificationScope `json:"type"`
	SenderID int               `json:"sender"`
	GroupID  int               `json:"group"`
	IsRead   bool              `json:"is_read"`
	Status   RequestStatus     `json:"status"`
}

// UserNotification is a durable notification addressed to one user.
type UserNotification struct {
	ID        int                  `json:"id"`
	UserID    int                  `json:"user"`
	Type      NotificationType     `json:"type"`
	Message   *MessageDetail       `json:"message,omitempty"`
	Request   *RequestDetail       `json:"request,omitempty"`
	IsRead    bool                 `json:"is_read"`
	CreatedBy *int                 `json:"created_by,omitempty"`
	UpdatedBy *int                 `json:"updated_by,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// NotificationFilter narrows ListNotifications.
type NotificationFilter struct {
	UserID int
	IsRead *bool
	Type   NotificationType
	Page   int
	Limit  int
}
