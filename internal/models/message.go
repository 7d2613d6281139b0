package models

import "time"

// MessageType distinguishes text from media messages.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeMedia MessageType = "media"
)

// ReportStatus tracks moderation of a reported message.
type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportResolved ReportStatus = "resolved"
	ReportRejected ReportStatus = "rejected"
)

// MediaRef points at an already stored media object.
type MediaRef struct {
	MimeType string `json:"mimetype"`
	Filename string `json:"filename"`
}

// MessageReport is set when a user reports a message.
type MessageReport struct {
	Status     ReportStatus `json:"status"`
	ReporterID int          `json:"reporter"`
	Note       string       `json:"note,omitempty"`
}

// MessageEdit is set once a message has been edited.
type MessageEdit struct {
	Status bool      `json:"status"`
	Date   time.Time `json:"date"`
}

// ChatMessage is a persisted chat message. Exactly one of ReceiverID and
// GroupID is set.
type ChatMessage struct {
	ID         int            `json:"id"`
	Type       MessageType    `json:"type"`
	Content    string         `json:"content,omitempty"`
	Media      *MediaRef      `json:"media,omitempty"`
	SenderID   int            `json:"sender"`
	ReceiverID *int           `json:"receiver,omitempty"`
	GroupID    *int           `json:"group,omitempty"`
	Report     *MessageReport `json:"report,omitempty"`
	Edited     *MessageEdit   `json:"edited,omitempty"`
	UpdatedBy  *int           `json:"updated_by,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// IsGroup reports whether the message was sent to a group.
func (m ChatMessage) IsGroup() bool {
	return m.GroupID != nil
}

// MessageDraft is a message that has not been stored yet.
type MessageDraft struct {
	Type       MessageType
	Content    string
	Media      *MediaRef
	SenderID   int
	ReceiverID *int
	GroupID    *int
}

// MessageFilter narrows ListMessages.
type MessageFilter struct {
	SenderID   *int
	ReceiverID *int
	GroupID    *int
	// Between selects the direct conversation of two users in both directions.
	Between    *[2]int
	Search     string
	Reported   bool
	Page       int
	Limit      int
}
