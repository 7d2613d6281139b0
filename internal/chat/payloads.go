package chat

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"community-chat/internal/models"
)

// Inbound socket payloads. Field names follow the existing web client.

type IdentifyPayload struct {
	UserID int `json:"userID" validate:"required,gt=0"`
}

type JoinRoomPayload struct {
	RoomID int `json:"roomID" validate:"required,gt=0"`
}

type MediaPayload struct {
	MimeType string `json:"mimetype" validate:"required,max=255"`
	Filename string `json:"filename" validate:"required,max=255"`
}

type SendMessagePayload struct {
	Type       models.MessageType `json:"type" validate:"required,oneof=text media"`
	Message    string             `json:"message" validate:"required_if=Type text,max=4000"`
	Media      *MediaPayload      `json:"media" validate:"required_if=Type media"`
	SenderID   int                `json:"sender" validate:"omitempty,gt=0"`
	ReceiverID *int               `json:"receiver" validate:"omitempty,gt=0"`
	GroupID    *int               `json:"groupID" validate:"omitempty,gt=0"`
}

type EditMessagePayload struct {
	MessageID int    `json:"_id" validate:"required,gt=0"`
	Message   string `json:"message" validate:"required,max=4000"`
}

type JoinRequestPayload struct {
	Type    string `json:"type" validate:"required,eq=group"`
	GroupID int    `json:"groupID" validate:"required,gt=0"`
	UserID  int    `json:"userID" validate:"omitempty,gt=0"`
}

type ResolveRequestPayload struct {
	NotificationID int                  `json:"_id" validate:"required,gt=0"`
	Status         models.RequestStatus `json:"status" validate:"required,oneof=approved rejected"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// decode unmarshals raw into dst and validates it. Every failure wraps ErrValidation.
func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty payload", ErrValidation)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// draft converts a validated send payload into a storable message for sender.
func (p SendMessagePayload) draft(senderID int) (models.MessageDraft, error) {
	if (p.ReceiverID == nil) == (p.GroupID == nil) {
		return models.MessageDraft{}, fmt.Errorf("%w: exactly one of receiver and groupID is required", ErrValidation)
	}
	draft := models.MessageDraft{
		Type:       p.Type,
		SenderID:   senderID,
		ReceiverID: p.ReceiverID,
		GroupID:    p.GroupID,
	}
	if p.Type == models.MessageTypeMedia {
		draft.Media = &models.MediaRef{MimeType: p.Media.MimeType, Filename: p.Media.Filename}
	} else {
		draft.Content = p.Message
	}
	return draft, nil
}
