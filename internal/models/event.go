package models

import "encoding/json"

// Socket event names.
const (
	EventUserConnected   = "user-connected"
	EventJoinRoom        = "joinRoom"
	EventLeaveRoom       = "leaveRoom"
	EventSendMessage     = "send-message"
	EventEditMessage     = "edit-message"
	EventSendRequest     = "send-request"
	EventUpdateRequest   = "update-request"
	EventReceiveMessage  = "receive-message"
	EventReceiveUpdated  = "receive-updated-message"
	EventReceiveNotified = "receive-notification"
)

// InboundFrame is a frame read from a client socket.
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OutboundFrame is a frame written to a client socket.
type OutboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Alert is the lightweight receive-notification payload.
type Alert struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
