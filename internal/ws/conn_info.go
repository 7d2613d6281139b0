package ws

import (
	"time"

	"community-chat/internal/observability"
)

// ConnInfo describes one accepted socket connection.
type ConnInfo struct {
	ConnID      string
	UserID      int
	Role        string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func (i ConnInfo) identity() observability.WSIdentity {
	return observability.WSIdentity{UserID: i.UserID, DeviceID: i.DeviceID, IP: i.IP}
}

func (i ConnInfo) headers() map[string]string {
	return observability.BuildHeaders(i.RequestID, i.TraceID)
}
