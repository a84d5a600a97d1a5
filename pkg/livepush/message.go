package livepush

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Message types exchanged over the socket.
const (
	TypeNotification = "notification"
	TypeDigest       = "digest"
	TypeConnected    = "connected"
	TypePing         = "ping"
	TypePong         = "pong"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type connectedData struct {
	SessionID    string `json:"session_id"`
	PingInterval int64  `json:"ping_interval_ms"`
}

func encodePayload(p notifications.Payload) ([]byte, error) {
	switch {
	case p.Kind == notifications.PayloadNotification && p.Notification != nil:
		return json.Marshal(Envelope{Type: TypeNotification, Data: p.Notification})
	case p.Kind == notifications.PayloadDigest && p.Digest != nil:
		return json.Marshal(Envelope{Type: TypeDigest, Data: p.Digest})
	}
	return nil, fmt.Errorf("livepush: unsupported payload %q", p.Kind)
}
