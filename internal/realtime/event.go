package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/blackmichael/blogify/internal/domain"
)

// eventNewNotification is the only event the channel acts on.
const eventNewNotification = "new-notification"

// pushEvent is the raw JSON frame sent by the backend.
type pushEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// parseEvent decodes a frame. The notification is nil for events other than
// new-notification.
func parseEvent(data []byte) (string, *domain.Notification, error) {
	var raw pushEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if raw.Event != eventNewNotification {
		return raw.Event, nil, nil
	}
	if len(raw.Data) == 0 {
		return raw.Event, nil, fmt.Errorf("event %s has no data", raw.Event)
	}

	var n domain.Notification
	if err := json.Unmarshal(raw.Data, &n); err != nil {
		return raw.Event, nil, fmt.Errorf("unmarshal notification: %w", err)
	}
	// Read state never comes from the wire.
	n.Read = false
	return raw.Event, &n, nil
}
