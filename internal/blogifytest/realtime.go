package blogifytest

import (
	"context"
	"slices"
	"time"

	"github.com/blackmichael/blogify/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const eventNewNotification = "new-notification"

type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// realtime upgrades the request and keeps the socket registered under the
// userId query parameter until the client goes away.
func (b *Backend) realtime(c echo.Context) error {
	conn, err := b.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	userID := c.QueryParam("userId")

	b.mu.Lock()
	b.sockets[conn] = userID
	b.realtimeUsers = append(b.realtimeUsers, userID)
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.sockets, conn)
		b.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

// notifyLocked records a notification for recipient and pushes it to every
// socket bound to recipient. Self-notifications are skipped.
func (b *Backend) notifyLocked(recipient, sender string, n domain.Notification) {
	if recipient == "" || recipient == sender {
		return
	}
	n.SentBy = sender
	if u, ok := b.users[sender]; ok {
		n.SentByName = u.identity.Name
		n.SentByPhotoURL = u.identity.PhotoURL
	}
	n = b.recordNotificationLocked(recipient, n)
	b.pushLocked(recipient, frame{Event: eventNewNotification, Data: n})
}

func (b *Backend) pushLocked(userID string, f frame) int {
	sent := 0
	for conn, bound := range b.sockets {
		if bound != userID {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteJSON(f); err == nil {
			sent++
		}
	}
	return sent
}

// Push records n for userID and delivers it on every realtime connection bound
// to that user. It returns the stored notification and the number of sockets
// it reached.
func (b *Backend) Push(userID string, n domain.Notification) (domain.Notification, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n = b.recordNotificationLocked(userID, n)
	return n, b.pushLocked(userID, frame{Event: eventNewNotification, Data: n})
}

// Redeliver pushes n again without recording it, as a backend retry would.
func (b *Backend) Redeliver(userID string, n domain.Notification) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pushLocked(userID, frame{Event: eventNewNotification, Data: n})
}

// PushRaw writes an arbitrary text frame to every socket bound to userID.
func (b *Backend) PushRaw(userID string, payload []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	sent := 0
	for conn, bound := range b.sockets {
		if bound != userID {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err == nil {
			sent++
		}
	}
	return sent
}

// DropConnections closes every open realtime socket.
func (b *Backend) DropConnections() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for conn := range b.sockets {
		conn.Close()
		delete(b.sockets, conn)
	}
}

// Connections returns the userId bound to each open realtime socket.
func (b *Backend) Connections() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.sockets))
	for _, id := range b.sockets {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// RealtimeUsers returns the userId of every realtime connection ever accepted,
// in order.
func (b *Backend) RealtimeUsers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.realtimeUsers)
}

// WaitForConnection blocks until a socket bound to userID is open.
func (b *Backend) WaitForConnection(ctx context.Context, userID string) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if slices.Contains(b.Connections(), userID) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
