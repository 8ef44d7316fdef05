package domain

import (
	"context"
	"net/http"
	"time"
)

// NotificationRepository persists the viewer's notification history so that
// redelivered events can be recognized and read state survives restarts.
type NotificationRepository interface {
	// SaveNotification inserts n unless a notification with the same id is
	// already stored. Returns true if the row was inserted.
	SaveNotification(ctx context.Context, n *Notification) (bool, error)

	// ListNotifications returns up to limit notifications, oldest first.
	ListNotifications(ctx context.Context, limit int) ([]Notification, error)

	// MarkNotificationsRead flags the given ids as read.
	MarkNotificationsRead(ctx context.Context, ids ...string) error

	// DeleteOldNotifications removes notifications received before maxAge and
	// any rows beyond maxRows, keeping the most recent. Returns the number of
	// rows deleted.
	DeleteOldNotifications(ctx context.Context, maxAge time.Duration, maxRows int) (int64, error)
}

// CookieRepository persists the backend session cookies between runs.
type CookieRepository interface {
	// LoadCookies returns the cookies stored for host.
	LoadCookies(ctx context.Context, host string) ([]*http.Cookie, error)

	// SaveCookies replaces the cookies stored for host.
	SaveCookies(ctx context.Context, host string, cookies []*http.Cookie) error
}
