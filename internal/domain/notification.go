package domain

import "time"

// NotificationType enumerates the notification kinds the backend emits.
type NotificationType string

const (
	NotificationLikedBlog    NotificationType = "Liked Blog"
	NotificationAddedComment NotificationType = "Added Comment"
	NotificationReplied      NotificationType = "Replied"
	NotificationFollowed     NotificationType = "Followed"
)

// Notification is an append-only event addressed to the viewer. It arrives
// from the historical read or from the realtime channel.
type Notification struct {
	ID             string           `json:"_id"`
	Type           NotificationType `json:"type"`
	SentBy         string           `json:"sentBy"`
	SentByName     string           `json:"sentByName"`
	SentByPhotoURL string           `json:"sentByPhotoUrl,omitempty"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`

	// BlogID is set for post-related notifications.
	BlogID string `json:"blogId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`

	// Read is local state; the backend does not track it.
	Read bool `json:"read,omitempty"`
}

// TargetsPost reports whether the notification navigates to a post rather
// than to the sender's profile.
func (n Notification) TargetsPost() bool {
	switch n.Type {
	case NotificationLikedBlog, NotificationAddedComment, NotificationReplied:
		return n.BlogID != ""
	default:
		return false
	}
}
