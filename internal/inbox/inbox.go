// Package inbox keeps the viewer's notification history. Notifications from
// the historical read and from the realtime channel are merged and
// de-duplicated by id, and read state is tracked locally.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/blackmichael/blogify/internal/domain"
	"github.com/google/uuid"
)

// Sources label where a notification came from.
const (
	SourceLive    = "live"
	SourceHistory = "history"
)

// Recorder observes inbox activity.
type Recorder interface {
	NotificationReceived(source string, isNew bool)
	RetentionDeleted(n int64)
}

// Inbox is the ordered, de-duplicated notification list. It is safe for
// concurrent use. The repository is optional.
type Inbox struct {
	repo     domain.NotificationRepository
	recorder Recorder
	logger   *slog.Logger

	mu    sync.RWMutex
	items []domain.Notification
	index map[string]struct{}
}

// New creates an inbox persisting through repo, which may be nil. recorder
// may be nil.
func New(repo domain.NotificationRepository, recorder Recorder, logger *slog.Logger) *Inbox {
	return &Inbox{
		repo:     repo,
		recorder: recorder,
		logger:   logger,
		index:    make(map[string]struct{}),
	}
}

// Restore loads up to limit persisted notifications, keeping their read
// state. It is a no-op without a repository.
func (i *Inbox) Restore(ctx context.Context, limit int) error {
	if i.repo == nil {
		return nil
	}
	stored, err := i.repo.ListNotifications(ctx, limit)
	if err != nil {
		return fmt.Errorf("restore notifications: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	for _, n := range stored {
		if _, ok := i.index[n.ID]; ok {
			continue
		}
		i.index[n.ID] = struct{}{}
		i.items = append(i.items, n)
	}
	i.sortLocked()
	return nil
}

// Append offers a live notification. It returns true only the first time a
// given id is seen, so a redelivered event is recorded once and announced
// once.
func (i *Inbox) Append(ctx context.Context, n domain.Notification) bool {
	isNew := i.add(ctx, n)
	if i.recorder != nil {
		i.recorder.NotificationReceived(SourceLive, isNew)
	}
	return isNew
}

// Load merges a historical read. It returns how many notifications were new.
func (i *Inbox) Load(ctx context.Context, history []domain.Notification) int {
	added := 0
	for _, n := range history {
		isNew := i.add(ctx, n)
		if i.recorder != nil {
			i.recorder.NotificationReceived(SourceHistory, isNew)
		}
		if isNew {
			added++
		}
	}
	return added
}

func (i *Inbox) add(ctx context.Context, n domain.Notification) bool {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	i.mu.Lock()
	if _, seen := i.index[n.ID]; seen {
		i.mu.Unlock()
		return false
	}
	i.mu.Unlock()

	isNew := true
	if i.repo != nil {
		inserted, err := i.repo.SaveNotification(ctx, &n)
		if err != nil {
			i.logger.Warn("failed to persist notification", "id", n.ID, "error", err)
		} else if !inserted {
			// Stored by an earlier run but not restored into memory.
			isNew = false
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if _, seen := i.index[n.ID]; seen {
		return false
	}
	i.index[n.ID] = struct{}{}
	i.items = append(i.items, n)
	i.sortLocked()
	return isNew
}

func (i *Inbox) sortLocked() {
	slices.SortStableFunc(i.items, func(a, b domain.Notification) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// All returns every notification, oldest first.
func (i *Inbox) All() []domain.Notification {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return slices.Clone(i.items)
}

// Unread returns the unread notifications, oldest first.
func (i *Inbox) Unread() []domain.Notification {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var out []domain.Notification
	for _, n := range i.items {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

// UnreadCount returns the number of unread notifications.
func (i *Inbox) UnreadCount() int {
	return len(i.Unread())
}

// MarkRead flags ids as read.
func (i *Inbox) MarkRead(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	i.mu.Lock()
	for idx := range i.items {
		if slices.Contains(ids, i.items[idx].ID) {
			i.items[idx].Read = true
		}
	}
	i.mu.Unlock()

	if i.repo == nil {
		return nil
	}
	if err := i.repo.MarkNotificationsRead(ctx, ids...); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// MarkAllRead flags every notification as read.
func (i *Inbox) MarkAllRead(ctx context.Context) error {
	unread := i.Unread()
	ids := make([]string, len(unread))
	for idx, n := range unread {
		ids[idx] = n.ID
	}
	return i.MarkRead(ctx, ids...)
}

// StartRetentionJob prunes persisted notifications received before maxAge
// and caps the total at maxRows. It runs immediately on start and then
// repeats at the given interval. It blocks until ctx is cancelled.
func (i *Inbox) StartRetentionJob(ctx context.Context, interval time.Duration, maxAge time.Duration, maxRows int) {
	if i.repo == nil {
		return
	}
	i.runRetention(ctx, maxAge, maxRows)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.runRetention(ctx, maxAge, maxRows)
		}
	}
}

func (i *Inbox) runRetention(ctx context.Context, maxAge time.Duration, maxRows int) {
	deleted, err := i.repo.DeleteOldNotifications(ctx, maxAge, maxRows)
	if err != nil {
		i.logger.Error("notification retention failed", "error", err)
		return
	}
	if i.recorder != nil {
		i.recorder.RetentionDeleted(deleted)
	}
	if deleted > 0 {
		i.logger.Info("notification retention complete", "deleted", deleted)
	}
}
