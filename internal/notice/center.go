// Package notice holds the transient message shown to the viewer.
package notice

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/blackmichael/blogify/internal/domain"
	"github.com/dustin/go-humanize"
)

// Recorder observes published notices.
type Recorder interface {
	NoticePublished(severity string)
}

// Center keeps the current notice and dismisses it after a fixed TTL. A newer
// notice replaces the current one. It implements domain.Notifier.
type Center struct {
	ttl      time.Duration
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time

	mu      sync.Mutex
	current *domain.Notice
	seq     uint64
	timer   *time.Timer
	subs    map[int]chan domain.Notice
	nextSub int
}

// NewCenter creates a center whose notices live for ttl. A non-positive ttl
// keeps notices until dismissed. recorder may be nil.
func NewCenter(ttl time.Duration, logger *slog.Logger, recorder Recorder) *Center {
	return &Center{
		ttl:      ttl,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
		subs:     make(map[int]chan domain.Notice),
	}
}

// Notify publishes n.
func (c *Center) Notify(n domain.Notice) {
	if n.At.IsZero() {
		n.At = c.now()
	}

	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.current = &n
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.ttl > 0 {
		c.timer = time.AfterFunc(c.ttl, func() { c.expire(seq) })
	}
	subs := make([]chan domain.Notice, 0, len(c.subs))
	for _, ch := range c.subs {
		subs = append(subs, ch)
	}
	c.mu.Unlock()

	if c.recorder != nil {
		c.recorder.NoticePublished(string(n.Severity))
	}
	c.logger.Debug("notice published", "severity", n.Severity, "message", n.Message)

	for _, ch := range subs {
		select {
		case ch <- n:
		default:
			c.logger.Warn("notice subscriber is full, dropping notice", "message", n.Message)
		}
	}
}

// Current returns the notice being shown, if any.
func (c *Center) Current() (domain.Notice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return domain.Notice{}, false
	}
	return *c.current, true
}

// Dismiss hides the current notice.
func (c *Center) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.current = nil
	if c.timer != nil {
		c.timer.Stop()
	}
}

// Subscribe returns a channel receiving every notice published afterwards.
// Notices are dropped for a subscriber that falls more than buffer behind.
func (c *Center) Subscribe(buffer int) (<-chan domain.Notice, func()) {
	ch := make(chan domain.Notice, max(buffer, 1))

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Center) expire(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq == c.seq {
		c.current = nil
	}
}

// Toast builds the info notice announcing a realtime notification. The
// sender's name leads the message unless the message already names them.
func Toast(n domain.Notification, now time.Time) domain.Notice {
	title := n.Title
	if title == "" {
		title = string(n.Type)
	}
	msg := n.Message
	switch {
	case n.SentByName == "" || strings.Contains(msg, n.SentByName):
	case msg == "":
		msg = n.SentByName
	default:
		msg = n.SentByName + ": " + msg
	}
	if !n.CreatedAt.IsZero() {
		msg = fmt.Sprintf("%s (%s)", msg, humanize.RelTime(n.CreatedAt, now, "ago", "from now"))
	}
	return domain.Notice{
		Severity: domain.SeverityInfo,
		Title:    title,
		Message:  msg,
		At:       now,
	}
}
