// Package realtime maintains the push connection that delivers notifications.
// The connection follows the session: it is re-established whenever the
// viewer changes and retried forever at a fixed interval when it drops.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/blackmichael/blogify/internal/domain"
	"github.com/blackmichael/blogify/internal/notice"
	"github.com/gorilla/websocket"
)

// State is the channel's connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Session emits the viewer identity after every change.
type Session interface {
	Subscribe() (<-chan *domain.Identity, func())
}

// Sink receives live notifications and reports whether each one is new.
type Sink interface {
	Append(ctx context.Context, n domain.Notification) bool
}

// Recorder observes connection activity.
type Recorder interface {
	RealtimeState(state int)
	RealtimeDial()
}

// Config holds the channel's connection settings.
type Config struct {
	// URL is the WebSocket endpoint. The viewer id is added as ?userId=.
	URL string

	// ReconnectInterval is the fixed pause between connection attempts.
	ReconnectInterval time.Duration

	// Jar supplies the session cookies presented during the handshake.
	Jar http.CookieJar
}

// Channel is the realtime notification channel.
type Channel struct {
	url      *url.URL
	interval time.Duration
	dialer   *websocket.Dialer
	session  Session
	sink     Sink
	notifier domain.Notifier
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	state    State
	userID   string
	backfill func(ctx context.Context) error
	watchers []func(State)
}

// NewChannel creates a disconnected channel. recorder may be nil.
func NewChannel(cfg Config, session Session, sink Sink, notifier domain.Notifier, recorder Recorder, logger *slog.Logger) (*Channel, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("realtime url must use ws or wss, got %q", u.Scheme)
	}
	interval := cfg.ReconnectInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Channel{
		url:      u,
		interval: interval,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
			Jar:              cfg.Jar,
		},
		session:  session,
		sink:     sink,
		notifier: notifier,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// SetBackfill registers fn to run after every successful connect, so events
// missed while disconnected are picked up from the historical read.
func (c *Channel) SetBackfill(fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backfill = fn
}

// OnStateChange registers fn for every state transition. fn must not block.
func (c *Channel) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UserID returns the viewer id the channel is bound to.
func (c *Channel) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	watchers := append([]func(State){}, c.watchers...)
	c.mu.Unlock()

	if c.recorder != nil {
		c.recorder.RealtimeState(int(s))
	}
	for _, fn := range watchers {
		fn(s)
	}
}

// Run binds the channel to the session until ctx is cancelled. Every identity
// change tears down the current connection and connects again with the new
// viewer id. Anonymous viewers connect without one.
func (c *Channel) Run(ctx context.Context) error {
	identities, stop := c.session.Subscribe()
	defer stop()

	var (
		cancel context.CancelFunc
		done   chan struct{}
	)
	teardown := func() {
		if cancel != nil {
			cancel()
			<-done
			cancel = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			teardown()
			c.setState(Disconnected)
			return ctx.Err()

		case ident := <-identities:
			teardown()

			userID := ""
			if ident != nil {
				userID = ident.ID
			}
			c.mu.Lock()
			c.userID = userID
			c.mu.Unlock()
			c.logger.Info("binding notification channel", "user_id", userID)

			var connCtx context.Context
			connCtx, cancel = context.WithCancel(ctx)
			done = make(chan struct{})
			go func(ctx context.Context, done chan struct{}) {
				defer close(done)
				c.maintain(ctx, userID)
			}(connCtx, done)
		}
	}
}

// maintain keeps a connection for userID open until ctx is cancelled. Every
// drop, however long the connection lasted, is followed by a full interval
// before the next dial.
func (c *Channel) maintain(ctx context.Context, userID string) {
	for {
		err := c.connect(ctx, userID)
		c.setState(Disconnected)
		if ctx.Err() != nil {
			return
		}
		c.logger.Error("notification channel error, reconnecting", "error", err, "retry_in", c.interval)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}

func (c *Channel) buildURL(userID string) string {
	u := *c.url
	q := u.Query()
	if userID != "" {
		q.Set("userId", userID)
	} else {
		q.Del("userId")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Channel) connect(ctx context.Context, userID string) error {
	c.setState(Connecting)
	if c.recorder != nil {
		c.recorder.RealtimeDial()
	}

	wsURL := c.buildURL(userID)
	c.logger.Info("connecting to notification channel", "url", wsURL)

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial notification channel: %w", err)
	}
	defer conn.Close()
	// ReadMessage does not watch ctx; closing the socket unblocks it.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.setState(Connected)
	c.logger.Info("connected to notification channel", "user_id", userID)

	c.mu.Lock()
	backfill := c.backfill
	c.mu.Unlock()
	if backfill != nil {
		go func() {
			if err := backfill(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Warn("notification backfill failed", "error", err)
			}
		}()
	}

	var received, fresh int64
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.logger.Debug("notification channel closed", "received", received, "new", fresh)
			return fmt.Errorf("read message: %w", err)
		}

		event, n, err := parseEvent(message)
		if err != nil {
			c.logger.Error("failed to parse event", "error", err)
			continue
		}
		if n == nil {
			c.logger.Debug("ignoring event", "event", event)
			continue
		}

		received++
		if c.sink.Append(ctx, *n) {
			fresh++
			c.notifier.Notify(notice.Toast(*n, c.now()))
		} else {
			c.logger.Debug("duplicate notification", "id", n.ID)
		}
	}
}
