// Package app wires the client core together. App is the single dependency
// object handed to every front end; nothing in the core is global.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blackmichael/blogify/internal/blogify"
	"github.com/blackmichael/blogify/internal/cache"
	"github.com/blackmichael/blogify/internal/config"
	"github.com/blackmichael/blogify/internal/domain"
	"github.com/blackmichael/blogify/internal/fetch"
	"github.com/blackmichael/blogify/internal/httpserver"
	"github.com/blackmichael/blogify/internal/inbox"
	"github.com/blackmichael/blogify/internal/interact"
	"github.com/blackmichael/blogify/internal/metrics"
	"github.com/blackmichael/blogify/internal/notice"
	"github.com/blackmichael/blogify/internal/realtime"
	"github.com/blackmichael/blogify/internal/session"
	"github.com/blackmichael/blogify/internal/sqlite"
)

// restoreLimit caps how many persisted notifications are loaded on start.
const restoreLimit = 500

// App owns every component of the client.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Client  *blogify.Client
	Repo    *sqlite.Repository
	Metrics *metrics.Metrics

	Session  *session.Provider
	Store    *cache.Store
	Notices  *notice.Center
	Reducers *interact.Reducers
	Inbox    *inbox.Inbox
	Channel  *realtime.Channel

	Fetchers *Fetchers

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	search *fetch.Debouncer[domain.SearchQuery]
}

// New builds the application from cfg. The state database is opened and the
// persisted session cookies are loaded into the API client.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	repo, err := sqlite.NewRepository(cfg.StateDB)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}

	client, err := blogify.NewClient(cfg.APIURL, cfg.HTTPTimeout, logger)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("create api client: %w", err)
	}
	if err := client.UseCookieStore(ctx, repo); err != nil {
		repo.Close()
		return nil, fmt.Errorf("restore session cookies: %w", err)
	}

	m := metrics.New()
	sess := session.NewProvider(client, logger)
	store := cache.New()
	notices := notice.NewCenter(cfg.NoticeTTL, logger, m)
	in := inbox.New(repo, m, logger)

	channel, err := realtime.NewChannel(realtime.Config{
		URL:               cfg.RealtimeURL,
		ReconnectInterval: cfg.ReconnectInterval,
		Jar:               client.Jar(),
	}, sess, in, notices, m, logger)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("create realtime channel: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Client:   client,
		Repo:     repo,
		Metrics:  m,
		Session:  sess,
		Store:    store,
		Notices:  notices,
		Reducers: interact.NewReducers(client, sess, store, notices, m, logger),
		Inbox:    in,
		Channel:  channel,
		ctx:      runCtx,
		cancel:   cancel,
	}
	a.Fetchers = newFetchers(a)
	a.search = fetch.NewDebouncer(cfg.SearchDebounce, func(q domain.SearchQuery) {
		if _, err := a.Fetchers.Search.Load(a.ctx, q); err != nil && !errors.Is(err, domain.ErrSuperseded) {
			logger.Debug("search failed", "term", q.Term, "error", err)
		}
	})

	channel.SetBackfill(func(ctx context.Context) error {
		if a.Session.ViewerID() == "" {
			return nil
		}
		_, err := a.Fetchers.Notifications.Load(ctx, a.Session.ViewerID())
		return err
	})
	return a, nil
}

// Start restores local notification state and resolves the session. It
// blocks until the identity is definite.
func (a *App) Start(ctx context.Context) error {
	if err := a.Inbox.Restore(ctx, restoreLimit); err != nil {
		a.Logger.Warn("failed to restore notifications", "error", err)
	}
	a.Session.Resolve(ctx)
	return nil
}

// Close stops background work and closes the state database.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.search.Stop()
	a.cancel()
	return a.Repo.Close()
}

// Login authenticates, replaces the session identity and starts from an
// empty cache so nothing from a previous viewer leaks.
func (a *App) Login(ctx context.Context, email, password string) (*domain.Identity, error) {
	ident, msg, err := a.Client.Login(ctx, email, password)
	if err != nil {
		a.Notices.Notify(domain.Notice{Severity: domain.SeverityError, Message: domain.UserMessage(err)})
		return nil, err
	}
	a.resetViewerState()
	a.Session.Set(ident)
	if msg == "" {
		msg = "Welcome back, " + ident.Name
	}
	a.Notices.Notify(domain.Notice{Severity: domain.SeveritySuccess, Message: msg})
	return ident, nil
}

// Logout ends the backend session and clears the identity.
func (a *App) Logout(ctx context.Context) error {
	msg, err := a.Client.Logout(ctx)
	if err != nil {
		a.Notices.Notify(domain.Notice{Severity: domain.SeverityError, Message: domain.UserMessage(err)})
		return err
	}
	a.resetViewerState()
	a.Session.Logout()
	if msg == "" {
		msg = "Logged out"
	}
	a.Notices.Notify(domain.Notice{Severity: domain.SeveritySuccess, Message: msg})
	return nil
}

func (a *App) resetViewerState() {
	a.Store.Reset()
	a.Fetchers.Reset()
}

// Search records a search key change. The search slot loads it once typing
// settles; every fired key supersedes the previous one.
func (a *App) Search(q domain.SearchQuery) {
	if q.Limit <= 0 {
		q.Limit = a.Config.SearchLimit
	}
	a.search.Trigger(q)
}

// FlushSearch fires a pending search key immediately.
func (a *App) FlushSearch() {
	a.search.Flush()
}

// Status reports the client state for the status server.
func (a *App) Status() map[string]any {
	return map[string]any{
		"realtime": a.Channel.State().String(),
		"user_id":  a.Channel.UserID(),
		"unread":   a.Inbox.UnreadCount(),
	}
}

// StatusServer creates the local status server for addr.
func (a *App) StatusServer(addr string) *httpserver.Server {
	return httpserver.NewServer(addr, httpserver.Deps{
		Inbox:   a.Inbox,
		Notices: a.Notices,
		Metrics: a.Metrics.Handler(),
		Status:  a.Status,
	}, a.Logger)
}
