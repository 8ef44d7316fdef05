// Package session holds the viewer's identity. The identity is resolved once
// per process and changed only through explicit login and logout flows.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/blackmichael/blogify/internal/domain"
)

// IdentityChecker performs the backend identity check. A nil identity with a
// nil error means the viewer is anonymous.
type IdentityChecker interface {
	WhoAmI(ctx context.Context) (*domain.Identity, error)
}

// Provider owns the session. It is safe for concurrent use.
type Provider struct {
	checker IdentityChecker
	logger  *slog.Logger

	once  sync.Once
	ready chan struct{}

	mu          sync.RWMutex
	identity    *domain.Identity
	resolved    bool
	subscribers map[int]chan *domain.Identity
	nextSub     int
}

// NewProvider creates a provider that resolves through checker.
func NewProvider(checker IdentityChecker, logger *slog.Logger) *Provider {
	return &Provider{
		checker:     checker,
		logger:      logger,
		ready:       make(chan struct{}),
		subscribers: make(map[int]chan *domain.Identity),
	}
}

// Resolve performs the identity check exactly once. Concurrent and later
// calls wait for that first check and return its outcome. A failed check
// leaves the viewer anonymous and is not reported as an error.
func (p *Provider) Resolve(ctx context.Context) *domain.Identity {
	p.once.Do(func() {
		ident, err := p.checker.WhoAmI(ctx)
		if err != nil {
			p.logger.Warn("identity check failed, continuing anonymously", "error", err)
			ident = nil
		}
		if ident != nil {
			p.logger.Info("resolved identity", "id", ident.ID, "name", ident.Name)
		} else {
			p.logger.Info("resolved anonymous session")
		}

		p.mu.Lock()
		if !p.resolved {
			p.identity = cloneIdentity(ident)
			p.resolved = true
		}
		current := cloneIdentity(p.identity)
		p.broadcastLocked(current)
		p.mu.Unlock()

		close(p.ready)
	})

	<-p.ready
	ident, _ := p.Identity()
	return ident
}

// Ready is closed once the session is definite.
func (p *Provider) Ready() <-chan struct{} {
	return p.ready
}

// Wait blocks until the session is definite or ctx is done.
func (p *Provider) Wait(ctx context.Context) error {
	select {
	case <-p.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Identity returns the current identity. The second result is false while
// resolution is still pending, in which case the viewer must be treated as
// not yet known rather than anonymous.
func (p *Provider) Identity() (*domain.Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return cloneIdentity(p.identity), p.resolved
}

// ViewerID returns the current identity id, or "" when anonymous or pending.
func (p *Provider) ViewerID() string {
	ident, _ := p.Identity()
	if ident == nil {
		return ""
	}
	return ident.ID
}

// Require returns the identity or domain.ErrNotAuthenticated.
func (p *Provider) Require() (*domain.Identity, error) {
	ident, _ := p.Identity()
	if ident == nil {
		return nil, domain.ErrNotAuthenticated
	}
	return ident, nil
}

// Set replaces the identity. It is used by login and logout and marks the
// session as definite, so a pending Resolve result will not overwrite it.
func (p *Provider) Set(ident *domain.Identity) {
	p.mu.Lock()
	changed := !sameIdentity(p.identity, ident) || !p.resolved
	p.identity = cloneIdentity(ident)
	p.resolved = true
	if changed {
		p.broadcastLocked(cloneIdentity(ident))
	}
	p.mu.Unlock()

	// A login that lands before the check finishes makes the session definite.
	p.once.Do(func() { close(p.ready) })
}

// Logout clears the identity.
func (p *Provider) Logout() {
	p.Set(nil)
}

// Subscribe returns a channel that receives the identity after every change,
// starting with the current one if the session is already definite. A slow
// subscriber only sees the latest value. Call the returned function to stop.
func (p *Provider) Subscribe() (<-chan *domain.Identity, func()) {
	ch := make(chan *domain.Identity, 1)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = ch
	if p.resolved {
		ch <- cloneIdentity(p.identity)
	}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) broadcastLocked(ident *domain.Identity) {
	for _, ch := range p.subscribers {
		// Drop the stale value so the newest identity always fits.
		select {
		case <-ch:
		default:
		}
		ch <- cloneIdentity(ident)
	}
}

func sameIdentity(a, b *domain.Identity) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return a.ID == b.ID
	}
}

func cloneIdentity(ident *domain.Identity) *domain.Identity {
	if ident == nil {
		return nil
	}
	out := *ident
	return &out
}
