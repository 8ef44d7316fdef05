package interact

import "sync"

// Guard is a keyed in-flight set. Keys are "kind:entity-id", so an
// interaction on one entity never blocks the same interaction on another.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{inFlight: make(map[string]struct{})}
}

// TryAcquire marks key in flight. It returns false if key already is.
func (g *Guard) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[key]; busy {
		return false
	}
	g.inFlight[key] = struct{}{}
	return true
}

// Release clears key.
func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, key)
}

// InFlight reports whether key is held. Views use it to disable controls.
func (g *Guard) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[key]
	return busy
}

// Key builds a guard key.
func Key(kind, id string) string {
	return kind + ":" + id
}
