// Package fetch implements keyed fetch slots. A slot holds the state of the
// most recent request for its key and discards responses that arrive for a
// request it no longer owns.
package fetch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/blackmichael/blogify/internal/domain"
)

// ErrNoKey is returned by Refresh on a slot that was never loaded.
var ErrNoKey = errors.New("fetch slot has no key")

// Status is the lifecycle position of a slot.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a snapshot of a slot.
type State[K comparable, T any] struct {
	Status Status
	Key    K
	Data   T

	// Err and Message are set when Status is StatusFailed. Message is the
	// user-facing text.
	Err     error
	Message string
}

// Loader fetches the value for key.
type Loader[K comparable, T any] func(ctx context.Context, key K) (T, error)

// Commit publishes a loaded value to shared state. It runs under the slot
// lock and only for the request the slot still owns, so it must not call
// back into the slot.
type Commit[K comparable, T any] func(key K, data T)

// Recorder observes slot outcomes.
type Recorder interface {
	FetchSuperseded(slot string)
	FetchFailed(slot string)
}

// Option configures a Slot.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	recorder Recorder
}

// WithLogger sets the slot's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRecorder reports superseded and failed fetches to r.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// Slot is a single fetch slot for one view of an entity.
type Slot[K comparable, T any] struct {
	name   string
	load   Loader[K, T]
	commit Commit[K, T]
	opts   options

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	done     chan struct{}
	hasKey   bool
	state    State[K, T]
	watchers map[int]chan State[K, T]
	nextW    int
}

// NewSlot creates an idle slot named name that loads through load.
func NewSlot[K comparable, T any](name string, load Loader[K, T], opts ...Option) *Slot[K, T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Slot[K, T]{
		name:     name,
		load:     load,
		opts:     o,
		watchers: make(map[int]chan State[K, T]),
	}
}

// OnCommit sets the function that publishes every accepted result. Call it
// before the first load.
func (s *Slot[K, T]) OnCommit(fn Commit[K, T]) *Slot[K, T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit = fn
	return s
}

// Load issues a request for key. Any outstanding request is cancelled and
// its eventual result ignored. If a newer request is issued before this one
// completes, Load returns domain.ErrSuperseded, skips the commit and leaves
// the state alone.
func (s *Slot[K, T]) Load(ctx context.Context, key K) (T, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.done = done
	s.hasKey = true
	s.setLocked(State[K, T]{Status: StatusPending, Key: key})
	s.mu.Unlock()
	defer close(done)

	data, err := s.load(reqCtx, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		s.opts.logger.Debug("discarding superseded fetch", "slot", s.name, "generation", gen)
		if s.opts.recorder != nil {
			s.opts.recorder.FetchSuperseded(s.name)
		}
		var zero T
		return zero, domain.ErrSuperseded
	}
	s.cancel = nil

	if err != nil {
		s.opts.logger.Warn("fetch failed", "slot", s.name, "error", err)
		if s.opts.recorder != nil {
			s.opts.recorder.FetchFailed(s.name)
		}
		s.setLocked(State[K, T]{
			Status:  StatusFailed,
			Key:     key,
			Err:     err,
			Message: domain.UserMessage(err),
		})
		var zero T
		return zero, err
	}

	if s.commit != nil {
		s.commit(key, data)
	}
	s.setLocked(State[K, T]{Status: StatusReady, Key: key, Data: data})
	return data, nil
}

// SetKey loads key unless the slot already holds it. A failed slot is always
// reloaded. While key is pending, SetKey waits for that request and returns
// its outcome, or domain.ErrSuperseded if the slot moved on to another key.
func (s *Slot[K, T]) SetKey(ctx context.Context, key K) (T, error) {
	var zero T
	waited := false
	for {
		s.mu.Lock()
		current, done := s.state, s.done
		same := s.hasKey && current.Key == key
		s.mu.Unlock()

		switch {
		case same && current.Status == StatusReady:
			return current.Data, nil
		case same && current.Status == StatusFailed && waited:
			return zero, current.Err
		case same && current.Status == StatusPending:
		case waited:
			return zero, domain.ErrSuperseded
		default:
			return s.Load(ctx, key)
		}

		select {
		case <-done:
			waited = true
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Refresh reloads the current key.
func (s *Slot[K, T]) Refresh(ctx context.Context) (T, error) {
	s.mu.Lock()
	key, ok := s.state.Key, s.hasKey
	s.mu.Unlock()

	if !ok {
		var zero T
		return zero, ErrNoKey
	}
	return s.Load(ctx, key)
}

// State returns a snapshot of the slot.
func (s *Slot[K, T]) State() State[K, T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Watch returns a channel receiving the slot state after every change. A slow
// watcher only sees the latest state. Call the returned function to stop.
func (s *Slot[K, T]) Watch() (<-chan State[K, T], func()) {
	ch := make(chan State[K, T], 1)

	s.mu.Lock()
	id := s.nextW
	s.nextW++
	s.watchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// Reset cancels any outstanding request and returns the slot to idle.
func (s *Slot[K, T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.hasKey = false
	s.setLocked(State[K, T]{})
}

func (s *Slot[K, T]) setLocked(st State[K, T]) {
	s.state = st
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}
