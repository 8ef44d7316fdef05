// Package cache is the shared normalized store of posts, authors and the
// viewer's lists. Fetchers write through it and reducers commit to it, so
// every view of an entity reads the same state.
package cache

import (
	"slices"
	"sync"

	"github.com/blackmichael/blogify/internal/domain"
)

// Kind names the entity collection a change touched.
type Kind string

const (
	KindPost   Kind = "post"
	KindAuthor Kind = "author"
	KindList   Kind = "list"
	KindLists  Kind = "lists"
	KindReset  Kind = "reset"
)

// Change describes one mutation of the store.
type Change struct {
	Kind    Kind
	ID      string
	Removed bool
}

// Store holds copies of entities keyed by id. Values are copied on the way in
// and out. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	posts   map[string]domain.Post
	authors map[string]domain.Author

	// lists keeps the viewer's lists in backend order. listsLoaded separates
	// "no lists" from "never fetched".
	lists       []domain.List
	listsLoaded bool

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		posts:   make(map[string]domain.Post),
		authors: make(map[string]domain.Author),
		subs:    make(map[int]func(Change)),
	}
}

// Subscribe registers fn for every change. fn runs synchronously after the
// mutation and must not call back into a mutating method.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) publish(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// PutPost stores p, replacing any previous copy.
func (s *Store) PutPost(p domain.Post) {
	s.mu.Lock()
	s.posts[p.ID] = p.Clone()
	s.mu.Unlock()
	s.publish(Change{Kind: KindPost, ID: p.ID})
}

// PutPosts stores every post.
func (s *Store) PutPosts(posts ...domain.Post) {
	for _, p := range posts {
		s.PutPost(p)
	}
}

// Post returns the cached post.
func (s *Store) Post(id string) (domain.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return domain.Post{}, false
	}
	return p.Clone(), true
}

// UpdatePost applies fn to the cached post. It reports false when the post is
// not cached.
func (s *Store) UpdatePost(id string, fn func(*domain.Post)) bool {
	s.mu.Lock()
	p, ok := s.posts[id]
	if ok {
		p = p.Clone()
		fn(&p)
		s.posts[id] = p
	}
	s.mu.Unlock()

	if ok {
		s.publish(Change{Kind: KindPost, ID: id})
	}
	return ok
}

// RemovePost evicts a post and drops it from every cached list.
func (s *Store) RemovePost(id string) {
	s.mu.Lock()
	delete(s.posts, id)
	for i := range s.lists {
		s.lists[i].Blogs = slices.DeleteFunc(s.lists[i].Blogs, func(r domain.PostRef) bool { return r.ID == id })
	}
	s.mu.Unlock()
	s.publish(Change{Kind: KindPost, ID: id, Removed: true})
}

// PutAuthor stores a, replacing any previous copy.
func (s *Store) PutAuthor(a domain.Author) {
	s.mu.Lock()
	s.authors[a.ID] = a.Clone()
	s.mu.Unlock()
	s.publish(Change{Kind: KindAuthor, ID: a.ID})
}

// Author returns the cached author.
func (s *Store) Author(id string) (domain.Author, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.authors[id]
	if !ok {
		return domain.Author{}, false
	}
	return a.Clone(), true
}

// SetLists replaces the viewer's lists.
func (s *Store) SetLists(lists []domain.List) {
	s.mu.Lock()
	s.lists = domain.CloneLists(lists)
	if s.lists == nil {
		s.lists = []domain.List{}
	}
	s.listsLoaded = true
	s.mu.Unlock()
	s.publish(Change{Kind: KindLists})
}

// Lists returns the viewer's lists in order. The second result is false if
// they were never loaded.
func (s *Store) Lists() ([]domain.List, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneLists(s.lists), s.listsLoaded
}

// List returns one of the viewer's lists.
func (s *Store) List(id string) (domain.List, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.lists {
		if l.ID == id {
			return l.Clone(), true
		}
	}
	return domain.List{}, false
}

// PutList replaces the list with the same id, or appends it.
func (s *Store) PutList(l domain.List) {
	s.mu.Lock()
	if i := s.listIndexLocked(l.ID); i >= 0 {
		s.lists[i] = l.Clone()
	} else {
		s.lists = append(s.lists, l.Clone())
	}
	s.listsLoaded = true
	s.mu.Unlock()
	s.publish(Change{Kind: KindList, ID: l.ID})
}

// RemoveList drops a list.
func (s *Store) RemoveList(id string) {
	s.mu.Lock()
	s.lists = slices.DeleteFunc(s.lists, func(l domain.List) bool { return l.ID == id })
	s.mu.Unlock()
	s.publish(Change{Kind: KindList, ID: id, Removed: true})
}

// AddToList records ref as a member of the list. Adding a post that is
// already a member changes nothing. It reports false when the list is not
// cached.
func (s *Store) AddToList(listID string, ref domain.PostRef) bool {
	s.mu.Lock()
	i := s.listIndexLocked(listID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	added := !s.lists[i].Contains(ref.ID)
	if added {
		s.lists[i].Blogs = append(s.lists[i].Blogs, ref)
	}
	s.mu.Unlock()

	if added {
		s.publish(Change{Kind: KindList, ID: listID})
	}
	return true
}

func (s *Store) listIndexLocked(id string) int {
	return slices.IndexFunc(s.lists, func(l domain.List) bool { return l.ID == id })
}

// Reset drops everything. It is called when the viewer changes, so one
// viewer's lists never show up for another.
func (s *Store) Reset() {
	s.mu.Lock()
	s.posts = make(map[string]domain.Post)
	s.authors = make(map[string]domain.Author)
	s.lists = nil
	s.listsLoaded = false
	s.mu.Unlock()
	s.publish(Change{Kind: KindReset})
}
