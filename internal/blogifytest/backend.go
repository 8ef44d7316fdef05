// Package blogifytest provides an in-memory Blogify backend for tests. It
// speaks the same REST and realtime contract as the real service and lets a
// test hold, fail and count calls per route.
package blogifytest

import (
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/blackmichael/blogify/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const sessionCookie = "token"

type user struct {
	identity  domain.Identity
	email     string
	password  string
	bio       string
	followers []string
}

type list struct {
	list  domain.List
	owner string
}

type failure struct {
	status  int
	message string
}

// Backend is a fake Blogify server backed by an echo application.
type Backend struct {
	Echo   *echo.Echo
	Server *httptest.Server

	mu            sync.Mutex
	seq           int
	users         map[string]*user
	userOrder     []string
	sessions      map[string]string
	posts         map[string]*domain.Post
	postOrder     []string
	lists         map[string]*list
	listOrder     []string
	notifications map[string][]domain.Notification
	calls         map[string]int
	failures      map[string][]failure
	gates         map[string][]*Gate
	sockets       map[*websocket.Conn]string
	realtimeUsers []string
	clock         func() time.Time

	upgrader websocket.Upgrader
}

// New starts a fake backend that is shut down when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		users:         make(map[string]*user),
		sessions:      make(map[string]string),
		posts:         make(map[string]*domain.Post),
		lists:         make(map[string]*list),
		notifications: make(map[string][]domain.Notification),
		calls:         make(map[string]int),
		failures:      make(map[string][]failure),
		gates:         make(map[string][]*Gate),
		sockets:       make(map[*websocket.Conn]string),
		clock:         time.Now,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(b.control)
	b.routes(e)
	b.Echo = e

	b.Server = httptest.NewServer(e)
	t.Cleanup(func() {
		b.DropConnections()
		b.Server.Close()
	})
	return b
}

// URL returns the base URL of the fake backend.
func (b *Backend) URL() string {
	return b.Server.URL
}

// RealtimeURL returns the WebSocket URL of the realtime endpoint.
func (b *Backend) RealtimeURL() string {
	return "ws" + b.Server.URL[len("http"):] + "/realtime"
}

func (b *Backend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s%d", prefix, b.seq)
}

// AddUser registers a user that can log in with email and password.
func (b *Backend) AddUser(id, name, email, password string) domain.Identity {
	b.mu.Lock()
	defer b.mu.Unlock()

	ident := domain.Identity{ID: id, Name: name, Role: "Author"}
	b.users[id] = &user{identity: ident, email: email, password: password}
	b.userOrder = append(b.userOrder, id)
	return ident
}

// AddPost stores a post. An empty ID is assigned.
func (b *Backend) AddPost(p domain.Post) domain.Post {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p.ID == "" {
		p.ID = b.nextID("post")
	}
	if p.LikedBy == nil {
		p.LikedBy = []string{}
	}
	if p.Comments == nil {
		p.Comments = []domain.Comment{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = b.clock()
	}
	if u, ok := b.users[p.PublishedBy]; ok && p.PublishedByName == "" {
		p.PublishedByName = u.identity.Name
	}
	stored := p.Clone()
	b.posts[p.ID] = &stored
	b.postOrder = append(b.postOrder, p.ID)
	return p.Clone()
}

// AddList stores a list owned by ownerID. An empty ID is assigned.
func (b *Backend) AddList(ownerID string, l domain.List) domain.List {
	b.mu.Lock()
	defer b.mu.Unlock()

	if l.ID == "" {
		l.ID = b.nextID("list")
	}
	if l.Blogs == nil {
		l.Blogs = []domain.PostRef{}
	}
	b.lists[l.ID] = &list{list: l.Clone(), owner: ownerID}
	b.listOrder = append(b.listOrder, l.ID)
	return l.Clone()
}

// Post returns the stored post.
func (b *Backend) Post(id string) (domain.Post, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.posts[id]
	if !ok {
		return domain.Post{}, false
	}
	return p.Clone(), true
}

// List returns the stored list.
func (b *Backend) List(id string) (domain.List, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.lists[id]
	if !ok {
		return domain.List{}, false
	}
	return l.list.Clone(), true
}

// Followers returns the follower ids of a user.
func (b *Backend) Followers(userID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[userID]
	if !ok {
		return nil
	}
	return append([]string(nil), u.followers...)
}

// AddNotification appends to a user's notification history without pushing.
func (b *Backend) AddNotification(userID string, n domain.Notification) domain.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recordNotificationLocked(userID, n)
}

func (b *Backend) recordNotificationLocked(userID string, n domain.Notification) domain.Notification {
	if n.ID == "" {
		n.ID = b.nextID("notif")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = b.clock()
	}
	b.notifications[userID] = append(b.notifications[userID], n)
	return n
}

// Calls returns how many requests reached route. Routes are echo paths such
// as "/blogs/like-blog" or "/blogs/blog-detail/:id".
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// FailNext makes the next request on route fail with status and message.
func (b *Backend) FailNext(route string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = append(b.failures[route], failure{status: status, message: message})
}

// Gate holds matching requests until released.
type Gate struct {
	match   func(c echo.Context) bool
	arrived chan struct{}
	release chan struct{}
	once    sync.Once
}

// Arrived receives once per request that reached the gate.
func (g *Gate) Arrived() <-chan struct{} {
	return g.arrived
}

// Release lets every held and future matching request through.
func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}

// Hold installs a gate on route for every request.
func (b *Backend) Hold(route string) *Gate {
	return b.HoldWhere(route, nil)
}

// HoldWhere installs a gate on route for requests accepted by match.
func (b *Backend) HoldWhere(route string, match func(c echo.Context) bool) *Gate {
	g := &Gate{
		match:   match,
		arrived: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
	b.mu.Lock()
	b.gates[route] = append(b.gates[route], g)
	b.mu.Unlock()
	return g
}

// control counts calls, applies queued failures and waits on gates.
func (b *Backend) control(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		route := c.Path()

		b.mu.Lock()
		b.calls[route]++
		var fail *failure
		if queued := b.failures[route]; len(queued) > 0 {
			f := queued[0]
			fail = &f
			b.failures[route] = queued[1:]
		}
		gates := append([]*Gate(nil), b.gates[route]...)
		b.mu.Unlock()

		for _, g := range gates {
			if g.match != nil && !g.match(c) {
				continue
			}
			select {
			case g.arrived <- struct{}{}:
			default:
			}
			select {
			case <-g.release:
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}

		if fail != nil {
			return c.JSON(fail.status, echo.Map{"success": false, "message": fail.message})
		}
		return next(c)
	}
}
