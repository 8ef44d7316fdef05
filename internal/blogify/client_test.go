package blogify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/blackmichael/blogify/internal/blogifytest"
	"github.com/blackmichael/blogify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCookies struct {
	mu      sync.Mutex
	byHost  map[string][]*http.Cookie
	saves   int
	loadErr error
}

func (m *memoryCookies) LoadCookies(_ context.Context, host string) ([]*http.Cookie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.byHost[host], nil
}

func (m *memoryCookies) SaveCookies(_ context.Context, host string, cookies []*http.Cookie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byHost == nil {
		m.byHost = make(map[string][]*http.Cookie)
	}
	m.byHost[host] = cookies
	m.saves++
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBackend(t *testing.T) (*blogifytest.Backend, *Client) {
	t.Helper()
	b := blogifytest.New(t)
	b.AddUser("u1", "Alice", "alice@example.com", "secret")
	b.AddUser("u2", "Bob", "bob@example.com", "secret")

	c, err := NewClient(b.URL(), 5*time.Second, discardLogger())
	require.NoError(t, err)
	return b, c
}

func TestWhoAmIAnonymousAndLoggedIn(t *testing.T) {
	_, c := newBackend(t)
	ctx := context.Background()

	ident, err := c.WhoAmI(ctx)
	require.NoError(t, err)
	assert.Nil(t, ident)

	ident, msg, err := c.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", ident.ID)
	assert.Equal(t, "Logged in successfully", msg)

	ident, err = c.WhoAmI(ctx)
	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.Equal(t, "Alice", ident.Name)

	_, err = c.Logout(ctx)
	require.NoError(t, err)
	ident, err = c.WhoAmI(ctx)
	require.NoError(t, err)
	assert.Nil(t, ident)
}

func TestLoginRejected(t *testing.T) {
	_, c := newBackend(t)

	_, _, err := c.Login(context.Background(), "alice@example.com", "wrong")
	var rejected *domain.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusUnauthorized, rejected.Status)
	assert.Equal(t, "Invalid credentials", domain.UserMessage(err))
}

func TestCookieStoreRestoresSession(t *testing.T) {
	b, c := newBackend(t)
	ctx := context.Background()
	store := &memoryCookies{}

	require.NoError(t, c.UseCookieStore(ctx, store))
	_, _, err := c.Login(ctx, "bob@example.com", "secret")
	require.NoError(t, err)
	assert.Positive(t, store.saves)

	restored, err := NewClient(b.URL(), 5*time.Second, discardLogger())
	require.NoError(t, err)
	require.NoError(t, restored.UseCookieStore(ctx, store))

	ident, err := restored.WhoAmI(ctx)
	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.Equal(t, "u2", ident.ID)
}

func TestCookieStoreLoadError(t *testing.T) {
	_, c := newBackend(t)
	err := c.UseCookieStore(context.Background(), &memoryCookies{loadErr: errors.New("disk gone")})
	assert.ErrorContains(t, err, "disk gone")
}

func TestLikeAndComments(t *testing.T) {
	b, c := newBackend(t)
	ctx := context.Background()
	post := b.AddPost(domain.Post{Title: "Hello", PublishedBy: "u1"})

	_, _, err := c.Login(ctx, "bob@example.com", "secret")
	require.NoError(t, err)

	liked, msg, err := c.ToggleLike(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blog liked", msg)
	assert.True(t, domain.IsLiked(liked, "u2"))

	comments, _, err := c.AddComment(ctx, post.ID, "First")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "First", comments[0].Text)

	comments, _, err = c.ReplyToComment(ctx, post.ID, comments[0].ID, "Second")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.Len(t, comments[0].Replies, 1)
	assert.Equal(t, "Second", comments[0].Replies[0].Text)

	detail, err := c.PostDetail(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, detail.Blog.ID)
	assert.Equal(t, 2, domain.CommentCount(detail.Blog))
}

func TestListsMultipart(t *testing.T) {
	b, c := newBackend(t)
	ctx := context.Background()
	post := b.AddPost(domain.Post{Title: "Hello", PublishedBy: "u1"})

	_, _, err := c.Login(ctx, "bob@example.com", "secret")
	require.NoError(t, err)

	_, err = c.Lists(ctx)
	var rejected *domain.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "No lists found.", rejected.Message)

	l, _, err := c.CreateList(ctx, domain.ListInput{
		Title:       "Favorites",
		Description: "best of",
		Photo:       []byte("\x89PNG"),
		PhotoName:   "cover.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "Favorites", l.Title)
	assert.Equal(t, "/uploads/cover.png", l.PhotoURL)

	_, err = c.AddToList(ctx, l.ID, post)
	require.NoError(t, err)
	_, err = c.AddToList(ctx, l.ID, post)
	require.NoError(t, err)

	stored, ok := b.List(l.ID)
	require.True(t, ok)
	assert.Len(t, stored.Blogs, 1)

	updated, _, err := c.UpdateList(ctx, l.ID, domain.ListInput{Title: "Top", Description: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Top", updated.Title)

	_, err = c.DeleteList(ctx, l.ID)
	require.NoError(t, err)
	_, ok = b.List(l.ID)
	assert.False(t, ok)
}

func TestSearchPages(t *testing.T) {
	b, c := newBackend(t)
	for _, title := range []string{"Go one", "Go two", "Go three"} {
		b.AddPost(domain.Post{Title: title, PublishedBy: "u1"})
	}

	res, err := c.Search(context.Background(), domain.SearchQuery{Term: "go", BlogPage: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Blogs.Total)
	assert.Len(t, res.Blogs.Items, 1)
	assert.Equal(t, 2, res.Blogs.TotalPages(2))
}

func TestRejectedStatusWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second, discardLogger())
	require.NoError(t, err)

	_, err = c.Home(context.Background())
	var rejected *domain.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusInternalServerError, rejected.Status)
	assert.Equal(t, domain.FallbackMessage, domain.UserMessage(err))
}

func TestMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": tru`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second, discardLogger())
	require.NoError(t, err)

	_, err = c.Notifications(context.Background())
	var transport *domain.TransportError
	require.ErrorAs(t, err, &transport)
	assert.Equal(t, domain.FallbackMessage, domain.UserMessage(err))
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, time.Second, discardLogger())
	require.NoError(t, err)

	_, err = c.WhoAmI(context.Background())
	var transport *domain.TransportError
	assert.ErrorAs(t, err, &transport)
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"success": true, "blogs": [], "popularTags": []}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second, discardLogger())
	require.NoError(t, err)

	_, err = c.PostsByTag(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
}

func TestUpdateProfileMultipart(t *testing.T) {
	b, c := newBackend(t)
	ctx := context.Background()

	_, _, err := c.UpdateProfile(ctx, domain.ProfileInput{Name: "Robert"})
	var rejected *domain.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusUnauthorized, rejected.Status)

	_, _, err = c.Login(ctx, "bob@example.com", "secret")
	require.NoError(t, err)

	author, msg, err := c.UpdateProfile(ctx, domain.ProfileInput{
		Name:      "Robert",
		Email:     "bob@example.com",
		Bio:       "Writes about Go",
		Photo:     []byte("\x89PNG"),
		PhotoName: "me.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "Profile updated successfully", msg)
	assert.Equal(t, "u2", author.ID)
	assert.Equal(t, "Robert", author.Name)
	assert.Equal(t, "Writes about Go", author.Bio)
	assert.Equal(t, "/uploads/me.png", author.PhotoURL)
	assert.Equal(t, 1, b.Calls("/users/update-profile"))

	ident, err := c.WhoAmI(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Robert", ident.Name)
}

func TestUpdateProfileWithoutUserInResponse(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			form = r.MultipartForm.Value
		}
		w.Write([]byte(`{"success": true, "message": "Saved"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second, discardLogger())
	require.NoError(t, err)

	author, msg, err := c.UpdateProfile(context.Background(), domain.ProfileInput{Name: "Ann", Bio: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Saved", msg)
	assert.Empty(t, author.ID)
	assert.Equal(t, []string{"Ann"}, form["name"])
	assert.Equal(t, []string{"hi"}, form["bio"])
}
