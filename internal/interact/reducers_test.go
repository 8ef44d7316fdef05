package interact

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blackmichael/blogify/internal/blogify"
	"github.com/blackmichael/blogify/internal/blogifytest"
	"github.com/blackmichael/blogify/internal/cache"
	"github.com/blackmichael/blogify/internal/domain"
	"github.com/blackmichael/blogify/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (n *recordingNotifier) Notify(notice domain.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) all() []domain.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notice(nil), n.notices...)
}

type testEnv struct {
	backend  *blogifytest.Backend
	client   *blogify.Client
	store    *cache.Store
	notices  *recordingNotifier
	reducers *Reducers
	post     domain.Post
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEnv starts a backend with Alice (u1, logged in unless anonymous) and
// Bob (u2), and a post by Bob cached locally.
func newTestEnv(t *testing.T, anonymous bool) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := discardLogger()

	b := blogifytest.New(t)
	b.AddUser("u1", "Alice", "alice@example.com", "secret")
	b.AddUser("u2", "Bob", "bob@example.com", "secret")
	post := b.AddPost(domain.Post{Title: "Go generics", PublishedBy: "u2", Tags: []string{"go"}})

	client, err := blogify.NewClient(b.URL(), 5*time.Second, logger)
	require.NoError(t, err)
	if !anonymous {
		_, _, err := client.Login(ctx, "alice@example.com", "secret")
		require.NoError(t, err)
	}

	sess := session.NewProvider(client, logger)
	sess.Resolve(ctx)

	store := cache.New()
	detail, err := client.PostDetail(ctx, post.ID)
	require.NoError(t, err)
	store.PutPost(detail.Blog)

	notices := &recordingNotifier{}
	return &testEnv{
		backend:  b,
		client:   client,
		store:    store,
		notices:  notices,
		reducers: NewReducers(client, sess, store, notices, nil, logger),
		post:     post,
	}
}

func (e *testEnv) loadLists(t *testing.T) {
	t.Helper()
	lists, err := e.client.Lists(context.Background())
	require.NoError(t, err)
	e.store.SetLists(lists)
}

// bodyContains matches requests whose body contains s, leaving the body
// readable for the handler.
func bodyContains(s string) func(echo.Context) bool {
	return func(c echo.Context) bool {
		data, _ := io.ReadAll(c.Request().Body)
		c.Request().Body = io.NopCloser(bytes.NewReader(data))
		return strings.Contains(string(data), s)
	}
}

func TestLikeCommitsServerState(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	res, err := env.reducers.Like(ctx, env.post.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, 1, res.Likes)

	cached, ok := env.store.Post(env.post.ID)
	require.True(t, ok)
	assert.True(t, domain.IsLiked(cached, "u1"))
	assert.Equal(t, []domain.Notice{{Severity: domain.SeveritySuccess, Message: "Blog liked"}}, env.notices.all())

	res, err = env.reducers.Like(ctx, env.post.ID)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Equal(t, 0, res.Likes)

	stored, _ := env.backend.Post(env.post.ID)
	assert.Empty(t, stored.LikedBy)
	assert.Len(t, env.notices.all(), 2)
}

func TestLikeFailureLeavesCacheUntouched(t *testing.T) {
	env := newTestEnv(t, false)
	env.backend.FailNext("/blogs/like-blog", http.StatusInternalServerError, "Database unavailable")

	_, err := env.reducers.Like(context.Background(), env.post.ID)
	require.Error(t, err)

	cached, _ := env.store.Post(env.post.ID)
	assert.False(t, domain.IsLiked(cached, "u1"))
	assert.Equal(t, 0, domain.LikeCount(cached))
	assert.Equal(t, []domain.Notice{{Severity: domain.SeverityError, Message: "Database unavailable"}}, env.notices.all())
}

func TestTransportFailureUsesFallbackMessage(t *testing.T) {
	env := newTestEnv(t, false)
	env.backend.Server.Close()

	_, err := env.reducers.Like(context.Background(), env.post.ID)
	var transport *domain.TransportError
	require.ErrorAs(t, err, &transport)
	assert.Equal(t, domain.FallbackMessage, env.notices.all()[0].Message)
}

func TestAnonymousViewerIsRejectedWithoutCall(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	_, err := env.reducers.Like(ctx, env.post.ID)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	_, err = env.reducers.Follow(ctx, "u2")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	_, err = env.reducers.Save(ctx, env.post.ID, "l1")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	_, err = env.reducers.AddComment(ctx, env.post.ID, "hi")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	assert.Zero(t, env.backend.Calls("/blogs/like-blog"))
	assert.Zero(t, env.backend.Calls("/users/follow"))
	assert.Zero(t, env.backend.Calls("/lists/add-blog"))
	assert.Zero(t, env.backend.Calls("/blogs/add-comment"))

	notices := env.notices.all()
	require.Len(t, notices, 4)
	for _, n := range notices {
		assert.Equal(t, domain.SeverityError, n.Severity)
		assert.Equal(t, domain.ErrNotAuthenticated.Error(), n.Message)
	}
}

func TestFollowWhileInFlightIsNoOp(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	gate := env.backend.Hold("/users/follow")

	done := make(chan error, 1)
	go func() {
		_, err := env.reducers.Follow(ctx, "u2")
		done <- err
	}()
	<-gate.Arrived()

	assert.True(t, env.reducers.Guard().InFlight(Key(KindFollow, "u2")))
	_, err := env.reducers.Follow(ctx, "u2")
	assert.ErrorIs(t, err, domain.ErrInFlight)
	assert.Empty(t, env.notices.all())

	gate.Release()
	require.NoError(t, <-done)

	assert.Equal(t, 1, env.backend.Calls("/users/follow"))
	assert.Equal(t, []string{"u1"}, env.backend.Followers("u2"))
	assert.Len(t, env.notices.all(), 1)
	assert.False(t, env.reducers.Guard().InFlight(Key(KindFollow, "u2")))

	author, ok := env.store.Author("u2")
	require.True(t, ok)
	assert.True(t, domain.IsFollowing(author, "u1"))
}

func TestLikeOnOnePostDoesNotBlockAnother(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	other := env.backend.AddPost(domain.Post{Title: "Other", PublishedBy: "u2"})

	gate := env.backend.HoldWhere("/blogs/like-blog", bodyContains(env.post.ID))
	done := make(chan error, 1)
	go func() {
		_, err := env.reducers.Like(ctx, env.post.ID)
		done <- err
	}()
	<-gate.Arrived()

	res, err := env.reducers.Like(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)

	gate.Release()
	require.NoError(t, <-done)
	assert.Equal(t, 2, env.backend.Calls("/blogs/like-blog"))
}

func TestDetectSavedFirstMatchWins(t *testing.T) {
	env := newTestEnv(t, false)
	ref := env.post.Ref()
	env.backend.AddList("u1", domain.List{ID: "l1", Title: "Later"})
	env.backend.AddList("u1", domain.List{ID: "l2", Title: "Favorites", Blogs: []domain.PostRef{ref}})
	env.backend.AddList("u1", domain.List{ID: "l3", Title: "Also", Blogs: []domain.PostRef{ref}})
	env.loadLists(t)

	assert.Equal(t, SaveState{Saved: true, ListID: "l2", ListName: "Favorites"}, env.reducers.DetectSaved(env.post.ID))
	assert.Equal(t, SaveState{}, env.reducers.DetectSaved("unknown"))
}

func TestSaveUsesDetectedListAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	env.backend.AddList("u1", domain.List{ID: "l1", Title: "Favorites", Blogs: []domain.PostRef{env.post.Ref()}})
	env.loadLists(t)

	state, err := env.reducers.Save(ctx, env.post.ID, "")
	require.NoError(t, err)
	assert.Equal(t, SaveState{Saved: true, ListID: "l1", ListName: "Favorites"}, state)

	stored, _ := env.backend.List("l1")
	assert.Len(t, stored.Blogs, 1)
	cached, _ := env.store.List("l1")
	assert.Len(t, cached.Blogs, 1)
	assert.Equal(t, 1, env.backend.Calls("/lists/add-blog"))
}

func TestSaveWithoutTarget(t *testing.T) {
	env := newTestEnv(t, false)
	env.backend.AddList("u1", domain.List{ID: "l1", Title: "Favorites"})
	env.loadLists(t)

	_, err := env.reducers.Save(context.Background(), env.post.ID, "")
	assert.ErrorIs(t, err, domain.ErrMissingTarget)
	assert.Zero(t, env.backend.Calls("/lists/add-blog"))
	assert.Equal(t, domain.ErrMissingTarget.Error(), env.notices.all()[0].Message)

	state, err := env.reducers.Save(context.Background(), env.post.ID, "l1")
	require.NoError(t, err)
	assert.True(t, state.Saved)
	assert.Equal(t, state, env.reducers.DetectSaved(env.post.ID))
}

func TestCreateListAppendsWithoutRefetch(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	env.backend.AddList("u1", domain.List{ID: "l1", Title: "Favorites"})
	env.loadLists(t)

	_, err := env.reducers.CreateList(ctx, domain.ListInput{Title: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyTitle)
	_, err = env.reducers.CreateList(ctx, domain.ListInput{Title: "Long", Description: strings.Repeat("x", 501)})
	assert.ErrorIs(t, err, domain.ErrDescriptionLong)
	assert.Zero(t, env.backend.Calls("/lists/create"))

	created, err := env.reducers.CreateList(ctx, domain.ListInput{Title: " Weekend ", Photo: []byte("png"), PhotoName: "cover.png"})
	require.NoError(t, err)
	assert.Equal(t, "Weekend", created.Title)
	assert.Equal(t, "/uploads/cover.png", created.PhotoURL)

	lists, _ := env.store.Lists()
	require.Len(t, lists, 2)
	assert.Equal(t, created.ID, lists[1].ID)
	assert.Equal(t, 1, env.backend.Calls("/lists/all-lists"))

	_, err = env.reducers.Save(ctx, env.post.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, env.reducers.DetectSaved(env.post.ID).ListID)
}

func TestUpdateAndDeleteList(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	env.backend.AddList("u1", domain.List{ID: "l1", Title: "Favorites", Blogs: []domain.PostRef{env.post.Ref()}})
	env.loadLists(t)

	updated, err := env.reducers.UpdateList(ctx, "l1", domain.ListInput{Title: "Best", Description: "top picks"})
	require.NoError(t, err)
	assert.Equal(t, "Best", updated.Title)

	cached, _ := env.store.List("l1")
	assert.Equal(t, "top picks", cached.Description)
	assert.Len(t, cached.Blogs, 1)

	require.NoError(t, env.reducers.DeleteList(ctx, "l1"))
	_, ok := env.store.List("l1")
	assert.False(t, ok)
	_, ok = env.backend.List("l1")
	assert.False(t, ok)
}

func TestCommentAndReplyRoundTrip(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, err := env.reducers.AddComment(ctx, env.post.ID, "  ")
	assert.ErrorIs(t, err, domain.ErrEmptyText)

	comments, err := env.reducers.AddComment(ctx, env.post.ID, "Nice post")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	commentID := comments[0].ID

	_, err = env.reducers.AddReply(ctx, env.post.ID, "", "Thanks")
	assert.ErrorIs(t, err, domain.ErrMissingComment)

	comments, err = env.reducers.AddReply(ctx, env.post.ID, commentID, "Thanks")
	require.NoError(t, err)

	detail, err := env.client.PostDetail(ctx, env.post.ID)
	require.NoError(t, err)
	require.Len(t, detail.Blog.Comments, 1)
	top := detail.Blog.Comments[0]
	assert.Equal(t, "Nice post", top.Text)
	require.Len(t, top.Replies, 1)
	assert.Equal(t, "Thanks", top.Replies[0].Text)
	assert.Empty(t, top.Replies[0].Replies)

	cached, _ := env.store.Post(env.post.ID)
	assert.Equal(t, comments, cached.Comments)
	assert.Equal(t, 2, domain.CommentCount(cached))
}

func TestDeletePost(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	// Bob's post cannot be deleted by Alice.
	err := env.reducers.DeletePost(ctx, env.post.ID)
	var rejected *domain.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusForbidden, rejected.Status)
	_, ok := env.store.Post(env.post.ID)
	assert.True(t, ok)

	own := env.backend.AddPost(domain.Post{Title: "Mine", PublishedBy: "u1"})
	env.store.PutPost(own)
	require.NoError(t, env.reducers.DeletePost(ctx, own.ID))
	_, ok = env.store.Post(own.ID)
	assert.False(t, ok)
}

func TestGuard(t *testing.T) {
	g := NewGuard()
	assert.True(t, g.TryAcquire("like:p1"))
	assert.False(t, g.TryAcquire("like:p1"))
	assert.True(t, g.TryAcquire("like:p2"))
	g.Release("like:p1")
	assert.True(t, g.TryAcquire("like:p1"))
}

func TestCommentAndReplyShareOneGuard(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	comments, err := env.reducers.AddComment(ctx, env.post.ID, "first")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	firstID := comments[0].ID

	gate := env.backend.Hold("/blogs/add-comment")
	done := make(chan error, 1)
	go func() {
		_, err := env.reducers.AddComment(ctx, env.post.ID, "second")
		done <- err
	}()
	<-gate.Arrived()

	assert.True(t, env.reducers.Guard().InFlight(CommentsKey(env.post.ID)))
	_, err = env.reducers.AddReply(ctx, env.post.ID, firstID, "a reply")
	assert.ErrorIs(t, err, domain.ErrInFlight)
	assert.Zero(t, env.backend.Calls("/blogs/reply-to-comment"))

	gate.Release()
	require.NoError(t, <-done)

	_, err = env.reducers.AddReply(ctx, env.post.ID, firstID, "a reply")
	require.NoError(t, err)

	cached, _ := env.store.Post(env.post.ID)
	require.Len(t, cached.Comments, 2)
	assert.Equal(t, "second", cached.Comments[1].Text)
	require.Len(t, cached.Comments[0].Replies, 1)
	assert.Equal(t, "a reply", cached.Comments[0].Replies[0].Text)
	assert.Len(t, env.notices.all(), 3)
}

func TestCommentsOnDifferentPostsDoNotBlock(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	other := env.backend.AddPost(domain.Post{Title: "Other", PublishedBy: "u2"})

	gate := env.backend.HoldWhere("/blogs/add-comment", bodyContains(env.post.ID))
	done := make(chan error, 1)
	go func() {
		_, err := env.reducers.AddComment(ctx, env.post.ID, "held")
		done <- err
	}()
	<-gate.Arrived()

	_, err := env.reducers.AddComment(ctx, other.ID, "free")
	require.NoError(t, err)

	gate.Release()
	require.NoError(t, <-done)
}

func TestLikeLeavesCommentTreeAlone(t *testing.T) {
	env := newTestEnv(t, false)
	local := []domain.Comment{{ID: "c-local", Text: "already confirmed", Replies: []domain.Comment{}}}
	env.store.UpdatePost(env.post.ID, func(p *domain.Post) { p.Comments = local })

	res, err := env.reducers.Like(context.Background(), env.post.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)

	cached, _ := env.store.Post(env.post.ID)
	assert.Equal(t, local, cached.Comments)
	assert.Equal(t, []string{"u1"}, cached.LikedBy)
}

func TestUpdateProfileCommitsAuthor(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	env.store.PutAuthor(domain.Author{ID: "u1", Name: "Alice"})

	_, err := env.reducers.UpdateProfile(ctx, domain.ProfileInput{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrEmptyName)
	_, err = env.reducers.UpdateProfile(ctx, domain.ProfileInput{Name: "Alice", Email: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	_, err = env.reducers.UpdateProfile(ctx, domain.ProfileInput{Name: "Alice", Bio: strings.Repeat("x", 501)})
	assert.ErrorIs(t, err, domain.ErrBioLong)
	assert.Zero(t, env.backend.Calls("/users/update-profile"))
	assert.Len(t, env.notices.all(), 3)

	author, err := env.reducers.UpdateProfile(ctx, domain.ProfileInput{
		Name:      " Alice Liddell ",
		Email:     "alice@wonderland.example",
		Bio:       "Curiouser and curiouser",
		Photo:     []byte("\x89PNG"),
		PhotoName: "alice.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", author.Name)
	assert.Equal(t, "/uploads/alice.png", author.PhotoURL)

	cached, ok := env.store.Author("u1")
	require.True(t, ok)
	assert.Equal(t, "Alice Liddell", cached.Name)
	assert.Equal(t, "Curiouser and curiouser", cached.Bio)

	notices := env.notices.all()
	require.Len(t, notices, 4)
	assert.Equal(t, domain.Notice{Severity: domain.SeveritySuccess, Message: "Profile updated successfully"}, notices[3])

	// The new email logs in.
	_, _, err = env.client.Login(ctx, "alice@wonderland.example", "secret")
	require.NoError(t, err)
}

func TestUpdateProfileRejected(t *testing.T) {
	env := newTestEnv(t, false)
	env.store.PutAuthor(domain.Author{ID: "u1", Name: "Alice"})

	_, err := env.reducers.UpdateProfile(context.Background(), domain.ProfileInput{Name: "Alice", Email: "bob@example.com"})
	var rejected *domain.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusConflict, rejected.Status)

	cached, _ := env.store.Author("u1")
	assert.Equal(t, "Alice", cached.Name)
	assert.Equal(t, []domain.Notice{{Severity: domain.SeverityError, Message: "Email already in use"}}, env.notices.all())
}
