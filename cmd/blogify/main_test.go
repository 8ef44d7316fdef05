package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/blackmichael/blogify/internal/blogifytest"
	"github.com/blackmichael/blogify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBackend(t *testing.T) (*blogifytest.Backend, domain.Post) {
	t.Helper()
	b := blogifytest.New(t)
	b.AddUser("u1", "Alice", "alice@example.com", "secret")
	b.AddUser("u2", "Bob", "bob@example.com", "secret")
	post := b.AddPost(domain.Post{
		Title:       "Channels in practice",
		Content:     "<p>Unbuffered <b>channels</b> synchronize.</p>",
		PublishedBy: "u1",
		Tags:        []string{"go"},
	})

	t.Setenv("BLOGIFY_CONFIG", "")
	t.Setenv("BLOGIFY_API_URL", b.URL())
	t.Setenv("BLOGIFY_REALTIME_URL", "")
	t.Setenv("BLOGIFY_STATE_DB", filepath.Join(t.TempDir(), "state.db"))
	t.Setenv("BLOGIFY_LOG_LEVEL", "error")
	t.Setenv("BLOGIFY_PASSWORD", "")
	return b, post
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoginPersistsSession(t *testing.T) {
	setupBackend(t)

	out, err := execute(t, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "not logged in\n", out)

	out, err = execute(t, "login", "--email", "bob@example.com", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in successfully")

	out, err = execute(t, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Bob (u2)\n", out)

	out, err = execute(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	out, err = execute(t, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "not logged in\n", out)
}

func TestLoginRejected(t *testing.T) {
	setupBackend(t)

	_, err := execute(t, "login", "--email", "bob@example.com", "--password", "nope")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())

	_, err = execute(t, "login", "--email", "bob@example.com")
	assert.Error(t, err)
}

func TestInteractionsRequireLogin(t *testing.T) {
	b, post := setupBackend(t)

	_, err := execute(t, "like", post.ID)
	require.Error(t, err)
	assert.Equal(t, domain.ErrNotAuthenticated.Error(), err.Error())
	assert.Zero(t, b.Calls("/blogs/like-blog"))
}

func TestLikeCommentAndShowPost(t *testing.T) {
	b, post := setupBackend(t)
	_, err := execute(t, "login", "--email", "bob@example.com", "--password", "secret")
	require.NoError(t, err)

	out, err := execute(t, "like", post.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "1 likes")

	_, err = execute(t, "comment", post.ID, "Nice post")
	require.NoError(t, err)

	out, err = execute(t, "post", post.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Channels in practice")
	assert.Contains(t, out, "1 likes (liked)")
	assert.Contains(t, out, "Unbuffered channels synchronize.")
	assert.Contains(t, out, "Bob: Nice post")

	stored, ok := b.Post(post.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"u2"}, stored.LikedBy)
}

func TestSaveNeedsList(t *testing.T) {
	b, post := setupBackend(t)
	reading := b.AddList("u2", domain.List{Title: "Reading"})
	_, err := execute(t, "login", "--email", "bob@example.com", "--password", "secret")
	require.NoError(t, err)

	out, err := execute(t, "save", post.ID)
	require.Error(t, err)
	assert.Equal(t, domain.ErrMissingTarget.Error(), err.Error())
	assert.Contains(t, out, "Reading")

	out, err = execute(t, "save", post.ID, "--list", reading.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "saved in Reading")

	out, err = execute(t, "post", post.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "saved in Reading")
}

func TestListLifecycle(t *testing.T) {
	setupBackend(t)
	_, err := execute(t, "login", "--email", "bob@example.com", "--password", "secret")
	require.NoError(t, err)

	out, err := execute(t, "lists")
	require.NoError(t, err)
	assert.Contains(t, out, "(none)")

	_, err = execute(t, "list", "create", "--description", "untitled")
	require.Error(t, err)
	assert.Equal(t, domain.ErrEmptyTitle.Error(), err.Error())

	_, err = execute(t, "list", "create", "--title", "Weekend", "--description", "long reads")
	require.NoError(t, err)

	out, err = execute(t, "lists")
	require.NoError(t, err)
	assert.Contains(t, out, "Weekend (0 posts)")
	assert.Contains(t, out, "long reads")
}

func TestSearch(t *testing.T) {
	b, _ := setupBackend(t)

	out, err := execute(t, "search", "c")
	require.NoError(t, err)
	assert.Contains(t, out, "no results")
	assert.Zero(t, b.Calls("/search"))

	out, err = execute(t, "search", "channels")
	require.NoError(t, err)
	assert.Contains(t, out, "Posts: 1 results, page 1 of 1")
	assert.Contains(t, out, "Channels in practice")
}

func TestNotifications(t *testing.T) {
	b, _ := setupBackend(t)
	b.AddNotification("u1", domain.Notification{
		Type:    domain.NotificationFollowed,
		Title:   "New follower",
		Message: "Bob started following you",
	})

	_, err := execute(t, "notifications")
	require.Error(t, err)

	_, err = execute(t, "login", "--email", "alice@example.com", "--password", "secret")
	require.NoError(t, err)

	out, err := execute(t, "notifications", "--unread", "--mark-read")
	require.NoError(t, err)
	assert.Contains(t, out, "New follower: Bob started following you")

	out, err = execute(t, "notifications", "--unread")
	require.NoError(t, err)
	assert.Equal(t, "no notifications\n", out)
}

func TestEditProfile(t *testing.T) {
	setupBackend(t)

	_, err := execute(t, "edit-profile", "--bio", "Writes about Go")
	require.Error(t, err)
	assert.Equal(t, domain.ErrNotAuthenticated.Error(), err.Error())

	_, err = execute(t, "login", "--email", "bob@example.com", "--password", "secret")
	require.NoError(t, err)

	_, err = execute(t, "edit-profile", "--name", " ")
	require.Error(t, err)
	assert.Equal(t, domain.ErrEmptyName.Error(), err.Error())

	out, err := execute(t, "edit-profile", "--bio", "Writes about Go")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile updated successfully")
	assert.Contains(t, out, "Bob")

	out, err = execute(t, "profile", "u2")
	require.NoError(t, err)
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "Writes about Go")
}
