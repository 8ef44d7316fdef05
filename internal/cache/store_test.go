package cache

import (
	"testing"

	"github.com/blackmichael/blogify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostsAreCopied(t *testing.T) {
	s := New()
	in := domain.Post{ID: "p1", LikedBy: []string{"u1"}}
	s.PutPost(in)

	in.LikedBy[0] = "mutated"
	got, ok := s.Post("p1")
	require.True(t, ok)
	assert.Equal(t, []string{"u1"}, got.LikedBy)

	got.LikedBy = append(got.LikedBy, "u2")
	again, _ := s.Post("p1")
	assert.Equal(t, []string{"u1"}, again.LikedBy)
}

func TestUpdatePostIsVisibleEverywhere(t *testing.T) {
	s := New()
	s.PutPosts(domain.Post{ID: "p1"}, domain.Post{ID: "p2"})

	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	ok := s.UpdatePost("p1", func(p *domain.Post) { p.LikedBy = []string{"u1"} })
	require.True(t, ok)
	assert.False(t, s.UpdatePost("missing", func(*domain.Post) {}))

	p, _ := s.Post("p1")
	assert.True(t, domain.IsLiked(p, "u1"))
	assert.Equal(t, []Change{{Kind: KindPost, ID: "p1"}}, changes)
}

func TestListsLoadedDistinguishesEmpty(t *testing.T) {
	s := New()

	_, loaded := s.Lists()
	assert.False(t, loaded)

	s.SetLists(nil)
	lists, loaded := s.Lists()
	assert.True(t, loaded)
	assert.Empty(t, lists)
}

func TestAddToListIsIdempotent(t *testing.T) {
	s := New()
	s.SetLists([]domain.List{{ID: "l1", Title: "Reading"}})

	var changes int
	s.Subscribe(func(Change) { changes++ })

	require.True(t, s.AddToList("l1", domain.PostRef{ID: "p1"}))
	require.True(t, s.AddToList("l1", domain.PostRef{ID: "p1"}))
	assert.False(t, s.AddToList("missing", domain.PostRef{ID: "p1"}))

	l, ok := s.List("l1")
	require.True(t, ok)
	assert.Len(t, l.Blogs, 1)
	assert.Equal(t, 1, changes)
}

func TestPutAndRemoveList(t *testing.T) {
	s := New()
	s.SetLists([]domain.List{{ID: "l1", Title: "Reading"}})

	s.PutList(domain.List{ID: "l2", Title: "Later"})
	s.PutList(domain.List{ID: "l1", Title: "Renamed"})

	lists, _ := s.Lists()
	require.Len(t, lists, 2)
	assert.Equal(t, "Renamed", lists[0].Title)
	assert.Equal(t, "Later", lists[1].Title)

	s.RemoveList("l1")
	lists, _ = s.Lists()
	require.Len(t, lists, 1)
	assert.Equal(t, "l2", lists[0].ID)
}

func TestRemovePostDropsMembership(t *testing.T) {
	s := New()
	s.PutPost(domain.Post{ID: "p1"})
	s.SetLists([]domain.List{{ID: "l1", Blogs: []domain.PostRef{{ID: "p1"}, {ID: "p2"}}}})

	s.RemovePost("p1")

	_, ok := s.Post("p1")
	assert.False(t, ok)
	l, _ := s.List("l1")
	assert.Equal(t, []domain.PostRef{{ID: "p2"}}, l.Blogs)
}

func TestReset(t *testing.T) {
	s := New()
	s.PutPost(domain.Post{ID: "p1"})
	s.PutAuthor(domain.Author{ID: "a1"})
	s.SetLists([]domain.List{{ID: "l1"}})

	var last Change
	s.Subscribe(func(c Change) { last = c })
	s.Reset()

	_, ok := s.Post("p1")
	assert.False(t, ok)
	_, ok = s.Author("a1")
	assert.False(t, ok)
	_, loaded := s.Lists()
	assert.False(t, loaded)
	assert.Equal(t, KindReset, last.Kind)
}

func TestUnsubscribe(t *testing.T) {
	s := New()
	calls := 0
	stop := s.Subscribe(func(Change) { calls++ })

	s.PutAuthor(domain.Author{ID: "a1"})
	stop()
	s.PutAuthor(domain.Author{ID: "a1"})

	assert.Equal(t, 1, calls)
}
