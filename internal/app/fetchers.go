package app

import (
	"context"
	"errors"
	"strings"

	"github.com/blackmichael/blogify/internal/domain"
	"github.com/blackmichael/blogify/internal/fetch"
)

// noListsMessage is the backend's rejection for a viewer without lists.
const noListsMessage = "No lists found."

// Fetchers holds one slot per page-level read. Every accepted load commits
// the entities it carries to the shared cache; a superseded response commits
// nothing.
type Fetchers struct {
	PostDetail    *fetch.Slot[string, domain.PostDetail]
	Lists         *fetch.Slot[string, []domain.List]
	Profile       *fetch.Slot[string, domain.Profile]
	Tag           *fetch.Slot[string, domain.TagFeed]
	Home          *fetch.Slot[string, domain.HomeFeed]
	Notifications *fetch.Slot[string, []domain.Notification]
	Search        *fetch.Slot[domain.SearchQuery, domain.SearchResults]
}

func newFetchers(a *App) *Fetchers {
	opts := []fetch.Option{fetch.WithLogger(a.Logger), fetch.WithRecorder(a.Metrics)}
	return &Fetchers{
		PostDetail:    fetch.NewSlot("post_detail", a.loadPostDetail, opts...).OnCommit(a.commitPostDetail),
		Lists:         fetch.NewSlot("lists", a.loadLists, opts...).OnCommit(a.commitLists),
		Profile:       fetch.NewSlot("profile", a.loadProfile, opts...).OnCommit(a.commitProfile),
		Tag:           fetch.NewSlot("tag", a.loadTag, opts...).OnCommit(a.commitTag),
		Home:          fetch.NewSlot("home", a.loadHome, opts...).OnCommit(a.commitHome),
		Notifications: fetch.NewSlot("notifications", a.loadNotifications, opts...).OnCommit(a.commitNotifications),
		Search:        fetch.NewSlot("search", a.loadSearch, opts...).OnCommit(a.commitSearch),
	}
}

// Reset returns every slot to idle and cancels outstanding loads.
func (f *Fetchers) Reset() {
	f.PostDetail.Reset()
	f.Lists.Reset()
	f.Profile.Reset()
	f.Tag.Reset()
	f.Home.Reset()
	f.Notifications.Reset()
	f.Search.Reset()
}

func (a *App) loadPostDetail(ctx context.Context, postID string) (domain.PostDetail, error) {
	return a.Client.PostDetail(ctx, postID)
}

func (a *App) commitPostDetail(_ string, detail domain.PostDetail) {
	a.Store.PutPost(detail.Blog)
	a.Store.PutPosts(detail.RelatedBlogs...)
}

// loadLists is keyed by viewer id so a changed identity refetches.
func (a *App) loadLists(ctx context.Context, viewerID string) ([]domain.List, error) {
	if viewerID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	lists, err := a.Client.Lists(ctx)
	if err != nil {
		var rejected *domain.RejectedError
		if !errors.As(err, &rejected) || rejected.Message != noListsMessage {
			return nil, err
		}
		lists = []domain.List{}
	}
	return lists, nil
}

func (a *App) commitLists(_ string, lists []domain.List) {
	a.Store.SetLists(lists)
}

func (a *App) loadProfile(ctx context.Context, userID string) (domain.Profile, error) {
	return a.Client.Profile(ctx, userID)
}

func (a *App) commitProfile(_ string, profile domain.Profile) {
	a.Store.PutAuthor(profile.User)
	a.Store.PutPosts(profile.Blogs...)
	a.Store.PutPosts(profile.LikedBlogs...)
	a.Store.PutPosts(profile.SavedBlogs...)
}

func (a *App) loadTag(ctx context.Context, tag string) (domain.TagFeed, error) {
	return a.Client.PostsByTag(ctx, tag)
}

func (a *App) commitTag(_ string, feed domain.TagFeed) {
	a.Store.PutPosts(feed.Blogs...)
}

// loadHome ignores its key; the home slot is keyed by viewer id only so a
// login or logout triggers a reload.
func (a *App) loadHome(ctx context.Context, _ string) (domain.HomeFeed, error) {
	return a.Client.Home(ctx)
}

func (a *App) commitHome(_ string, feed domain.HomeFeed) {
	a.Store.PutPosts(feed.Blogs...)
	a.Store.PutPosts(feed.PopularBlogs...)
	for _, author := range feed.FeaturedAuthors {
		a.Store.PutAuthor(author)
	}
}

// loadNotifications returns the backend history. The commit merges it into
// the inbox.
func (a *App) loadNotifications(ctx context.Context, viewerID string) ([]domain.Notification, error) {
	if viewerID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	return a.Client.Notifications(ctx)
}

func (a *App) commitNotifications(_ string, history []domain.Notification) {
	if added := a.Inbox.Load(a.ctx, history); added > 0 {
		a.Logger.Debug("merged notification history", "added", added)
	}
}

// Notifications loads the viewer's history and returns the merged inbox.
func (a *App) Notifications(ctx context.Context) ([]domain.Notification, error) {
	if _, err := a.Fetchers.Notifications.Load(ctx, a.Session.ViewerID()); err != nil {
		return nil, err
	}
	return a.Inbox.All(), nil
}

func (a *App) loadSearch(ctx context.Context, q domain.SearchQuery) (domain.SearchResults, error) {
	if len([]rune(strings.TrimSpace(q.Term))) < domain.MinSearchTermLength {
		return domain.SearchResults{}, nil
	}
	return a.Client.Search(ctx, q)
}

func (a *App) commitSearch(_ domain.SearchQuery, results domain.SearchResults) {
	a.Store.PutPosts(results.Blogs.Items...)
	for _, author := range results.Authors.Items {
		a.Store.PutAuthor(author)
	}
}

// OpenPost loads a post and, for an authenticated viewer, the viewer's lists,
// then reports the post as cached together with its saved state. A caller
// that arrives while the same post is loading shares that request.
func (a *App) OpenPost(ctx context.Context, postID string) (domain.Post, error) {
	detail, err := a.Fetchers.PostDetail.SetKey(ctx, postID)
	if err != nil {
		return domain.Post{}, err
	}
	if viewer := a.Session.ViewerID(); viewer != "" {
		if _, err := a.Fetchers.Lists.SetKey(ctx, viewer); err != nil {
			a.Logger.Warn("failed to load lists", "error", err)
		}
	}
	if post, ok := a.Store.Post(postID); ok {
		return post, nil
	}
	return detail.Blog, nil
}
