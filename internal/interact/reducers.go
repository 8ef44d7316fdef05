// Package interact implements the mutating interactions: like, follow, save
// to list, list management, comments and replies. Each interaction waits for
// the backend and only then commits the server-returned state to the shared
// cache, so a failed call never changes what the viewer sees.
package interact

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/blackmichael/blogify/internal/cache"
	"github.com/blackmichael/blogify/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Interaction kinds, used for guard keys and metrics labels.
const (
	KindLike       = "like"
	KindFollow     = "follow"
	KindSave       = "save"
	KindCreateList = "create-list"
	KindUpdateList = "update-list"
	KindDeleteList = "delete-list"
	KindComment    = "comment"
	KindReply      = "reply"
	KindDeletePost = "delete-post"
	KindProfile    = "update-profile"
)

// Backend is the set of mutating backend calls the reducers issue. Each call
// returns the backend's message alongside its payload.
type Backend interface {
	ToggleLike(ctx context.Context, postID string) (domain.Post, string, error)
	Follow(ctx context.Context, authorID string) (domain.Author, string, error)
	AddToList(ctx context.Context, listID string, post domain.Post) (string, error)
	CreateList(ctx context.Context, in domain.ListInput) (domain.List, string, error)
	UpdateList(ctx context.Context, listID string, in domain.ListInput) (domain.List, string, error)
	DeleteList(ctx context.Context, listID string) (string, error)
	AddComment(ctx context.Context, postID, text string) ([]domain.Comment, string, error)
	ReplyToComment(ctx context.Context, postID, commentID, text string) ([]domain.Comment, string, error)
	DeletePost(ctx context.Context, postID string) (string, error)
	UpdateProfile(ctx context.Context, in domain.ProfileInput) (domain.Author, string, error)
}

// Session supplies the viewer identity.
type Session interface {
	Require() (*domain.Identity, error)
}

// Recorder observes interaction outcomes.
type Recorder interface {
	Interaction(kind, result string)
}

type nopRecorder struct{}

func (nopRecorder) Interaction(string, string) {}

// LikeResult is the committed like state of a post.
type LikeResult struct {
	Post  domain.Post
	Liked bool
	Likes int
}

// FollowResult is the committed follow state of an author.
type FollowResult struct {
	Author    domain.Author
	Following bool
	Followers int
}

// SaveState is the derived "saved" state of a post for the viewer.
type SaveState struct {
	Saved    bool
	ListID   string
	ListName string
}

// Reducers runs interactions against the backend and the shared cache.
type Reducers struct {
	backend  Backend
	session  Session
	store    *cache.Store
	notifier domain.Notifier
	guard    *Guard
	validate *validator.Validate
	recorder Recorder
	logger   *slog.Logger
}

// NewReducers wires the reducers. recorder may be nil.
func NewReducers(
	backend Backend,
	session Session,
	store *cache.Store,
	notifier domain.Notifier,
	recorder Recorder,
	logger *slog.Logger,
) *Reducers {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Reducers{
		backend:  backend,
		session:  session,
		store:    store,
		notifier: notifier,
		guard:    NewGuard(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		recorder: recorder,
		logger:   logger,
	}
}

// Guard exposes the in-flight set so views can disable controls.
func (r *Reducers) Guard() *Guard {
	return r.guard
}

// run checks preconditions, holds the in-flight key for the duration of call
// and publishes exactly one notice for the outcome. A call rejected by the
// guard publishes nothing and returns domain.ErrInFlight.
func (r *Reducers) run(kind, id string, precondition func() error, call func(*domain.Identity) (string, error)) error {
	return r.runKeyed(kind, id, Key(kind, id), precondition, call)
}

// CommentsKey is the guard key shared by every write to a post's comment
// tree. Comments and replies both replace the whole tree, so they serialize.
func CommentsKey(postID string) string {
	return Key(KindComment, postID)
}

func (r *Reducers) runKeyed(kind, id, key string, precondition func() error, call func(*domain.Identity) (string, error)) error {
	ident, err := r.session.Require()
	if err == nil && precondition != nil {
		err = precondition()
	}
	if err != nil {
		r.fail(kind, id, err)
		return err
	}

	if !r.guard.TryAcquire(key) {
		r.recorder.Interaction(kind, "in_flight")
		r.logger.Debug("interaction already in flight", "kind", kind, "id", id)
		return domain.ErrInFlight
	}
	defer r.guard.Release(key)

	msg, err := call(ident)
	if err != nil {
		r.fail(kind, id, err)
		return err
	}

	r.recorder.Interaction(kind, "success")
	r.notifier.Notify(domain.Notice{Severity: domain.SeveritySuccess, Message: msg})
	return nil
}

func (r *Reducers) fail(kind, id string, err error) {
	result := "error"
	if domain.IsPrecondition(err) {
		result = "precondition"
	} else {
		r.logger.Warn("interaction failed", "kind", kind, "id", id, "error", err)
	}
	r.recorder.Interaction(kind, result)
	r.notifier.Notify(domain.Notice{Severity: domain.SeverityError, Message: domain.UserMessage(err)})
}

func orDefault(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}

// Like toggles the viewer's like on a post. The outcome is derived from the
// viewer's membership in the returned likedBy set. Only likedBy is committed;
// the comment tree belongs to AddComment and AddReply.
func (r *Reducers) Like(ctx context.Context, postID string) (LikeResult, error) {
	var res LikeResult
	err := r.run(KindLike, postID, nil, func(ident *domain.Identity) (string, error) {
		post, msg, err := r.backend.ToggleLike(ctx, postID)
		if err != nil {
			return "", err
		}

		committed := r.store.UpdatePost(postID, func(p *domain.Post) {
			p.LikedBy = post.LikedBy
		})
		if !committed {
			r.store.PutPost(post)
		}
		if cached, ok := r.store.Post(postID); ok {
			post = cached
		}

		res = LikeResult{Post: post, Liked: domain.IsLiked(post, ident.ID), Likes: domain.LikeCount(post)}
		if res.Liked {
			return orDefault(msg, "Blog liked"), nil
		}
		return orDefault(msg, "Blog unliked"), nil
	})
	return res, err
}

// Follow toggles the viewer's follow of an author.
func (r *Reducers) Follow(ctx context.Context, authorID string) (FollowResult, error) {
	var res FollowResult
	err := r.run(KindFollow, authorID, nil, func(ident *domain.Identity) (string, error) {
		author, msg, err := r.backend.Follow(ctx, authorID)
		if err != nil {
			return "", err
		}
		if author.ID == "" {
			author.ID = authorID
		}

		if cached, ok := r.store.Author(authorID); ok {
			cached.Followers = author.Followers
			author = cached
		}
		r.store.PutAuthor(author)

		res = FollowResult{
			Author:    author,
			Following: domain.IsFollowing(author, ident.ID),
			Followers: len(author.Followers),
		}
		if res.Following {
			return orDefault(msg, "Following "+author.Name), nil
		}
		return orDefault(msg, "Unfollowed "+author.Name), nil
	})
	return res, err
}

// DetectSaved scans the viewer's cached lists for postID. The first list in
// order that contains it is the selected one.
func (r *Reducers) DetectSaved(postID string) SaveState {
	lists, _ := r.store.Lists()
	l, ok := domain.FindSavedList(lists, postID)
	if !ok {
		return SaveState{}
	}
	return SaveState{Saved: true, ListID: l.ID, ListName: l.Title}
}

// Save adds the post to listID, or to the detected list when listID is
// empty. Without any target it fails with domain.ErrMissingTarget so the
// caller can offer a list picker. There is no unsave call; saving a post that
// is already a member is harmless.
func (r *Reducers) Save(ctx context.Context, postID, listID string) (SaveState, error) {
	var res SaveState
	target := listID
	if target == "" {
		target = r.DetectSaved(postID).ListID
	}

	precondition := func() error {
		if target == "" {
			return domain.ErrMissingTarget
		}
		return nil
	}
	err := r.run(KindSave, postID, precondition, func(*domain.Identity) (string, error) {
		post, ok := r.store.Post(postID)
		if !ok {
			post = domain.Post{ID: postID}
		}

		msg, err := r.backend.AddToList(ctx, target, post)
		if err != nil {
			return "", err
		}

		r.store.AddToList(target, post.Ref())
		res = SaveState{Saved: true, ListID: target}
		if l, ok := r.store.List(target); ok {
			res.ListName = l.Title
		}
		return orDefault(msg, "Blog saved"), nil
	})
	return res, err
}

func (r *Reducers) checkListInput(in *domain.ListInput) error {
	in.Title = strings.TrimSpace(in.Title)
	err := r.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "Description" {
				return domain.ErrDescriptionLong
			}
		}
	}
	return domain.ErrEmptyTitle
}

// CreateList creates a list and appends it to the cached lists without a
// refetch.
func (r *Reducers) CreateList(ctx context.Context, in domain.ListInput) (domain.List, error) {
	var created domain.List
	err := r.run(KindCreateList, "", func() error { return r.checkListInput(&in) }, func(*domain.Identity) (string, error) {
		l, msg, err := r.backend.CreateList(ctx, in)
		if err != nil {
			return "", err
		}
		if l.Blogs == nil {
			l.Blogs = []domain.PostRef{}
		}
		r.store.PutList(l)
		created = l
		return orDefault(msg, "List created"), nil
	})
	return created, err
}

// UpdateList replaces a list's title, description and optional photo.
func (r *Reducers) UpdateList(ctx context.Context, listID string, in domain.ListInput) (domain.List, error) {
	var updated domain.List
	err := r.run(KindUpdateList, listID, func() error { return r.checkListInput(&in) }, func(*domain.Identity) (string, error) {
		l, msg, err := r.backend.UpdateList(ctx, listID, in)
		if err != nil {
			return "", err
		}
		if l.ID == "" {
			l.ID = listID
		}
		if cached, ok := r.store.List(listID); ok && l.Blogs == nil {
			l.Blogs = cached.Blogs
		}
		r.store.PutList(l)
		updated = l
		return orDefault(msg, "List updated"), nil
	})
	return updated, err
}

// DeleteList deletes a list and drops it from the cache.
func (r *Reducers) DeleteList(ctx context.Context, listID string) error {
	return r.run(KindDeleteList, listID, nil, func(*domain.Identity) (string, error) {
		msg, err := r.backend.DeleteList(ctx, listID)
		if err != nil {
			return "", err
		}
		r.store.RemoveList(listID)
		return orDefault(msg, "List deleted"), nil
	})
}

func requireText(text string) func() error {
	return func() error {
		if strings.TrimSpace(text) == "" {
			return domain.ErrEmptyText
		}
		return nil
	}
}

// AddComment posts a top-level comment and replaces the post's comment tree
// with the one returned. It shares CommentsKey with AddReply.
func (r *Reducers) AddComment(ctx context.Context, postID, text string) ([]domain.Comment, error) {
	var comments []domain.Comment
	err := r.runKeyed(KindComment, postID, CommentsKey(postID), requireText(text), func(*domain.Identity) (string, error) {
		tree, msg, err := r.backend.AddComment(ctx, postID, text)
		if err != nil {
			return "", err
		}
		r.store.UpdatePost(postID, func(p *domain.Post) { p.Comments = tree })
		comments = tree
		return orDefault(msg, "Comment added"), nil
	})
	return comments, err
}

// AddReply posts a reply under the top-level comment commentID. A reply to a
// reply is expressed with the top-level comment's id.
func (r *Reducers) AddReply(ctx context.Context, postID, commentID, text string) ([]domain.Comment, error) {
	precondition := func() error {
		if commentID == "" {
			return domain.ErrMissingComment
		}
		return requireText(text)()
	}
	var comments []domain.Comment
	err := r.runKeyed(KindReply, postID+"/"+commentID, CommentsKey(postID), precondition, func(*domain.Identity) (string, error) {
		tree, msg, err := r.backend.ReplyToComment(ctx, postID, commentID, text)
		if err != nil {
			return "", err
		}
		r.store.UpdatePost(postID, func(p *domain.Post) { p.Comments = tree })
		comments = tree
		return orDefault(msg, "Reply added"), nil
	})
	return comments, err
}

// DeletePost deletes one of the viewer's posts and evicts it from the cache.
func (r *Reducers) DeletePost(ctx context.Context, postID string) error {
	return r.run(KindDeletePost, postID, nil, func(*domain.Identity) (string, error) {
		msg, err := r.backend.DeletePost(ctx, postID)
		if err != nil {
			return "", err
		}
		r.store.RemovePost(postID)
		return orDefault(msg, "Blog deleted"), nil
	})
}

func (r *Reducers) checkProfileInput(in *domain.ProfileInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	err := r.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Field() {
			case "Email":
				return domain.ErrInvalidEmail
			case "Bio":
				return domain.ErrBioLong
			}
		}
	}
	return domain.ErrEmptyName
}

// UpdateProfile replaces the viewer's name, email, bio and optional photo and
// commits the returned author to the cache. When the backend does not echo
// the user, the submitted fields are applied to the cached author instead.
func (r *Reducers) UpdateProfile(ctx context.Context, in domain.ProfileInput) (domain.Author, error) {
	var updated domain.Author
	err := r.run(KindProfile, "", func() error { return r.checkProfileInput(&in) }, func(ident *domain.Identity) (string, error) {
		author, msg, err := r.backend.UpdateProfile(ctx, in)
		if err != nil {
			return "", err
		}

		cached, ok := r.store.Author(ident.ID)
		switch {
		case author.ID == "":
			author = cached
			author.ID = ident.ID
			author.Name = in.Name
			author.Bio = in.Bio
		case ok && author.Followers == nil:
			author.Followers = cached.Followers
		}
		r.store.PutAuthor(author)
		updated = author
		return orDefault(msg, "Profile updated"), nil
	})
	return updated, err
}
