package blogify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/blackmichael/blogify/internal/domain"
)

// WhoAmI performs the identity check. A negative answer from the backend is
// the anonymous state and returns a nil identity without error.
func (c *Client) WhoAmI(ctx context.Context) (*domain.Identity, error) {
	var resp userInfoResponse
	err := c.get(ctx, "identity check", "/auth/user-info", nil, &resp)
	var rejected *domain.RejectedError
	if errors.As(err, &rejected) && rejected.Status < 300 {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Login authenticates with email and password. The session cookie lands in
// the client's jar.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.Identity, string, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp userInfoResponse
	if err := c.sendJSON(ctx, "login", http.MethodPost, "/auth/login", body, &resp); err != nil {
		return nil, "", err
	}
	if resp.User == nil {
		return nil, "", &domain.RejectedError{Op: "login", Status: http.StatusOK, Message: "login returned no user"}
	}
	return resp.User, resp.Message, nil
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) (string, error) {
	var resp messageResponse
	if err := c.sendJSON(ctx, "logout", http.MethodPost, "/auth/logout", nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Home fetches the home page feed.
func (c *Client) Home(ctx context.Context) (domain.HomeFeed, error) {
	var resp homeResponse
	if err := c.get(ctx, "fetch home", "/", nil, &resp); err != nil {
		return domain.HomeFeed{}, err
	}
	return resp.HomeFeed, nil
}

// PostDetail fetches a post and its related posts.
func (c *Client) PostDetail(ctx context.Context, postID string) (domain.PostDetail, error) {
	var resp postDetailResponse
	if err := c.get(ctx, "fetch post detail", "/blogs/blog-detail/"+postID, nil, &resp); err != nil {
		return domain.PostDetail{}, err
	}
	return resp.PostDetail, nil
}

// PostsByTag fetches the posts carrying tag and the currently popular tags.
func (c *Client) PostsByTag(ctx context.Context, tag string) (domain.TagFeed, error) {
	var resp tagResponse
	if err := c.get(ctx, "fetch posts by tag", "/blogs/find-by-tag/"+tag, nil, &resp); err != nil {
		return domain.TagFeed{}, err
	}
	return resp.TagFeed, nil
}

// ToggleLike flips the viewer's like on a post and returns the updated post.
func (c *Client) ToggleLike(ctx context.Context, postID string) (domain.Post, string, error) {
	body := map[string]string{"blogId": postID}
	var resp blogResponse
	if err := c.sendJSON(ctx, "toggle like", http.MethodPut, "/blogs/like-blog", body, &resp); err != nil {
		return domain.Post{}, "", err
	}
	return resp.Blog, resp.Message, nil
}

// AddComment posts a top-level comment and returns the post's updated comment
// tree.
func (c *Client) AddComment(ctx context.Context, postID, text string) ([]domain.Comment, string, error) {
	body := map[string]string{"blogId": postID, "comment": text}
	var resp blogResponse
	if err := c.sendJSON(ctx, "add comment", http.MethodPost, "/blogs/add-comment", body, &resp); err != nil {
		return nil, "", err
	}
	return resp.Blog.Comments, resp.Message, nil
}

// ReplyToComment posts a reply under commentID and returns the post's updated
// comment tree.
func (c *Client) ReplyToComment(ctx context.Context, postID, commentID, text string) ([]domain.Comment, string, error) {
	body := map[string]string{"blogId": postID, "commentId": commentID, "replyText": text}
	var resp blogResponse
	if err := c.sendJSON(ctx, "reply to comment", http.MethodPut, "/blogs/reply-to-comment", body, &resp); err != nil {
		return nil, "", err
	}
	return resp.Blog.Comments, resp.Message, nil
}

// DeletePost deletes one of the viewer's posts.
func (c *Client) DeletePost(ctx context.Context, postID string) (string, error) {
	var resp messageResponse
	if err := c.sendJSON(ctx, "delete post", http.MethodDelete, "/blogs/delete-blog/"+postID, nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Lists fetches all of the viewer's lists.
func (c *Client) Lists(ctx context.Context) ([]domain.List, error) {
	var resp listsResponse
	if err := c.get(ctx, "fetch lists", "/lists/all-lists", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Lists, nil
}

// CreateList creates a list from a multipart form and returns it.
func (c *Client) CreateList(ctx context.Context, in domain.ListInput) (domain.List, string, error) {
	var resp listResponse
	if err := c.sendMultipart(ctx, "create list", http.MethodPost, "/lists/create", listFields(in), listPhoto(in), &resp); err != nil {
		return domain.List{}, "", err
	}
	return resp.List, resp.Message, nil
}

// AddToList adds a snapshot of post to the list.
func (c *Client) AddToList(ctx context.Context, listID string, post domain.Post) (string, error) {
	body := map[string]any{"item": post, "listId": listID}
	var resp messageResponse
	if err := c.sendJSON(ctx, "add to list", http.MethodPut, "/lists/add-blog", body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// UpdateList replaces a list's title, description and optionally its photo.
func (c *Client) UpdateList(ctx context.Context, listID string, in domain.ListInput) (domain.List, string, error) {
	var resp listResponse
	if err := c.sendMultipart(ctx, "update list", http.MethodPut, "/lists/update-list/"+listID, listFields(in), listPhoto(in), &resp); err != nil {
		return domain.List{}, "", err
	}
	return resp.List, resp.Message, nil
}

// DeleteList deletes one of the viewer's lists.
func (c *Client) DeleteList(ctx context.Context, listID string) (string, error) {
	var resp messageResponse
	if err := c.sendJSON(ctx, "delete list", http.MethodDelete, "/lists/delete-list/"+listID, nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Follow toggles the viewer's follow of an author and returns the updated
// author.
func (c *Client) Follow(ctx context.Context, authorID string) (domain.Author, string, error) {
	body := map[string]string{"followingId": authorID}
	var resp authorResponse
	if err := c.sendJSON(ctx, "toggle follow", http.MethodPost, "/users/follow", body, &resp); err != nil {
		return domain.Author{}, "", err
	}
	return resp.Author, resp.Message, nil
}

// UpdateProfile replaces the viewer's name, email and bio, and the profile
// photo when one is given. The backend may omit the updated user, in which
// case the returned author is empty.
func (c *Client) UpdateProfile(ctx context.Context, in domain.ProfileInput) (domain.Author, string, error) {
	fields := []formField{{"name", in.Name}, {"email", in.Email}, {"bio", in.Bio}}
	photo := formFile{field: "profilePhoto", name: in.PhotoName, content: in.Photo}
	var resp userResponse
	if err := c.sendMultipart(ctx, "update profile", http.MethodPut, "/users/update-profile", fields, photo, &resp); err != nil {
		return domain.Author{}, "", err
	}
	if resp.User == nil {
		return domain.Author{}, resp.Message, nil
	}
	return *resp.User, resp.Message, nil
}

func listFields(in domain.ListInput) []formField {
	return []formField{{"title", in.Title}, {"description", in.Description}}
}

func listPhoto(in domain.ListInput) formFile {
	return formFile{field: "photo", name: in.PhotoName, content: in.Photo}
}

// Profile fetches a user's profile page.
func (c *Client) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	var resp profileResponse
	if err := c.get(ctx, "fetch profile", "/users/profile/"+userID, nil, &resp); err != nil {
		return domain.Profile{}, err
	}
	return resp.Profile, nil
}

// Notifications fetches the viewer's notification history.
func (c *Client) Notifications(ctx context.Context) ([]domain.Notification, error) {
	var resp notificationsResponse
	if err := c.get(ctx, "fetch notifications", "/notifications/all-notifications", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

// Search queries authors, posts and lists with an independent page per
// category.
func (c *Client) Search(ctx context.Context, q domain.SearchQuery) (domain.SearchResults, error) {
	params := url.Values{}
	params.Set("query", q.Term)
	params.Set("authorPage", strconv.Itoa(max(q.AuthorPage, 1)))
	params.Set("blogPage", strconv.Itoa(max(q.BlogPage, 1)))
	params.Set("listPage", strconv.Itoa(max(q.ListPage, 1)))
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var resp searchResponse
	if err := c.get(ctx, "search", "/search", params, &resp); err != nil {
		return domain.SearchResults{}, fmt.Errorf("search %q: %w", q.Term, err)
	}
	return resp.SearchResults, nil
}
