package domain

import (
	"slices"
	"time"
)

// Post is a blog post as returned by the Blogify backend.
type Post struct {
	// ID is the backend identifier of the post.
	ID string `json:"_id"`

	Title string `json:"title"`

	// Content is the HTML produced by the editor. It is opaque to this client.
	Content string `json:"content,omitempty"`

	Tags      []string `json:"tags,omitempty"`
	Category  string   `json:"category,omitempty"`
	Thumbnail string   `json:"thumbnail,omitempty"`

	// PublishedBy is the author's identity id.
	PublishedBy     string `json:"publishedBy,omitempty"`
	PublishedByName string `json:"publishedByName,omitempty"`

	// LikedBy holds the identity ids of every viewer liking the post. It is the
	// only source of truth for like state; see IsLiked.
	LikedBy []string `json:"likedBy"`

	// Comments is the top-level comment thread. Replies hang off each comment.
	Comments []Comment `json:"comments"`

	CreatedAt time.Time `json:"createdAt"`
}

// Comment is an entry in a post's comment thread. Replies nest exactly one
// level: a reply carries no replies of its own in practice.
type Comment struct {
	ID              string    `json:"_id"`
	Name            string    `json:"name"`
	ProfilePhotoURL string    `json:"profilePhotoUrl,omitempty"`
	Text            string    `json:"text"`
	Date            time.Time `json:"date"`
	Replies         []Comment `json:"replies,omitempty"`
}

// PostDetail is the payload of the post detail read.
type PostDetail struct {
	Blog         Post   `json:"blog"`
	RelatedBlogs []Post `json:"relatedBlogs"`
}

// IsLiked reports whether viewerID is a member of the post's likedBy set.
func IsLiked(p Post, viewerID string) bool {
	if viewerID == "" {
		return false
	}
	return slices.Contains(p.LikedBy, viewerID)
}

// LikeCount returns the number of distinct viewers liking the post.
func LikeCount(p Post) int {
	seen := make(map[string]struct{}, len(p.LikedBy))
	for _, id := range p.LikedBy {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// CommentCount returns the number of comments on the post including replies.
func CommentCount(p Post) int {
	n := 0
	for _, c := range p.Comments {
		n += 1 + len(c.Replies)
	}
	return n
}

// FindComment returns the top-level comment with the given id.
func FindComment(comments []Comment, id string) (Comment, bool) {
	for _, c := range comments {
		if c.ID == id {
			return c, true
		}
	}
	return Comment{}, false
}

// Clone returns a deep copy of the post.
func (p Post) Clone() Post {
	out := p
	out.Tags = slices.Clone(p.Tags)
	out.LikedBy = slices.Clone(p.LikedBy)
	out.Comments = CloneComments(p.Comments)
	return out
}

// Ref returns the membership reference used by lists.
func (p Post) Ref() PostRef {
	return PostRef{ID: p.ID, Title: p.Title, Thumbnail: p.Thumbnail}
}

// CloneComments deep-copies a comment tree.
func CloneComments(in []Comment) []Comment {
	if in == nil {
		return nil
	}
	out := make([]Comment, len(in))
	for i, c := range in {
		out[i] = c
		out[i].Replies = CloneComments(c.Replies)
	}
	return out
}
