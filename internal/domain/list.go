package domain

import "slices"

// List is a viewer-curated collection of saved posts.
type List struct {
	ID          string `json:"_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`

	// Blogs holds the saved posts. Membership of a post id here is the only
	// source of truth for "saved"; see FindSavedList.
	Blogs []PostRef `json:"blogs"`
}

// PostRef is the snapshot of a post stored inside a list. Only ID matters for
// membership.
type PostRef struct {
	ID        string `json:"_id"`
	Title     string `json:"title,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// ListInput carries the fields of a create or update list call.
type ListInput struct {
	Title       string `validate:"required"`
	Description string `validate:"max=500"`

	// Photo is optional image content sent as the "photo" multipart field.
	Photo     []byte
	PhotoName string
}

// Contains reports whether the list holds postID.
func (l List) Contains(postID string) bool {
	return slices.ContainsFunc(l.Blogs, func(r PostRef) bool { return r.ID == postID })
}

// Clone returns a deep copy of the list.
func (l List) Clone() List {
	out := l
	out.Blogs = slices.Clone(l.Blogs)
	return out
}

// FindSavedList scans lists in order and returns the first one containing
// postID. The scan order is the caller's list order, so the result is
// deterministic for a given collection.
func FindSavedList(lists []List, postID string) (List, bool) {
	for _, l := range lists {
		if l.Contains(postID) {
			return l, true
		}
	}
	return List{}, false
}

// CloneLists deep-copies a list collection.
func CloneLists(in []List) []List {
	if in == nil {
		return nil
	}
	out := make([]List, len(in))
	for i, l := range in {
		out[i] = l.Clone()
	}
	return out
}
