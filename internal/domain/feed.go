package domain

// HomeFeed is the payload of the home page read.
type HomeFeed struct {
	Blogs           []Post   `json:"blogs"`
	PopularBlogs    []Post   `json:"popularBlogs"`
	FeaturedAuthors []Author `json:"featuredAuthors"`
}

// TagFeed is the payload of the posts-by-tag read.
type TagFeed struct {
	Blogs       []Post   `json:"blogs"`
	PopularTags []string `json:"popularTags"`
}

// Profile is the payload of the user profile read.
type Profile struct {
	User       Author `json:"user"`
	Blogs      []Post `json:"blogs"`
	LikedBlogs []Post `json:"likedBlogs"`
	SavedBlogs []Post `json:"savedBlogs"`
	Lists      []List `json:"lists"`
}

// SearchQuery keys one search slot: a term plus a page per category.
type SearchQuery struct {
	Term       string
	AuthorPage int
	BlogPage   int
	ListPage   int
	Limit      int
}

// MinSearchTermLength is the shortest term sent to the backend. Shorter terms
// resolve to empty results locally.
const MinSearchTermLength = 2

// Page is one page of a search category.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// TotalPages returns the number of pages of size limit needed for Total.
func (p Page[T]) TotalPages(limit int) int {
	if limit <= 0 || p.Total <= 0 {
		return 0
	}
	return (p.Total + limit - 1) / limit
}

// SearchResults is the payload of the search read.
type SearchResults struct {
	Authors Page[Author] `json:"authors"`
	Blogs   Page[Post]   `json:"blogs"`
	Lists   Page[List]   `json:"lists"`
}
