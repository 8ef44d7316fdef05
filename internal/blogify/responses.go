package blogify

import "github.com/blackmichael/blogify/internal/domain"

type messageResponse struct {
	envelope
}

type userInfoResponse struct {
	envelope
	User *domain.Identity `json:"user"`
}

type homeResponse struct {
	envelope
	domain.HomeFeed
}

type postDetailResponse struct {
	envelope
	domain.PostDetail
}

type tagResponse struct {
	envelope
	domain.TagFeed
}

type blogResponse struct {
	envelope
	Blog domain.Post `json:"blog"`
}

type listsResponse struct {
	envelope
	Lists []domain.List `json:"lists"`
}

type listResponse struct {
	envelope
	List domain.List `json:"list"`
}

type authorResponse struct {
	envelope
	Author domain.Author `json:"author"`
}

type userResponse struct {
	envelope
	User *domain.Author `json:"user"`
}

type profileResponse struct {
	envelope
	domain.Profile
}

type notificationsResponse struct {
	envelope
	Notifications []domain.Notification `json:"notifications"`
}

// searchResponse carries no success flag in the backend contract; the
// category pages are the whole body.
type searchResponse struct {
	domain.SearchResults
}

func (searchResponse) status() envelope { return envelope{Success: true} }
