package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Identity is the authenticated viewer's minimal profile.
type Identity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"profilePhotoUrl,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Author is a user profile as seen by other viewers.
type Author struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	PhotoURL string `json:"profilePhotoUrl,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Role     string `json:"role,omitempty"`

	// Followers is the set of identities following this author. Follow state
	// is derived from it; see IsFollowing.
	Followers []FollowerRef `json:"followers"`
}

// ProfileInput carries the fields of a profile update. Password changes are a
// separate flow and are not part of it.
type ProfileInput struct {
	Name  string `validate:"required"`
	Email string `validate:"omitempty,email"`
	Bio   string `validate:"max=500"`

	// Photo is optional image content sent as the "profilePhoto" multipart
	// field.
	Photo     []byte
	PhotoName string
}

// FollowerRef references a follower. The backend sends either a bare id or a
// populated user object.
type FollowerRef struct {
	ID string `json:"_id"`
}

// UnmarshalJSON accepts both "id" and {"_id": "id"}.
func (f *FollowerRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		f.ID = id
		return nil
	}
	var obj struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unmarshal follower: %w", err)
	}
	f.ID = obj.ID
	return nil
}

// IsFollowing reports whether viewerID is in the author's followers set.
func IsFollowing(a Author, viewerID string) bool {
	if viewerID == "" {
		return false
	}
	return slices.ContainsFunc(a.Followers, func(f FollowerRef) bool { return f.ID == viewerID })
}

// Clone returns a deep copy of the author.
func (a Author) Clone() Author {
	out := a
	out.Followers = slices.Clone(a.Followers)
	return out
}
