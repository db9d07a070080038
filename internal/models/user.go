package models

import "strings"

// GuestIDPrefix namespaces identities created without the remote auth provider.
const GuestIDPrefix = "guest_"

// Verification thresholds. The isVerified flag is always derived from these,
// never assigned independently.
const (
	VerifiedMinFollowers  = 1000
	VerifiedMinTotalLikes = 10000
)

// User represents a community member profile, stored in the users collection
// (doc id = user id) and mirrored into the local store.
type User struct {
	ID           string   `json:"id" firestore:"id"`
	FullName     string   `json:"fullName" firestore:"fullName"`
	Email        string   `json:"email,omitempty" firestore:"email,omitempty"`
	PhoneNumber  string   `json:"phoneNumber,omitempty" firestore:"phoneNumber,omitempty"`
	Village      string   `json:"village" firestore:"village"`
	Avatar       string   `json:"avatar" firestore:"avatar"`
	Banner       string   `json:"banner,omitempty" firestore:"banner,omitempty"`
	About        string   `json:"about,omitempty" firestore:"about,omitempty"`
	DOB          string   `json:"dob,omitempty" firestore:"dob,omitempty"`
	IsOnline     bool     `json:"isOnline" firestore:"isOnline"`
	Followers    int      `json:"followers" firestore:"followers"`
	Following    int      `json:"following" firestore:"following"`
	FollowingIDs []string `json:"followingIds,omitempty" firestore:"followingIds,omitempty"`
	TotalLikes   int      `json:"totalLikes" firestore:"totalLikes"`
	IsVerified   bool     `json:"isVerified" firestore:"isVerified"`
}

// IsGuestID reports whether the id belongs to an anonymous guest identity.
func IsGuestID(id string) bool {
	return strings.HasPrefix(id, GuestIDPrefix)
}

// IsGuest reports whether the user is an anonymous guest.
func (u *User) IsGuest() bool {
	return IsGuestID(u.ID)
}

// RecomputeVerification re-derives the isVerified flag from the follower and
// like counts. Every mutation of a user record must pass through this.
func (u *User) RecomputeVerification() {
	u.IsVerified = u.Followers >= VerifiedMinFollowers && u.TotalLikes >= VerifiedMinTotalLikes
}

// FollowsUser reports whether the user follows the given id.
func (u *User) FollowsUser(targetID string) bool {
	for _, id := range u.FollowingIDs {
		if id == targetID {
			return true
		}
	}
	return false
}

// SignUpRequest defines the input for creating a new account.
type SignUpRequest struct {
	FullName string `json:"fullName" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Village  string `json:"village" validate:"required"`
	DOB      string `json:"dob,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// GuestLoginRequest defines the input for starting an anonymous guest session.
type GuestLoginRequest struct {
	FullName string `json:"fullName" validate:"required,min=2,max=50"`
	Village  string `json:"village" validate:"required"`
	Avatar   string `json:"avatar,omitempty"`
}
