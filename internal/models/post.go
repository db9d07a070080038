package models

// PostCategory is the fixed set of feed categories.
type PostCategory string

const (
	CategoryGeneral  PostCategory = "General"
	CategoryFunerals PostCategory = "Funerals"
	CategoryEvents   PostCategory = "Events"
	CategorySports   PostCategory = "Sports"
)

// MediaKind identifies the media attached to a post.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Reaction is a single user's emoji reaction to a post. A post holds at most
// one reaction per user.
type Reaction struct {
	UserID string `json:"userId" firestore:"userId"`
	Emoji  string `json:"emoji" firestore:"emoji"`
}

// Comment is an appended-only reply on a post. The author fields are a
// denormalized snapshot taken at write time.
type Comment struct {
	ID         string `json:"id" firestore:"id"`
	UserID     string `json:"userId" firestore:"userId"`
	UserName   string `json:"userName" firestore:"userName"`
	UserAvatar string `json:"userAvatar" firestore:"userAvatar"`
	Content    string `json:"content" firestore:"content"`
	Timestamp  int64  `json:"timestamp" firestore:"timestamp"`
}

// Post is a feed entry, stored in the posts collection (doc id = post id).
// Author fields are a snapshot at write time, not a live join; they are
// backfilled when the author edits their profile.
type Post struct {
	ID             string       `json:"id" firestore:"id"`
	UserID         string       `json:"userId" firestore:"userId"`
	UserName       string       `json:"userName" firestore:"userName"`
	UserAvatar     string       `json:"userAvatar" firestore:"userAvatar"`
	UserIsVerified bool         `json:"userIsVerified,omitempty" firestore:"userIsVerified,omitempty"`
	Village        string       `json:"village" firestore:"village"`
	Category       PostCategory `json:"category,omitempty" firestore:"category,omitempty"`
	Content        string       `json:"content" firestore:"content"`
	MediaURL       string       `json:"mediaUrl,omitempty" firestore:"mediaUrl,omitempty"`
	MediaType      MediaKind    `json:"mediaType,omitempty" firestore:"mediaType,omitempty"`
	Timestamp      int64        `json:"timestamp" firestore:"timestamp"`
	Likes          int          `json:"likes" firestore:"likes"`
	Reactions      []Reaction   `json:"reactions,omitempty" firestore:"reactions,omitempty"`
	Comments       int          `json:"comments" firestore:"comments"`
	CommentsList   []Comment    `json:"commentsList,omitempty" firestore:"commentsList,omitempty"`
	IsRepost       bool         `json:"isRepost,omitempty" firestore:"isRepost,omitempty"`
	OriginalAuthor string       `json:"originalAuthor,omitempty" firestore:"originalAuthor,omitempty"`
	IsEdited       bool         `json:"isEdited,omitempty" firestore:"isEdited,omitempty"`
}

// ReactionFor returns the post's reaction entry for the given user, if any.
func (p *Post) ReactionFor(userID string) (Reaction, bool) {
	for _, r := range p.Reactions {
		if r.UserID == userID {
			return r, true
		}
	}
	return Reaction{}, false
}

// CreatePostRequest defines the input for publishing a new post.
type CreatePostRequest struct {
	Content   string       `json:"content" validate:"required,min=1,max=2000"`
	Village   string       `json:"village" validate:"required"`
	Category  PostCategory `json:"category" validate:"required,oneof=General Funerals Events Sports"`
	MediaURL  string       `json:"mediaUrl,omitempty"`
	MediaType MediaKind    `json:"mediaType,omitempty" validate:"omitempty,oneof=image video"`
}

// AddCommentRequest defines the input for commenting on a post.
type AddCommentRequest struct {
	PostID  string `json:"postId" validate:"required"`
	Content string `json:"content" validate:"required,min=1,max=500"`
}
