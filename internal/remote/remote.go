// Package remote defines the thin contract over the managed document
// database. The reconciliation engine only depends on these interfaces; the
// Firestore implementations live alongside them.
package remote

import (
	"context"

	"github.com/RafaelMokgaha/Blouconnectapplication/internal/models"
)

// Increment marks a field for an atomic server-side increment in an update
// or merge write.
func Increment(n int) interface{} { return incrementValue{n: n} }

// ServerTimestamp marks a field to be populated with the server's time at
// commit.
var ServerTimestamp interface{} = serverTimestampValue{}

type incrementValue struct{ n int }
type serverTimestampValue struct{}

// UserStore is the users collection contract (doc id = user id).
type UserStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
	// Set writes the full profile with merge semantics.
	Set(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// PostStore is the posts collection contract (doc id = post id).
type PostStore interface {
	Set(ctx context.Context, post *models.Post) error
	// Update applies a partial field update. Values may be Increment or
	// ServerTimestamp sentinels.
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	// Subscribe opens a live feed subscription ordered by timestamp
	// descending, capped at limit. Each snapshot delivers the full decoded
	// result set to fn until the returned stop function is called.
	Subscribe(ctx context.Context, limit int, fn func([]models.Post)) (stop func())
}

// ChatStore is the chats collection contract (doc id = deterministic pair id)
// including the per-chat messages subcollection.
type ChatStore interface {
	// Get reports the chat and whether the document exists. A missing
	// document is not an error.
	Get(ctx context.Context, id string) (*models.Chat, bool, error)
	Create(ctx context.Context, chat *models.Chat) error
	// Update applies a partial update; map keys may use dotted paths to
	// address nested map entries (e.g. "unreadCounts.<uid>").
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	// SendMessage atomically writes the message document and merges the chat
	// document fields in a single batched commit.
	SendMessage(ctx context.Context, chatID string, msg *models.Message, chatFields map[string]interface{}) error
	// Subscribe opens a live subscription over the viewer's chats, filtered
	// to participants containing viewerID, ordered by last-message time
	// descending and capped at limit. Decoded chats are projected for the
	// viewer before delivery.
	Subscribe(ctx context.Context, viewerID string, limit int, fn func([]models.Chat)) (stop func())
}

// FileStore records upload metadata under users/{id}/files.
type FileStore interface {
	Add(ctx context.Context, ownerID string, meta *FileMetadata) error
}

// FileMetadata describes an uploaded blob.
type FileMetadata struct {
	Name        string      `firestore:"name"`
	StoragePath string      `firestore:"storagePath"`
	URL         string      `firestore:"url"`
	ContentType string      `firestore:"type"`
	Size        int64       `firestore:"size"`
	Notes       string      `firestore:"notes"`
	UploadedAt  interface{} `firestore:"uploadedAt"`
	Timestamp   int64       `firestore:"timestamp"`
}
