package remote

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/RafaelMokgaha/Blouconnectapplication/internal/models"
)

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	chatsCollection    = "chats"
	messagesCollection = "messages"
	filesCollection    = "files"
)

// FirestoreUserStore implements UserStore on Firestore.
type FirestoreUserStore struct {
	client *firestore.Client
}

// NewFirestoreUserStore creates a new FirestoreUserStore.
func NewFirestoreUserStore(client *firestore.Client) *FirestoreUserStore {
	return &FirestoreUserStore{client: client}
}

// Get retrieves a user profile document.
func (s *FirestoreUserStore) Get(ctx context.Context, id string) (*models.User, error) {
	snap, err := s.client.Collection(usersCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}
	var user models.User
	if err := snap.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", id, err)
	}
	return &user, nil
}

// Set writes the full profile document. Optional fields that are unset are
// omitted by the struct tags, so the platform never sees undefined values.
func (s *FirestoreUserStore) Set(ctx context.Context, user *models.User) error {
	_, err := s.client.Collection(usersCollection).Doc(user.ID).Set(ctx, user)
	return err
}

// Delete removes the profile document.
func (s *FirestoreUserStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.Collection(usersCollection).Doc(id).Delete(ctx)
	return err
}

// FirestorePostStore implements PostStore on Firestore.
type FirestorePostStore struct {
	client *firestore.Client
	log    zerolog.Logger
}

// NewFirestorePostStore creates a new FirestorePostStore.
func NewFirestorePostStore(client *firestore.Client, log zerolog.Logger) *FirestorePostStore {
	return &FirestorePostStore{client: client, log: log}
}

// Set writes a post document keyed by the client-generated post id.
func (s *FirestorePostStore) Set(ctx context.Context, post *models.Post) error {
	_, err := s.client.Collection(postsCollection).Doc(post.ID).Set(ctx, post)
	return err
}

// Update applies a partial field update to a post.
func (s *FirestorePostStore) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	_, err := s.client.Collection(postsCollection).Doc(id).Update(ctx, toUpdates(fields))
	return err
}

// Delete removes a post document.
func (s *FirestorePostStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.Collection(postsCollection).Doc(id).Delete(ctx)
	return err
}

// Subscribe opens the community feed subscription.
func (s *FirestorePostStore) Subscribe(ctx context.Context, limit int, fn func([]models.Post)) func() {
	ctx, cancel := context.WithCancel(ctx)
	snapshots := s.client.Collection(postsCollection).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit).
		Snapshots(ctx)

	go func() {
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				s.logSubscriptionEnd("posts", err)
				return
			}
			var posts []models.Post
			for {
				doc, err := snap.Documents.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					s.log.Warn().Err(err).Msg("post snapshot iteration failed")
					break
				}
				var post models.Post
				if err := doc.DataTo(&post); err != nil {
					s.log.Warn().Err(err).Str("doc", doc.Ref.ID).Msg("skipping undecodable post")
					continue
				}
				posts = append(posts, post)
			}
			fn(posts)
		}
	}()

	return cancel
}

func (s *FirestorePostStore) logSubscriptionEnd(name string, err error) {
	switch {
	case status.Code(err) == codes.Canceled:
	case IsPermissionDenied(err):
		s.log.Debug().Str("collection", name).Msg("subscription denied, offline mode active")
	default:
		s.log.Warn().Err(err).Str("collection", name).Msg("subscription ended")
	}
}

// FirestoreChatStore implements ChatStore on Firestore.
type FirestoreChatStore struct {
	client *firestore.Client
	log    zerolog.Logger
}

// NewFirestoreChatStore creates a new FirestoreChatStore.
func NewFirestoreChatStore(client *firestore.Client, log zerolog.Logger) *FirestoreChatStore {
	return &FirestoreChatStore{client: client, log: log}
}

// Get retrieves a chat document, reporting whether it exists.
func (s *FirestoreChatStore) Get(ctx context.Context, id string) (*models.Chat, bool, error) {
	snap, err := s.client.Collection(chatsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	var chat models.Chat
	if err := snap.DataTo(&chat); err != nil {
		return nil, true, fmt.Errorf("failed to decode chat %s: %w", id, err)
	}
	return &chat, true, nil
}

// Create writes the full chat document plus its server-side creation stamp
// in one commit.
func (s *FirestoreChatStore) Create(ctx context.Context, chat *models.Chat) error {
	ref := s.client.Collection(chatsCollection).Doc(chat.ID)
	batch := s.client.Batch()
	batch.Set(ref, chat)
	batch.Set(ref, map[string]interface{}{"createdAt": firestore.ServerTimestamp}, firestore.MergeAll)
	_, err := batch.Commit(ctx)
	return err
}

// Update applies a partial update; dotted paths address nested map entries.
func (s *FirestoreChatStore) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	_, err := s.client.Collection(chatsCollection).Doc(id).Update(ctx, toUpdates(fields))
	return err
}

// SendMessage commits the message document and the chat upsert in one batch,
// so first-message chat creation and delivery cannot be observed separately.
func (s *FirestoreChatStore) SendMessage(ctx context.Context, chatID string, msg *models.Message, chatFields map[string]interface{}) error {
	chatRef := s.client.Collection(chatsCollection).Doc(chatID)
	msgRef := chatRef.Collection(messagesCollection).Doc(msg.ID)

	batch := s.client.Batch()
	batch.Set(msgRef, msg)
	batch.Set(chatRef, convertSentinels(chatFields), firestore.MergeAll)
	_, err := batch.Commit(ctx)
	return err
}

// Subscribe opens the viewer's chat-list subscription.
func (s *FirestoreChatStore) Subscribe(ctx context.Context, viewerID string, limit int, fn func([]models.Chat)) func() {
	ctx, cancel := context.WithCancel(ctx)
	snapshots := s.client.Collection(chatsCollection).
		Where("participants", "array-contains", viewerID).
		OrderBy("lastMessageTime", firestore.Desc).
		Limit(limit).
		Snapshots(ctx)

	go func() {
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				switch {
				case status.Code(err) == codes.Canceled:
				case IsPermissionDenied(err):
					s.log.Debug().Msg("chat subscription denied, offline mode active")
				default:
					s.log.Warn().Err(err).Msg("chat subscription ended")
				}
				return
			}
			var chats []models.Chat
			for {
				doc, err := snap.Documents.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					s.log.Warn().Err(err).Msg("chat snapshot iteration failed")
					break
				}
				var chat models.Chat
				if err := doc.DataTo(&chat); err != nil {
					s.log.Warn().Err(err).Str("doc", doc.Ref.ID).Msg("skipping undecodable chat")
					continue
				}
				chat.ProjectFor(viewerID)
				chats = append(chats, chat)
			}
			fn(chats)
		}
	}()

	return cancel
}

// FirestoreFileStore implements FileStore on Firestore.
type FirestoreFileStore struct {
	client *firestore.Client
}

// NewFirestoreFileStore creates a new FirestoreFileStore.
func NewFirestoreFileStore(client *firestore.Client) *FirestoreFileStore {
	return &FirestoreFileStore{client: client}
}

// Add records upload metadata under users/{ownerID}/files.
func (s *FirestoreFileStore) Add(ctx context.Context, ownerID string, meta *FileMetadata) error {
	meta.UploadedAt = firestore.ServerTimestamp
	doc := s.client.Collection(usersCollection).Doc(ownerID).Collection(filesCollection).Doc(uuid.NewString())
	_, err := doc.Set(ctx, meta)
	return err
}

// toUpdates converts a dotted-path field map into firestore update entries.
func toUpdates(fields map[string]interface{}) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: convertSentinel(value)})
	}
	return updates
}

// convertSentinels maps the package's platform-neutral sentinels onto the
// firestore transform values, recursing into nested maps.
func convertSentinels(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = convertSentinel(v)
	}
	return out
}

func convertSentinel(v interface{}) interface{} {
	switch val := v.(type) {
	case incrementValue:
		return firestore.Increment(val.n)
	case serverTimestampValue:
		return firestore.ServerTimestamp
	case map[string]interface{}:
		return convertSentinels(val)
	default:
		return v
	}
}
