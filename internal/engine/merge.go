package engine

import (
	"encoding/json"
	"sort"

	"github.com/RafaelMokgaha/Blouconnectapplication/internal/localstore"
	"github.com/RafaelMokgaha/Blouconnectapplication/internal/models"
)

// applyChatSnapshot merges a remote chat snapshot into the in-memory list.
// Locally known chats absent from the snapshot are kept: they were created
// here but have not propagated yet, or are hidden from the query by rule
// restrictions. Keyed by chat id, so overlapping snapshot deliveries are
// commutative-safe.
func (e *Engine) applyChatSnapshot(remoteChats []models.Chat) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[string]struct{}, len(remoteChats))
	merged := make([]models.Chat, 0, len(remoteChats)+len(e.chats))
	for _, c := range remoteChats {
		seen[c.ID] = struct{}{}
		merged = append(merged, c)
	}
	for _, local := range e.chats {
		if _, ok := seen[local.ID]; !ok {
			merged = append(merged, local)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].LastMessageTime > merged[j].LastMessageTime
	})
	e.chats = merged
}

// applyPostSnapshot merges a remote feed snapshot: the server wins for ids it
// knows, local-only (not yet synced) posts are kept, and the merged result is
// persisted immediately so a restart sees the merge rather than a stale
// local-only view.
func (e *Engine) applyPostSnapshot(remotePosts []models.Post) {
	e.mu.Lock()
	defer e.mu.Unlock()

	remoteIDs := make(map[string]struct{}, len(remotePosts))
	for _, p := range remotePosts {
		remoteIDs[p.ID] = struct{}{}
	}

	combined := make([]models.Post, 0, len(remotePosts)+len(e.posts))
	combined = append(combined, remotePosts...)
	for _, local := range e.posts {
		if _, ok := remoteIDs[local.ID]; !ok {
			combined = append(combined, local)
		}
	}
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Timestamp > combined[j].Timestamp
	})

	e.posts = combined
	e.persistPostsLocked()
}

// persistPostsLocked writes the feed to the global posts key. The store
// suppresses the write when the serialized form is unchanged, which keeps
// repeated identical snapshots from generating notification storms.
func (e *Engine) persistPostsLocked() {
	raw, err := json.Marshal(e.posts)
	if err != nil {
		e.log.Error().Err(err).Msg("failed to encode posts")
		return
	}
	e.store.Set(localstore.KeyPosts, string(raw))
	e.appliedRev[localstore.KeyPosts] = e.store.Revision(localstore.KeyPosts)
}

// persistChatsLocked writes the actor's chat list. No-op without an actor.
func (e *Engine) persistChatsLocked() {
	if e.user == nil {
		return
	}
	raw, err := json.Marshal(e.chats)
	if err != nil {
		e.log.Error().Err(err).Msg("failed to encode chats")
		return
	}
	key := localstore.ChatsKey(e.user.ID)
	e.store.Set(key, string(raw))
	e.appliedRev[key] = e.store.Revision(key)
}

// persistMessagesLocked writes the actor's message map. No-op without an actor.
func (e *Engine) persistMessagesLocked() {
	if e.user == nil {
		return
	}
	raw, err := json.Marshal(e.messages)
	if err != nil {
		e.log.Error().Err(err).Msg("failed to encode messages")
		return
	}
	key := localstore.MessagesKey(e.user.ID)
	e.store.Set(key, string(raw))
	e.appliedRev[key] = e.store.Revision(key)
}

func unmarshal(raw []byte, v interface{}) error {
	return json.Unmarshal(raw, v)
}
