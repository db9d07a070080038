package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/RafaelMokgaha/Blouconnectapplication/internal/models"
)

const startChatPreview = "Start a conversation"

// Chats returns a copy of the actor's chat list, most recent first.
func (e *Engine) Chats() []models.Chat {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Chat, len(e.chats))
	copy(out, e.chats)
	return out
}

// Messages returns a copy of the actor's messages for one chat, ordered by
// timestamp ascending.
func (e *Engine) Messages(chatID string) []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	msgs := e.messages[chatID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// TotalUnread sums the acting user's unread counters across all chats.
func (e *Engine) TotalUnread() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.user == nil {
		return 0
	}
	total := 0
	for _, c := range e.chats {
		total += c.UnreadFor(e.user.ID)
	}
	return total
}

// StartChat lazily creates the conversation with the target user under the
// deterministic pair id. An existing chat is returned as-is; a chat document
// is never recreated once its id exists.
func (e *Engine) StartChat(ctx context.Context, target models.User) (*models.Chat, error) {
	e.mu.Lock()
	user := e.user
	if user == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("no active user")
	}
	if target.ID == "" || target.ID == user.ID {
		e.mu.Unlock()
		return nil, fmt.Errorf("invalid chat target")
	}

	chatID := models.ChatID(user.ID, target.ID)
	for _, c := range e.chats {
		if c.ID == chatID {
			existing := c
			e.mu.Unlock()
			return &existing, nil
		}
	}

	chat := models.Chat{
		ID:              chatID,
		Type:            models.ChatTypePrivate,
		Name:            target.FullName,
		Avatar:          target.Avatar,
		Participants:    []string{user.ID, target.ID},
		LastMessage:     startChatPreview,
		LastMessageTime: time.Now().UnixMilli(),
		UnreadCounts:    map[string]int{},
		ParticipantData: map[string]models.ParticipantInfo{
			user.ID:   {Name: user.FullName, Avatar: user.Avatar},
			target.ID: {Name: target.FullName, Avatar: target.Avatar},
		},
	}
	e.chats = append([]models.Chat{chat}, e.chats...)
	e.persistChatsLocked()
	guest := user.IsGuest()
	e.mu.Unlock()

	if !guest && e.remoteChats != nil {
		// Background create, guarded by an existence probe so immutable
		// fields are written at most once.
		go func() {
			_, exists, err := e.remoteChats.Get(context.Background(), chatID)
			if err != nil {
				e.logRemoteFailure(err, "chat probe")
				return
			}
			if exists {
				return
			}
			created := chat
			created.UnreadCounts = map[string]int{user.ID: 0, target.ID: 0}
			if err := e.remoteChats.Create(context.Background(), &created); err != nil {
				e.logRemoteFailure(err, "chat create")
			}
		}()
	}
	return &chat, nil
}

// MarkChatAsRead zeroes the acting user's unread counter for the chat
// locally, then issues a best-effort remote zeroing for authenticated users.
func (e *Engine) MarkChatAsRead(ctx context.Context, chatID string) error {
	e.mu.Lock()
	user := e.user
	if user == nil {
		e.mu.Unlock()
		return fmt.Errorf("no active user")
	}
	for i := range e.chats {
		if e.chats[i].ID == chatID {
			counts := make(map[string]int, len(e.chats[i].UnreadCounts)+1)
			for k, v := range e.chats[i].UnreadCounts {
				counts[k] = v
			}
			counts[user.ID] = 0
			e.chats[i].UnreadCounts = counts
			break
		}
	}
	e.persistChatsLocked()
	guest := user.IsGuest()
	uid := user.ID
	e.mu.Unlock()

	if !guest && e.remoteChats != nil {
		go func() {
			err := e.remoteChats.Update(context.Background(), chatID, map[string]interface{}{
				"unreadCounts." + uid: 0,
			})
			if err != nil {
				e.logRemoteFailure(err, "mark chat read")
			}
		}()
	}
	return nil
}

// UpdateChatSettings changes the acting user's wallpaper settings for one
// chat. The change is per-user: it lands in the viewer-keyed maps so the
// other participant's view is unaffected.
func (e *Engine) UpdateChatSettings(ctx context.Context, chatID string, settings models.ChatSettings) error {
	e.mu.Lock()
	user := e.user
	if user == nil {
		e.mu.Unlock()
		return fmt.Errorf("no active user")
	}
	for i := range e.chats {
		if e.chats[i].ID != chatID {
			continue
		}
		if settings.Wallpaper != nil {
			if e.chats[i].Wallpapers == nil {
				e.chats[i].Wallpapers = map[string]string{}
			}
			e.chats[i].Wallpapers[user.ID] = *settings.Wallpaper
			e.chats[i].Wallpaper = *settings.Wallpaper
		}
		if settings.WallpaperOpacity != nil {
			if e.chats[i].WallpaperOpacities == nil {
				e.chats[i].WallpaperOpacities = map[string]float64{}
			}
			e.chats[i].WallpaperOpacities[user.ID] = *settings.WallpaperOpacity
			e.chats[i].WallpaperOpacity = *settings.WallpaperOpacity
		}
		break
	}
	e.persistChatsLocked()
	guest := user.IsGuest()
	uid := user.ID
	e.mu.Unlock()

	if guest || e.remoteChats == nil {
		return nil
	}

	fields := map[string]interface{}{}
	if settings.Wallpaper != nil {
		fields["wallpapers."+uid] = *settings.Wallpaper
	}
	if settings.WallpaperOpacity != nil {
		fields["wallpaperOpacities."+uid] = *settings.WallpaperOpacity
	}
	if len(fields) == 0 {
		return nil
	}
	go func() {
		if err := e.remoteChats.Update(context.Background(), chatID, fields); err != nil {
			e.logRemoteFailure(err, "chat settings")
		}
	}()
	return nil
}

// ClearChat drops the actor's local message history for one chat.
func (e *Engine) ClearChat(chatID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.messages, chatID)
	e.persistMessagesLocked()
}

// DeleteChat removes the chat and its messages from the actor's local view.
// Removal does not propagate to the other participant.
func (e *Engine) DeleteChat(chatID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.user == nil {
		return fmt.Errorf("no active user")
	}
	kept := e.chats[:0]
	for _, c := range e.chats {
		if c.ID != chatID {
			kept = append(kept, c)
		}
	}
	e.chats = kept
	e.persistChatsLocked()
	delete(e.messages, chatID)
	e.persistMessagesLocked()
	return nil
}
