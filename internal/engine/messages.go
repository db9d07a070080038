package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/RafaelMokgaha/Blouconnectapplication/internal/localstore"
	"github.com/RafaelMokgaha/Blouconnectapplication/internal/models"
	"github.com/RafaelMokgaha/Blouconnectapplication/internal/remote"
)

// SendMessage delivers a message into a chat. The sender's in-memory view is
// updated synchronously before any remote work, so the sender never waits.
// Guests get simulated peer delivery through the recipient's local keys;
// authenticated users get a single batched remote commit that also creates
// the chat document when it does not exist yet.
func (e *Engine) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	if err := validator.New().Struct(req); err != nil {
		return nil, err
	}

	e.mu.Lock()
	user := e.user
	if user == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("no active user")
	}

	msg := models.Message{
		ID:        e.nextTimeID(),
		SenderID:  user.ID,
		Content:   req.Content,
		Type:      req.Type,
		Timestamp: time.Now().UnixMilli(),
		Duration:  req.Duration,
	}

	recipientID := e.recipientForLocked(req.ChatID, user.ID)
	knownLocally := false
	for _, c := range e.chats {
		if c.ID == req.ChatID {
			knownLocally = true
			break
		}
	}

	if user.IsGuest() || e.remoteChats == nil {
		e.sendAsGuestLocked(req.ChatID, recipientID, *user, msg)
		e.mu.Unlock()
		return &msg, nil
	}

	// Authenticated: optimistic in-memory update only; the live subscription
	// reconciles persisted state once the server acknowledges.
	e.messages[req.ChatID] = append(e.messages[req.ChatID], msg)
	for i := range e.chats {
		if e.chats[i].ID == req.ChatID {
			e.chats[i].LastMessage = msg.Preview()
			e.chats[i].LastMessageTime = msg.Timestamp
			break
		}
	}
	sort.SliceStable(e.chats, func(i, j int) bool {
		return e.chats[i].LastMessageTime > e.chats[j].LastMessageTime
	})
	senderName := user.FullName
	senderAvatar := user.Avatar
	senderID := user.ID
	e.mu.Unlock()

	go e.commitMessage(req.ChatID, senderID, senderName, senderAvatar, recipientID, knownLocally, msg)
	return &msg, nil
}

// commitMessage performs the remote side of an authenticated send: one
// batched write carrying the message document plus the chat upsert. When the
// chat may not exist remotely yet, an existence probe decides whether the
// immutable chat-creation fields join the same commit, so chat creation and
// first message land together. Failures are logged and not retried; the
// optimistic local state remains authoritative.
func (e *Engine) commitMessage(chatID, senderID, senderName, senderAvatar, recipientID string, knownLocally bool, msg models.Message) {
	ctx := context.Background()

	writeImmutables := false
	if !knownLocally {
		if _, exists, err := e.remoteChats.Get(ctx, chatID); err == nil {
			writeImmutables = !exists
		}
	}

	fields := map[string]interface{}{
		"id":              chatID,
		"lastMessage":     msg.Preview(),
		"lastMessageTime": msg.Timestamp,
		"updatedAt":       remote.ServerTimestamp,
	}
	if recipientID != "" {
		fields["unreadCounts"] = map[string]interface{}{
			recipientID: remote.Increment(1),
		}
	}

	if writeImmutables {
		participants := []string{senderID}
		if recipientID != "" {
			participants = []string{senderID, recipientID}
		}
		fields["participants"] = participants
		fields["type"] = models.ChatTypePrivate
		fields["createdAt"] = remote.ServerTimestamp
		// Only the sender's own display data is known here; the recipient's
		// side fills in when they open the chat.
		fields["participantData"] = map[string]interface{}{
			senderID: map[string]interface{}{"name": senderName, "avatar": senderAvatar},
		}
		counts := map[string]interface{}{senderID: 0}
		if recipientID != "" {
			counts[recipientID] = 1
		}
		fields["unreadCounts"] = counts
	}

	if err := e.remoteChats.SendMessage(ctx, chatID, &msg, fields); err != nil {
		e.logRemoteFailure(err, "message send")
	}
}

// sendAsGuestLocked applies a guest (or offline) send: the sender's local
// views are persisted, then the recipient's per-actor keys are written
// directly, standing in for the server push the recipient's session would
// otherwise receive.
func (e *Engine) sendAsGuestLocked(chatID, recipientID string, sender models.User, msg models.Message) {
	e.messages[chatID] = append(e.messages[chatID], msg)
	e.persistMessagesLocked()

	for i := range e.chats {
		if e.chats[i].ID == chatID {
			e.chats[i].LastMessage = msg.Preview()
			e.chats[i].LastMessageTime = msg.Timestamp
			break
		}
	}
	sort.SliceStable(e.chats, func(i, j int) bool {
		return e.chats[i].LastMessageTime > e.chats[j].LastMessageTime
	})
	e.persistChatsLocked()

	if recipientID != "" {
		e.simulatePeerDelivery(chatID, recipientID, sender, msg)
	}
}

// simulatePeerDelivery synthesizes the recipient's view of the message by
// writing into their local keys: the message is appended to their per-chat
// list and their chat entry gains an incremented unread count and a fresh
// preview. The recipient's poll or storage notification surfaces it as if a
// server had pushed it.
func (e *Engine) simulatePeerDelivery(chatID, recipientID string, sender models.User, msg models.Message) {
	// Recipient messages.
	msgsKey := localstore.MessagesKey(recipientID)
	rMsgs := make(map[string][]models.Message)
	if raw, ok := e.store.Get(msgsKey); ok {
		if err := json.Unmarshal([]byte(raw), &rMsgs); err != nil {
			e.log.Warn().Err(err).Str("recipient", recipientID).Msg("resetting corrupt recipient messages")
			rMsgs = make(map[string][]models.Message)
		}
	}
	rMsgs[chatID] = append(rMsgs[chatID], msg)
	if raw, err := json.Marshal(rMsgs); err == nil {
		e.store.Set(msgsKey, string(raw))
	}

	// Recipient chat list.
	chatsKey := localstore.ChatsKey(recipientID)
	var rChats []models.Chat
	if raw, ok := e.store.Get(chatsKey); ok {
		if err := json.Unmarshal([]byte(raw), &rChats); err != nil {
			e.log.Warn().Err(err).Str("recipient", recipientID).Msg("resetting corrupt recipient chats")
			rChats = nil
		}
	}

	found := false
	for i := range rChats {
		if rChats[i].ID != chatID {
			continue
		}
		counts := make(map[string]int, len(rChats[i].UnreadCounts)+1)
		for k, v := range rChats[i].UnreadCounts {
			counts[k] = v
		}
		counts[recipientID]++
		rChats[i].UnreadCounts = counts
		rChats[i].LastMessage = msg.Preview()
		rChats[i].LastMessageTime = msg.Timestamp
		found = true
		break
	}
	if !found {
		// First contact: synthesize the chat the way a server-created one
		// would look from the recipient's side, showing the sender's identity.
		rChats = append(rChats, models.Chat{
			ID:              chatID,
			Type:            models.ChatTypePrivate,
			Participants:    []string{sender.ID, recipientID},
			Name:            sender.FullName,
			Avatar:          sender.Avatar,
			LastMessage:     msg.Preview(),
			LastMessageTime: msg.Timestamp,
			UnreadCounts:    map[string]int{recipientID: 1},
			ParticipantData: map[string]models.ParticipantInfo{
				sender.ID:   {Name: sender.FullName, Avatar: sender.Avatar},
				recipientID: {Name: "You"},
			},
		})
	}
	sort.SliceStable(rChats, func(i, j int) bool {
		return rChats[i].LastMessageTime > rChats[j].LastMessageTime
	})
	if raw, err := json.Marshal(rChats); err == nil {
		e.store.Set(chatsKey, string(raw))
	}
}

// recipientForLocked resolves the other participant of a chat, preferring
// the locally known participant list over parsing the pair id, since ids may
// themselves contain the separator (guest ids do).
func (e *Engine) recipientForLocked(chatID, selfID string) string {
	for _, c := range e.chats {
		if c.ID == chatID {
			return c.OtherParticipant(selfID)
		}
	}
	if rest, ok := strings.CutPrefix(chatID, selfID+"_"); ok {
		return rest
	}
	if rest, ok := strings.CutSuffix(chatID, "_"+selfID); ok {
		return rest
	}
	return ""
}
