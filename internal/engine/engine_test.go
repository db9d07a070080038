package engine

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/RafaelMokgaha/Blouconnectapplication/internal/localstore"
	"github.com/RafaelMokgaha/Blouconnectapplication/internal/models"
	"github.com/RafaelMokgaha/Blouconnectapplication/internal/session"
)

// testPollInterval is long enough that background polling never interferes
// with deterministic assertions; tests drive Reload directly.
const testPollInterval = time.Hour

func newTestStore(t *testing.T) *localstore.SQLiteStore {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "store.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newGuestEngine(t *testing.T, store *localstore.SQLiteStore) (*Engine, *session.Manager) {
	t.Helper()
	sess := session.NewManager(nil, nil, store, nil, zerolog.Nop())
	e := New(store, nil, nil, sess, testPollInterval, zerolog.Nop())
	t.Cleanup(e.Close)
	return e, sess
}

func loginAs(t *testing.T, sess *session.Manager, id, name, village string) *models.User {
	t.Helper()
	user := &models.User{ID: id, FullName: name, Village: village, Avatar: name + ".png"}
	require.NoError(t, sess.Login(context.Background(), user))
	return sess.Current()
}

func addTextPost(t *testing.T, e *Engine, content, village string) *models.Post {
	t.Helper()
	post, err := e.AddPost(context.Background(), models.CreatePostRequest{
		Content:  content,
		Village:  village,
		Category: models.CategoryGeneral,
	})
	require.NoError(t, err)
	return post
}

func TestGuestPostLifecycle(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")

	addTextPost(t, e, "Hello village", "Riverside")

	feed := e.Posts()
	require.Len(t, feed, 1)
	require.Equal(t, "Hello village", feed[0].Content)
	require.Equal(t, "Riverside", feed[0].Village)
	require.Zero(t, feed[0].Likes)
	require.Zero(t, feed[0].Comments)

	postID := feed[0].ID
	require.NoError(t, e.ReactToPost(postID, "👍"))
	feed = e.Posts()
	require.Equal(t, 1, feed[0].Likes)
	require.Equal(t, []models.Reaction{{UserID: "guest_alice", Emoji: "👍"}}, feed[0].Reactions)

	require.NoError(t, e.ReactToPost(postID, "👍"))
	feed = e.Posts()
	require.Zero(t, feed[0].Likes)
	require.Empty(t, feed[0].Reactions)

	require.NoError(t, e.EditPost(context.Background(), postID, "Hello everyone"))
	feed = e.Posts()
	require.Equal(t, "Hello everyone", feed[0].Content)
	require.True(t, feed[0].IsEdited)
	require.Zero(t, feed[0].Likes)
	require.Zero(t, feed[0].Comments)
}

func TestReactionSequenceKeepsOneEntryPerUser(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	user := loginAs(t, sess, "guest_alice", "Alice", "Riverside")

	post := addTextPost(t, e, "hi", "Riverside")

	sequence := []string{"👍", "❤️", "❤️", "😮", "😆", "😆"}
	for _, emoji := range sequence {
		require.NoError(t, e.ReactToPost(post.ID, emoji))

		current := e.Posts()[0]
		count := 0
		for _, r := range current.Reactions {
			if r.UserID == user.ID {
				count++
			}
		}
		require.LessOrEqual(t, count, 1, "at most one reaction per user")
		require.Equal(t, len(current.Reactions), current.Likes, "likes always equals reaction count")
	}

	// 👍 on, ❤️ replace, ❤️ off, 😮 on, 😆 replace, 😆 off.
	require.Empty(t, e.Posts()[0].Reactions)
}

// A feed snapshot handed to a caller must stay frozen while later commands
// mutate the live state, including the nested reaction and comment lists.
func TestFeedSnapshotIsUnaffectedByLaterCommands(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")

	post := addTextPost(t, e, "hi", "Riverside")
	require.NoError(t, e.ReactToPost(post.ID, "👍"))
	_, err := e.AddComment(models.AddCommentRequest{PostID: post.ID, Content: "first"})
	require.NoError(t, err)

	snapshot := e.Posts()
	require.Equal(t, "👍", snapshot[0].Reactions[0].Emoji)
	require.Equal(t, "Alice", snapshot[0].CommentsList[0].UserName)

	require.NoError(t, e.ReactToPost(post.ID, "❤️"))
	name := "Renamed"
	_, err = e.UpdateProfile(context.Background(), ProfileUpdate{FullName: &name})
	require.NoError(t, err)
	_, err = e.AddComment(models.AddCommentRequest{PostID: post.ID, Content: "second"})
	require.NoError(t, err)

	require.Equal(t, "👍", snapshot[0].Reactions[0].Emoji)
	require.Equal(t, "Alice", snapshot[0].CommentsList[0].UserName)
	require.Len(t, snapshot[0].CommentsList, 1)

	current := e.Posts()[0]
	require.Equal(t, "❤️", current.Reactions[0].Emoji)
	require.Equal(t, "Renamed", current.CommentsList[0].UserName)
	require.Len(t, current.CommentsList, 2)
}

func TestCommentsAppendWithAuthorSnapshot(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")

	post := addTextPost(t, e, "hi", "Riverside")
	comment, err := e.AddComment(models.AddCommentRequest{PostID: post.ID, Content: "welcome!"})
	require.NoError(t, err)
	require.Equal(t, "Alice", comment.UserName)

	updated := e.Posts()[0]
	require.Equal(t, 1, updated.Comments)
	require.Len(t, updated.CommentsList, 1)
	require.Equal(t, "welcome!", updated.CommentsList[0].Content)
}

func TestRepostCopiesContentUnderNewIdentity(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")
	original := addTextPost(t, e, "original words", "Riverside")

	loginAs(t, sess, "guest_bob", "Bob", "Hilltop")
	repost, err := e.Repost(context.Background(), original.ID)
	require.NoError(t, err)
	require.True(t, repost.IsRepost)
	require.Equal(t, "Alice", repost.OriginalAuthor)
	require.Equal(t, "original words", repost.Content)
	require.Equal(t, "guest_bob", repost.UserID)
	require.NotEqual(t, original.ID, repost.ID)
	require.Zero(t, repost.Likes)
	require.Zero(t, repost.Comments)

	require.Len(t, e.Posts(), 2)
}

func TestDeletePostOwnerOnly(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")
	post := addTextPost(t, e, "mine", "Riverside")

	loginAs(t, sess, "guest_bob", "Bob", "Hilltop")
	require.Error(t, e.DeletePost(context.Background(), post.ID))

	loginAs(t, sess, "guest_alice", "Alice", "Riverside")
	require.NoError(t, e.DeletePost(context.Background(), post.ID))
	require.Empty(t, e.Posts())
}

func TestProfileUpdateFansOutToAuthoredContent(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")

	post := addTextPost(t, e, "post one", "Riverside")
	_, err := e.AddComment(models.AddCommentRequest{PostID: post.ID, Content: "self comment"})
	require.NoError(t, err)

	name := "Alice Mokoena"
	village := "Hilltop"
	avatar := "new.png"
	followers := 1000
	likes := 10000
	updated, err := e.UpdateProfile(context.Background(), ProfileUpdate{
		FullName:   &name,
		Village:    &village,
		Avatar:     &avatar,
		Followers:  &followers,
		TotalLikes: &likes,
	})
	require.NoError(t, err)
	require.True(t, updated.IsVerified, "1000 followers and 10000 likes is verified")

	refreshed := e.Posts()[0]
	require.Equal(t, "Alice Mokoena", refreshed.UserName)
	require.Equal(t, "new.png", refreshed.UserAvatar)
	require.Equal(t, "Hilltop", refreshed.Village)
	require.True(t, refreshed.UserIsVerified)
	require.Equal(t, "Alice Mokoena", refreshed.CommentsList[0].UserName)
	require.Equal(t, "new.png", refreshed.CommentsList[0].UserAvatar)
}

func TestToggleFollowKeepsSetUnique(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")

	require.NoError(t, e.ToggleFollow(context.Background(), "guest_bob"))
	require.True(t, e.IsFollowing("guest_bob"))
	require.Equal(t, 1, e.User().Following)
	require.Equal(t, []string{"guest_bob"}, e.User().FollowingIDs)

	require.NoError(t, e.ToggleFollow(context.Background(), "guest_bob"))
	require.False(t, e.IsFollowing("guest_bob"))
	require.Zero(t, e.User().Following)
	require.Empty(t, e.User().FollowingIDs)

	require.Error(t, e.ToggleFollow(context.Background(), "guest_alice"), "cannot follow yourself")
}

func TestThemePreferencePersists(t *testing.T) {
	store := newTestStore(t)
	e, _ := newGuestEngine(t, store)

	require.False(t, e.DarkMode())
	require.True(t, e.ToggleDarkMode())

	val, ok := store.Get(localstore.KeyTheme)
	require.True(t, ok)
	require.Equal(t, "dark", val)

	// A fresh engine on the same store adopts the preference.
	e2, _ := newGuestEngine(t, store)
	require.True(t, e2.DarkMode())
}

func TestReloadToleratesCorruptStoredValue(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")
	addTextPost(t, e, "kept", "Riverside")

	store.Set(localstore.KeyPosts, "{definitely not json")
	e.Reload()
	require.Len(t, e.Posts(), 1, "corrupt snapshot is ignored, state kept")
}

func TestReloadAdoptsExternalWrites(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")

	external := []models.Post{{ID: "42", UserID: "guest_bob", UserName: "Bob", Content: "from elsewhere", Timestamp: 42}}
	raw, err := json.Marshal(external)
	require.NoError(t, err)
	store.Set(localstore.KeyPosts, string(raw))

	e.Reload()
	feed := e.Posts()
	require.Len(t, feed, 1)
	require.Equal(t, "from elsewhere", feed[0].Content)
}

func TestMergeIdempotence(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")

	snapshot := []models.Post{
		{ID: "2", Content: "b", Timestamp: 200},
		{ID: "1", Content: "a", Timestamp: 100},
	}
	e.applyPostSnapshot(snapshot)
	first := e.Posts()
	rev := store.Revision(localstore.KeyPosts)

	e.applyPostSnapshot(snapshot)
	require.Equal(t, first, e.Posts(), "identical snapshot produces no state change")
	require.Equal(t, rev, store.Revision(localstore.KeyPosts), "identical snapshot produces no persistence write")
}

func TestPostMergeKeepsUnsyncedLocalPosts(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")

	local := addTextPost(t, e, "not yet synced", "Riverside")

	snapshot := []models.Post{{ID: "srv1", Content: "server post", Timestamp: local.Timestamp + 1000}}
	e.applyPostSnapshot(snapshot)

	feed := e.Posts()
	require.Len(t, feed, 2)
	require.Equal(t, "srv1", feed[0].ID, "feed is sorted newest first")
	require.Equal(t, local.ID, feed[1].ID, "local-only post survives the merge")

	// The merged result is persisted immediately.
	raw, ok := store.Get(localstore.KeyPosts)
	require.True(t, ok)
	var persisted []models.Post
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	require.Len(t, persisted, 2)
}

func TestChatMergeKeepsLocalOnlyChats(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")

	_, err := e.StartChat(context.Background(), models.User{ID: "guest_bob", FullName: "Bob"})
	require.NoError(t, err)
	localID := models.ChatID("guest_alice", "guest_bob")

	remoteChat := models.Chat{
		ID:              "guest_alice_uid9",
		Type:            models.ChatTypePrivate,
		Participants:    []string{"guest_alice", "uid9"},
		LastMessageTime: time.Now().UnixMilli() + 5000,
	}
	e.applyChatSnapshot([]models.Chat{remoteChat})

	chats := e.Chats()
	require.Len(t, chats, 2)
	require.Equal(t, remoteChat.ID, chats[0].ID, "sorted by last-message time descending")
	require.Equal(t, localID, chats[1].ID, "chat missing from the snapshot is preserved")
}

func TestStartChatIsIdempotentPerPair(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")

	bob := models.User{ID: "guest_bob", FullName: "Bob", Avatar: "bob.png"}
	first, err := e.StartChat(context.Background(), bob)
	require.NoError(t, err)
	second, err := e.StartChat(context.Background(), bob)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, models.ChatID("guest_bob", "guest_alice"), first.ID)
	require.Len(t, e.Chats(), 1)
	require.Equal(t, "Bob", first.Name, "viewer sees the other party's name")
}

func TestGuestMessageDeliverySimulation(t *testing.T) {
	store := newTestStore(t)
	alice, aliceSess := newGuestEngine(t, store)
	loginAs(t, aliceSess, "guest_alice", "Alice", "Riverside")

	bobUser := models.User{ID: "guest_bob", FullName: "Bob", Avatar: "bob.png"}
	chat, err := alice.StartChat(context.Background(), bobUser)
	require.NoError(t, err)

	_, err = alice.SendMessage(context.Background(), models.SendMessageRequest{
		ChatID:  chat.ID,
		Content: "Hi",
		Type:    models.MessageText,
	})
	require.NoError(t, err)

	// Sender's view updates synchronously.
	require.Equal(t, "Hi", alice.Chats()[0].LastMessage)
	require.Len(t, alice.Messages(chat.ID), 1)

	// Recipient's local keys received the simulated push.
	raw, ok := store.Get(localstore.ChatsKey("guest_bob"))
	require.True(t, ok, "recipient chat list must be synthesized")
	var bobChats []models.Chat
	require.NoError(t, json.Unmarshal([]byte(raw), &bobChats))
	require.Len(t, bobChats, 1)
	require.Equal(t, chat.ID, bobChats[0].ID)
	require.Equal(t, "Hi", bobChats[0].LastMessage)
	require.Equal(t, 1, bobChats[0].UnreadCounts["guest_bob"])
	require.Equal(t, "Alice", bobChats[0].Name, "recipient sees the sender's identity")

	// A second engine acting as Bob surfaces the message through the same
	// reload routine the poller uses.
	bob, bobSess := newGuestEngine(t, store)
	require.NoError(t, bobSess.Login(context.Background(), &models.User{ID: "guest_bob", FullName: "Bob", Village: "Hilltop"}))
	require.Len(t, bob.Chats(), 1)
	require.Equal(t, 1, bob.TotalUnread())
	msgs := bob.Messages(chat.ID)
	require.Len(t, msgs, 1)
	require.Equal(t, "Hi", msgs[0].Content)

	// Unread increments by exactly one per message.
	_, err = alice.SendMessage(context.Background(), models.SendMessageRequest{
		ChatID:  chat.ID,
		Content: "Hi again",
		Type:    models.MessageText,
	})
	require.NoError(t, err)
	bob.Reload()
	require.Equal(t, 2, bob.Chats()[0].UnreadCounts["guest_bob"])
	require.Len(t, bob.Messages(chat.ID), 2)
}

func TestMarkChatAsReadZeroesCounterUntilNextMessage(t *testing.T) {
	store := newTestStore(t)
	alice, aliceSess := newGuestEngine(t, store)
	loginAs(t, aliceSess, "guest_alice", "Alice", "Riverside")

	chat, err := alice.StartChat(context.Background(), models.User{ID: "guest_bob", FullName: "Bob"})
	require.NoError(t, err)
	_, err = alice.SendMessage(context.Background(), models.SendMessageRequest{
		ChatID: chat.ID, Content: "Hi", Type: models.MessageText,
	})
	require.NoError(t, err)

	bob, bobSess := newGuestEngine(t, store)
	require.NoError(t, bobSess.Login(context.Background(), &models.User{ID: "guest_bob", FullName: "Bob", Village: "Hilltop"}))
	require.Equal(t, 1, bob.Chats()[0].UnreadCounts["guest_bob"])

	require.NoError(t, bob.MarkChatAsRead(context.Background(), chat.ID))
	require.Zero(t, bob.Chats()[0].UnreadCounts["guest_bob"])
	require.Zero(t, bob.TotalUnread())

	bob.Reload()
	require.Zero(t, bob.Chats()[0].UnreadCounts["guest_bob"], "stays zero until a new message arrives")

	_, err = alice.SendMessage(context.Background(), models.SendMessageRequest{
		ChatID: chat.ID, Content: "More", Type: models.MessageText,
	})
	require.NoError(t, err)
	bob.Reload()
	require.Equal(t, 1, bob.Chats()[0].UnreadCounts["guest_bob"])
}

func TestChatSettingsArePerUser(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")

	chat, err := e.StartChat(context.Background(), models.User{ID: "guest_bob", FullName: "Bob"})
	require.NoError(t, err)

	wallpaper := "sunset.png"
	opacity := 0.4
	require.NoError(t, e.UpdateChatSettings(context.Background(), chat.ID, models.ChatSettings{
		Wallpaper:        &wallpaper,
		WallpaperOpacity: &opacity,
	}))

	updated := e.Chats()[0]
	require.Equal(t, "sunset.png", updated.Wallpapers["guest_alice"])
	require.Equal(t, 0.4, updated.WallpaperOpacities["guest_alice"])
	require.Empty(t, updated.Wallpapers["guest_bob"], "the other participant's view is unaffected")
}

func TestDeleteChatRemovesLocalViewOnly(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")

	chat, err := e.StartChat(context.Background(), models.User{ID: "guest_bob", FullName: "Bob"})
	require.NoError(t, err)
	_, err = e.SendMessage(context.Background(), models.SendMessageRequest{
		ChatID: chat.ID, Content: "Hi", Type: models.MessageText,
	})
	require.NoError(t, err)

	require.NoError(t, e.DeleteChat(chat.ID))
	require.Empty(t, e.Chats())
	require.Empty(t, e.Messages(chat.ID))

	// The recipient's synthesized view is untouched.
	_, ok := store.Get(localstore.ChatsKey("guest_bob"))
	require.True(t, ok)
}

func TestLogoutClearsChatsAndStopsBleed(t *testing.T) {
	store := newTestStore(t)
	e, sess := newGuestEngine(t, store)
	loginAs(t, sess, "guest_alice", "Alice", "Riverside")

	_, err := e.StartChat(context.Background(), models.User{ID: "guest_bob", FullName: "Bob"})
	require.NoError(t, err)
	require.Len(t, e.Chats(), 1)

	sess.Logout(context.Background())
	require.Empty(t, e.Chats(), "chats are cleared on logout")
	require.Zero(t, e.TotalUnread())

	// A different actor on the same device must not inherit Alice's chats.
	loginAs(t, sess, "guest_carol", "Carol", "Riverside")
	require.Empty(t, e.Chats())
}
