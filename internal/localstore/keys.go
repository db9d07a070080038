package localstore

// Well-known keys. Posts are global so the feed survives account switches on
// the same device; chats and messages are scoped per actor.
const (
	KeyTheme     = "theme"
	KeyPosts     = "posts"
	KeyGuestUser = "guestUser"
)

// UserKey returns the cached-profile key for a user id.
func UserKey(userID string) string {
	return "user:" + userID
}

// ChatsKey returns the per-actor chat list key.
func ChatsKey(userID string) string {
	return "chats:" + userID
}

// MessagesKey returns the per-actor message map key.
func MessagesKey(userID string) string {
	return "messages:" + userID
}
