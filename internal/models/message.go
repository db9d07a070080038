package models

// MessageType identifies the payload carried by a message.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageVoice MessageType = "voice"
)

// Message is a single chat entry, stored append-only under
// chats/{chatId}/messages and ordered by timestamp ascending. Content is raw
// text, or a reference URL for media and voice notes.
type Message struct {
	ID        string      `json:"id" firestore:"id"`
	SenderID  string      `json:"senderId" firestore:"senderId"`
	Content   string      `json:"content" firestore:"content"`
	Type      MessageType `json:"type" firestore:"type"`
	Timestamp int64       `json:"timestamp" firestore:"timestamp"`
	Duration  string      `json:"duration,omitempty" firestore:"duration,omitempty"`
}

// Preview renders the chat-list preview text for the message.
func (m *Message) Preview() string {
	if m.Type == MessageText {
		return m.Content
	}
	return "Sent a " + string(m.Type)
}

// SendMessageRequest defines the input for sending a chat message.
type SendMessageRequest struct {
	ChatID   string      `json:"chatId" validate:"required"`
	Content  string      `json:"content" validate:"required"`
	Type     MessageType `json:"type" validate:"required,oneof=text image video voice"`
	Duration string      `json:"duration,omitempty"`
}
