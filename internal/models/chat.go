package models

import (
	"sort"
	"strings"
)

// ChatTypePrivate is the only chat type currently exercised.
const ChatTypePrivate = "private"

// ParticipantInfo is the cached display data for one chat participant.
// Each participant sees the other party's name and avatar, so the chat
// document caches both sides.
type ParticipantInfo struct {
	Name   string `json:"name" firestore:"name"`
	Avatar string `json:"avatar" firestore:"avatar"`
}

// Chat is a private conversation, stored in the chats collection under a
// deterministic pair id so both participants converge on the same document.
type Chat struct {
	ID                 string                     `json:"id" firestore:"id"`
	Type               string                     `json:"type" firestore:"type"`
	Name               string                     `json:"name,omitempty" firestore:"-"`
	Avatar             string                     `json:"avatar,omitempty" firestore:"-"`
	LastMessage        string                     `json:"lastMessage" firestore:"lastMessage"`
	LastMessageTime    int64                      `json:"lastMessageTime" firestore:"lastMessageTime"`
	UnreadCounts       map[string]int             `json:"unreadCounts,omitempty" firestore:"unreadCounts,omitempty"`
	Participants       []string                   `json:"participants" firestore:"participants"`
	ParticipantData    map[string]ParticipantInfo `json:"participantData,omitempty" firestore:"participantData,omitempty"`
	Wallpapers         map[string]string          `json:"wallpapers,omitempty" firestore:"wallpapers,omitempty"`
	WallpaperOpacities map[string]float64         `json:"wallpaperOpacities,omitempty" firestore:"wallpaperOpacities,omitempty"`

	// Per-viewer projections of the maps above, filled by ProjectFor.
	Wallpaper        string  `json:"wallpaper,omitempty" firestore:"-"`
	WallpaperOpacity float64 `json:"wallpaperOpacity,omitempty" firestore:"-"`
}

// ChatID derives the deterministic chat document id for a participant pair.
// The result is identical regardless of which participant initiates.
func ChatID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// OtherParticipant returns the participant other than the given viewer.
// Falls back to the viewer's own id for malformed single-party chats.
func (c *Chat) OtherParticipant(viewerID string) string {
	for _, p := range c.Participants {
		if p != viewerID {
			return p
		}
	}
	// Guest chats created before a remote sync may only carry the pair id.
	for _, p := range strings.Split(c.ID, "_") {
		if p != viewerID {
			return p
		}
	}
	return viewerID
}

// ProjectFor resolves the viewer-dependent fields: the displayed name and
// avatar come from the other party's cached info, the wallpaper settings
// from the viewer's own entries.
func (c *Chat) ProjectFor(viewerID string) {
	otherID := c.OtherParticipant(viewerID)
	if info, ok := c.ParticipantData[otherID]; ok {
		c.Name = info.Name
		c.Avatar = info.Avatar
	}
	c.Wallpaper = c.Wallpapers[viewerID]
	c.WallpaperOpacity = c.WallpaperOpacities[viewerID]
}

// UnreadFor returns the viewer's unread counter for this chat.
func (c *Chat) UnreadFor(viewerID string) int {
	return c.UnreadCounts[viewerID]
}

// ChatSettings carries the per-user presentation settings a participant can
// change. Nil fields are left untouched.
type ChatSettings struct {
	Wallpaper        *string  `json:"wallpaper,omitempty"`
	WallpaperOpacity *float64 `json:"wallpaperOpacity,omitempty"`
}
