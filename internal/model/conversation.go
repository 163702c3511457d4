package model

import "time"

// Conversation is a strictly two-party messaging channel. Its identity is the
// unordered participant pair: ParticipantLo and ParticipantHi hold the two user
// ids in lexicographic order so that (A,B) and (B,A) map to the same row.
type Conversation struct {
	ID            string    `json:"id"`
	ParticipantLo string    `json:"-"`
	ParticipantHi string    `json:"-"`
	Participants  []string  `json:"participants"`
	CreatedAt     time.Time `json:"created_at"`

	// LastMessage is a denormalized snapshot for list rendering, updated in
	// the same transaction as every accepted send.
	LastMessage *LastMessage `json:"last_message,omitempty"`
}

// LastMessage is the denormalized preview stored on the conversation row.
type LastMessage struct {
	Content   string    `json:"content"`
	SenderID  string    `json:"sender_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SortPair returns the participant pair in lexicographic order.
func SortPair(a, b string) (lo, hi string) {
	if a < b {
		return a, b
	}
	return b, a
}

// Peer returns the other participant of the conversation.
func (c *Conversation) Peer(userID string) string {
	if c.ParticipantLo == userID {
		return c.ParticipantHi
	}
	return c.ParticipantLo
}

// HasParticipant reports whether userID is party to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.ParticipantLo == userID || c.ParticipantHi == userID
}

// OverlayKind selects which per-user soft state Overlay mutation targets.
type OverlayKind string

const (
	OverlayPinned   OverlayKind = "pinned"
	OverlayArchived OverlayKind = "archived"
	OverlayMuted    OverlayKind = "muted"
)

// Overlay is one user's soft state for a conversation. It never affects the
// other participant's view.
type Overlay struct {
	ConversationID string     `json:"conversation_id"`
	UserID         string     `json:"user_id"`
	Pinned         bool       `json:"pinned"`
	Archived       bool       `json:"archived"`
	Muted          bool       `json:"muted"`
	ClearedAt      *time.Time `json:"cleared_at,omitempty"`
}

// ConversationView is a conversation enriched for the list page: the caller's
// overlay, the peer's profile and presence, and the caller's unread count.
type ConversationView struct {
	Conversation Conversation `json:"conversation"`
	Overlay      Overlay      `json:"overlay"`
	Peer         *UserPublic  `json:"peer,omitempty"`
	PeerPresence *Presence    `json:"peer_presence,omitempty"`
	UnreadCount  int          `json:"unread_count"`
}
