package model

import "time"

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeDocument MessageType = "document"
	MessageTypeVoice    MessageType = "voice"
	MessageTypeSystem   MessageType = "system"
)

// MessageStatus is the delivery lifecycle stage of a message. Transitions are
// strictly monotonic: sending -> sent -> delivered -> read, with failed as the
// only exit from sending. A retry of a failed send is a brand-new message.
type MessageStatus string

const (
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// statusRank orders the forward-only lifecycle. failed ranks below sent so the
// only legal move out of it is nothing.
var statusRank = map[MessageStatus]int{
	MessageStatusSending:   0,
	MessageStatusFailed:    1,
	MessageStatusSent:      1,
	MessageStatusDelivered: 2,
	MessageStatusRead:      3,
}

// CanTransition reports whether moving from to next is a legal forward step.
// Re-applying the current status is allowed (idempotent no-op for callers).
func (s MessageStatus) CanTransition(next MessageStatus) bool {
	if s == next {
		return true
	}
	if s == MessageStatusFailed || next == MessageStatusFailed {
		// failed is terminal and only reachable from sending.
		return s == MessageStatusSending && next == MessageStatusFailed
	}
	return statusRank[next] > statusRank[s]
}

// MediaMeta is the descriptor returned by the upload collaborator. The core
// never performs uploads itself; it only persists what it is handed.
type MediaMeta struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Type         string `json:"type"`
	Size         int64  `json:"size"`
	DurationSecs int    `json:"duration_secs,omitempty"`
}

// LinkPreview is precomputed by the link-preview collaborator; the core stores
// and renders it but never fetches it.
type LinkPreview struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Favicon     string `json:"favicon,omitempty"`
}

type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       string        `json:"sender_id"`
	ReceiverID     string        `json:"receiver_id"`
	Content        string        `json:"content"`
	MessageType    MessageType   `json:"message_type"`
	Status         MessageStatus `json:"status"`
	Read           bool          `json:"read"`
	CreatedAt      time.Time     `json:"created_at"`
	Seq            int64         `json:"seq"`

	Media       *MediaMeta   `json:"media,omitempty"`
	LinkPreview *LinkPreview `json:"link_preview,omitempty"`

	ReplyToID *string  `json:"reply_to_id,omitempty"`
	ReplyTo   *Message `json:"reply_to,omitempty"`

	Forwarded         bool   `json:"forwarded,omitempty"`
	ForwardedFrom     string `json:"forwarded_from,omitempty"`
	OriginalMessageID string `json:"original_message_id,omitempty"`

	Edited   bool       `json:"edited,omitempty"`
	EditedAt *time.Time `json:"edited_at,omitempty"`
	Deleted  bool       `json:"deleted"`

	StarredBy []string        `json:"starred_by,omitempty"`
	Reactions []ReactionGroup `json:"reactions,omitempty"`

	Sender *UserPublic `json:"sender,omitempty"`
}

// DeletedPlaceholder is what every read path renders in place of the content
// of a soft-deleted message, including reply quotes.
const DeletedPlaceholder = "This message was deleted"

// Redact hides the content of a soft-deleted message. The row itself is kept
// so ordering and reply references stay intact.
func (m *Message) Redact() {
	if !m.Deleted {
		return
	}
	m.Content = DeletedPlaceholder
	m.Media = nil
	m.LinkPreview = nil
	m.Reactions = nil
}

// Reaction is one user's reaction to a message. A user holds at most one
// reaction per message; selecting a new emoji replaces the previous one, and
// selecting the same emoji again removes it.
type Reaction struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionGroup is the per-emoji aggregate for display. Count is always
// derived from the user set, never tracked independently.
type ReactionGroup struct {
	Emoji string     `json:"emoji"`
	Count int        `json:"count"`
	Users []Reaction `json:"users"`
}
