package ws

import (
	"time"

	"github.com/campusconnect/messaging/internal/model"
)

type EventType string

// Client -> server commands.
const (
	EventSubscribe         EventType = "subscribe"
	EventUnsubscribe       EventType = "unsubscribe"
	EventSubscribePresence EventType = "subscribe_presence"
	EventSendMessage       EventType = "send_message"
	EventEditMessage       EventType = "edit_message"
	EventDeleteMessage     EventType = "delete_message"
	EventReact             EventType = "react"
	EventStarMessage       EventType = "star_message"
	EventUnstarMessage     EventType = "unstar_message"
	EventForwardMessage    EventType = "forward_message"
	EventMarkRead          EventType = "mark_read"
	EventTyping            EventType = "typing"
	EventHeartbeat         EventType = "heartbeat"
)

// Server -> client events.
const (
	EventNewMessage          EventType = "new_message"
	EventMessageEdited       EventType = "message_edited"
	EventMessageDeleted      EventType = "message_deleted"
	EventMessageStarred      EventType = "message_starred"
	EventReactionUpdated     EventType = "reaction_updated"
	EventReceipt             EventType = "receipt"
	EventPresence            EventType = "presence"
	EventUnreadCount         EventType = "unread_count"
	EventConversationCreated EventType = "conversation_created"
	EventError               EventType = "error"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Content        string    `json:"content,omitempty"`

	// ClientMsgID correlates the server's ack (or error) with the client's
	// optimistic "sending" entry, so a send either confirms or visibly fails.
	ClientMsgID string `json:"client_msg_id,omitempty"`

	MessageType model.MessageType  `json:"message_type,omitempty"`
	Media       *model.MediaMeta   `json:"media,omitempty"`
	LinkPreview *model.LinkPreview `json:"link_preview,omitempty"`

	ReplyToID string `json:"reply_to_id,omitempty"`

	// For edit/delete/react/star/forward.
	MessageID string `json:"message_id,omitempty"`
	Emoji     string `json:"emoji,omitempty"`

	// For forward.
	TargetConversationID string `json:"target_conversation_id,omitempty"`

	// For typing and heartbeat.
	IsTyping bool `json:"is_typing,omitempty"`
	Active   bool `json:"active,omitempty"`

	// For subscribe_presence.
	UserIDs []string `json:"user_ids,omitempty"`
}

// OutgoingMessage is what the server sends to the client. Payloads are typed
// structs to keep the hot path off map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// NewMessagePayload carries an accepted message; ClientMsgID echoes back to
// the sender only.
type NewMessagePayload struct {
	Message     *model.Message `json:"message"`
	ClientMsgID string         `json:"client_msg_id,omitempty"`
}

// MessageEditedPayload is broadcast when a message is edited.
type MessageEditedPayload struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	Content        string    `json:"content"`
	EditedAt       time.Time `json:"edited_at"`
}

// MessageDeletedPayload is broadcast when a message is soft-deleted. Viewers
// swap in the deletion placeholder; the row itself stays.
type MessageDeletedPayload struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	Placeholder    string `json:"placeholder"`
}

// MessageStarredPayload is sent to the acting user when their star set for a
// message changes.
type MessageStarredPayload struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	Starred        bool   `json:"starred"`
}

// ReactionUpdatedPayload is broadcast with the full recomputed groups, so
// clients never maintain their own counters.
type ReactionUpdatedPayload struct {
	MessageID      string                `json:"message_id"`
	ConversationID string                `json:"conversation_id"`
	Reactions      []model.ReactionGroup `json:"reactions"`
}

// ReceiptPayload is broadcast when a user's incoming messages in a
// conversation move to delivered or read.
type ReceiptPayload struct {
	ConversationID string              `json:"conversation_id"`
	UserID         string              `json:"user_id"`
	Status         model.MessageStatus `json:"status"`
}

// TypingPayload is broadcast while a user is typing; it is never persisted
// and expires on its own if the stop signal is lost.
type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

// UnreadCountPayload pushes the recomputed per-conversation and global
// unread counts to one user.
type UnreadCountPayload struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Count          int    `json:"count"`
	Total          int    `json:"total"`
}

// ErrorPayload reports a failed command; ClientMsgID is set for failed sends
// so the optimistic entry can be marked failed instead of vanishing.
type ErrorPayload struct {
	Message     string `json:"message"`
	ClientMsgID string `json:"client_msg_id,omitempty"`
}
