package ws

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/campusconnect/messaging/internal/logger"
	"github.com/campusconnect/messaging/internal/model"
	"github.com/campusconnect/messaging/internal/presence"
	"github.com/campusconnect/messaging/internal/repository"
)

// Notifier emits out-of-band notification events (push/email). Delivery is
// advisory and at-least-once; a nil Notifier disables it.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, recipientID, senderName, body string, data map[string]string)
}

// IdentityResolver looks up the identity collaborator's profile snapshot used
// to stamp sender metadata on outgoing events.
type IdentityResolver interface {
	Lookup(ctx context.Context, userID string) (*model.UserPublic, error)
}

// Config holds the hub's policy knobs.
type Config struct {
	MaxConns int
	// EditWindow bounds how long after the original send a message stays
	// editable, measured from the store-assigned send time.
	EditWindow time.Duration
	// TypingTTL bounds how long a typing indicator survives without refresh.
	TypingTTL time.Duration
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	convSubs map[string]map[*Client]struct{}
	total    int

	cfg       Config
	convRepo  *repository.ConversationRepository
	msgRepo   *repository.MessageRepository
	reactRepo *repository.ReactionRepository
	tracker   *presence.Tracker
	typing    *typingTracker
	notifier  Notifier
	identity  IdentityResolver

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(
	cfg Config,
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	reactRepo *repository.ReactionRepository,
	tracker *presence.Tracker,
	identity IdentityResolver,
	notifier Notifier,
) *Hub {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 10000
	}
	if cfg.EditWindow <= 0 {
		cfg.EditWindow = 15 * time.Minute
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		convSubs:   make(map[string]map[*Client]struct{}),
		cfg:        cfg,
		convRepo:   convRepo,
		msgRepo:    msgRepo,
		reactRepo:  reactRepo,
		tracker:    tracker,
		typing:     newTypingTracker(cfg.TypingTTL),
		notifier:   notifier,
		identity:   identity,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

// Run owns client registration and typing expiry until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(ctx, client)
		case client := <-h.unregister:
			h.removeClient(client)
		case now := <-ticker.C:
			h.expireTyping(now)
		}
	}
}

func (h *Hub) shutdown() {
	// Closing done first turns Register/Unregister into no-ops, so clients
	// torn down below cannot block on the unregister channel while nothing
	// drains it.
	close(h.done)

	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.convSubs = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(ctx context.Context, c *Client) {
	h.mu.Lock()
	if h.total >= h.cfg.MaxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.cfg.MaxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.mu.Unlock()

	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	h.tracker.Connect(connCtx, c.userID)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.clients, c.userID)
	}
	for convID := range c.convs {
		if subs, ok := h.convSubs[convID]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.convSubs, convID)
			}
		}
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.tracker.Disconnect(ctx, c.userID)

	// A vanished client stops typing everywhere, without waiting for TTL.
	for _, key := range h.typing.drop(c.userID) {
		h.broadcastTyping(key.conversationID, c.userID, false)
	}
}

// HandleMessage dispatches incoming WebSocket commands.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventSubscribe:
		h.handleSubscribe(ctx, c, msg)
	case EventUnsubscribe:
		h.handleUnsubscribe(c, msg)
	case EventSubscribePresence:
		h.handleSubscribePresence(ctx, c, msg)
	case EventSendMessage:
		h.handleSendMessage(ctx, c, msg)
	case EventEditMessage:
		h.handleEditMessage(ctx, c, msg)
	case EventDeleteMessage:
		h.handleDeleteMessage(ctx, c, msg)
	case EventReact:
		h.handleReact(ctx, c, msg)
	case EventStarMessage:
		h.handleStar(ctx, c, msg, true)
	case EventUnstarMessage:
		h.handleStar(ctx, c, msg, false)
	case EventForwardMessage:
		h.handleForward(ctx, c, msg)
	case EventMarkRead:
		h.handleMarkRead(ctx, c, msg)
	case EventTyping:
		h.handleTyping(c, msg)
	case EventHeartbeat:
		h.tracker.Heartbeat(ctx, c.userID, msg.Active)
	default:
		h.sendError(c, "unknown event type", "")
	}
}

// conversationFor loads the conversation and verifies the caller is party to
// it. Everything the hub does is gated on this check.
func (h *Hub) conversationFor(ctx context.Context, c *Client, conversationID string) (*model.Conversation, error) {
	if conversationID == "" {
		return nil, repository.ErrNotFound
	}
	conv, err := h.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(c.userID) {
		return nil, repository.ErrPermissionDenied
	}
	return conv, nil
}

// handleSubscribe attaches the client to a conversation's live view. The
// subscriber observes all pending incoming messages, which is what moves
// them to delivered (distinct from read, which needs the conversation open).
func (h *Hub) handleSubscribe(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleSubscribe", time.Now())()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conv, err := h.conversationFor(ctx, c, msg.ConversationID)
	if err != nil {
		h.sendError(c, "cannot subscribe: "+errText(err), "")
		return
	}

	h.mu.Lock()
	if _, ok := h.convSubs[conv.ID]; !ok {
		h.convSubs[conv.ID] = make(map[*Client]struct{})
	}
	h.convSubs[conv.ID][c] = struct{}{}
	c.convs[conv.ID] = struct{}{}
	h.mu.Unlock()

	h.deliverPending(ctx, conv, c.userID)
}

func (h *Hub) handleUnsubscribe(c *Client, msg IncomingMessage) {
	if msg.ConversationID == "" {
		return
	}
	h.mu.Lock()
	if subs, ok := h.convSubs[msg.ConversationID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.convSubs, msg.ConversationID)
		}
	}
	delete(c.convs, msg.ConversationID)
	h.mu.Unlock()
}

func (h *Hub) handleSubscribePresence(ctx context.Context, c *Client, msg IncomingMessage) {
	for _, uid := range msg.UserIDs {
		if uid != "" {
			c.watchPresence(ctx, uid)
		}
	}
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleSendMessage", time.Now())()
	if msg.Content == "" && msg.Media == nil {
		h.sendError(c, "content or media required", msg.ClientMsgID)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conv, err := h.conversationFor(ctx, c, msg.ConversationID)
	if err != nil {
		h.sendError(c, "cannot send: "+errText(err), msg.ClientMsgID)
		return
	}

	messageType := model.MessageTypeText
	if msg.MessageType != "" {
		messageType = msg.MessageType
	}
	var replyToID *string
	if msg.ReplyToID != "" {
		replyToID = &msg.ReplyToID
	}

	m := &model.Message{
		ConversationID: conv.ID,
		SenderID:       c.userID,
		ReceiverID:     conv.Peer(c.userID),
		Content:        msg.Content,
		MessageType:    messageType,
		Status:         model.MessageStatusSent,
		Media:          msg.Media,
		LinkPreview:    msg.LinkPreview,
		ReplyToID:      replyToID,
	}
	if err := h.msgRepo.Create(ctx, m); err != nil {
		logger.Errorf("ws save message conv=%s user=%s: %v", conv.ID, c.userID, err)
		h.sendError(c, "failed to save message", msg.ClientMsgID)
		return
	}

	h.stampSender(ctx, m)
	h.attachReplyQuote(ctx, m)

	// Echo with the client correlation id to the sender, plain to the peer.
	h.sendToUser(c.userID, OutgoingMessage{Type: EventNewMessage, Payload: NewMessagePayload{Message: m, ClientMsgID: msg.ClientMsgID}})
	h.sendToUser(m.ReceiverID, OutgoingMessage{Type: EventNewMessage, Payload: NewMessagePayload{Message: m}})

	// A receiver with a live subscription observes the message immediately.
	if h.hasSubscriber(conv.ID, m.ReceiverID) {
		h.deliverPending(ctx, conv, m.ReceiverID)
	} else {
		h.pushUnread(ctx, m.ReceiverID, conv.ID)
	}

	if h.notifier != nil {
		senderName := c.userID
		if m.Sender != nil && m.Sender.DisplayName != "" {
			senderName = m.Sender.DisplayName
		}
		body := m.Content
		if m.MessageType != model.MessageTypeText || body == "" {
			body = "Attachment"
		}
		if len(body) > 120 {
			body = body[:117] + "..."
		}
		data := map[string]string{"conversation_id": conv.ID, "message_id": m.ID}
		recipient := m.ReceiverID
		go h.notifier.NotifyNewMessage(context.Background(), recipient, senderName, body, data)
	}
}

func (h *Hub) handleEditMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleEditMessage", time.Now())()
	if msg.MessageID == "" || strings.TrimSpace(msg.Content) == "" {
		h.sendError(c, "message_id and content required", "")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m, err := h.msgRepo.Edit(ctx, msg.MessageID, c.userID, msg.Content, h.cfg.EditWindow)
	if err != nil {
		h.sendError(c, "cannot edit: "+errText(err), "")
		return
	}

	h.BroadcastMessageEdited(m)
}

// BroadcastMessageEdited fans the edit out to both participants. Shared with
// the HTTP API.
func (h *Hub) BroadcastMessageEdited(m *model.Message) {
	out := OutgoingMessage{Type: EventMessageEdited, Payload: MessageEditedPayload{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		Content:        m.Content,
		EditedAt:       *m.EditedAt,
	}}
	h.sendToUser(m.SenderID, out)
	h.sendToUser(m.ReceiverID, out)
}

func (h *Hub) handleDeleteMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleDeleteMessage", time.Now())()
	if msg.MessageID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m, err := h.msgRepo.SoftDelete(ctx, msg.MessageID, c.userID)
	if err != nil {
		h.sendError(c, "cannot delete: "+errText(err), "")
		return
	}

	h.BroadcastMessageDeleted(m)
}

// BroadcastMessageDeleted fans the placeholder out to both participants.
func (h *Hub) BroadcastMessageDeleted(m *model.Message) {
	out := OutgoingMessage{Type: EventMessageDeleted, Payload: MessageDeletedPayload{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		Placeholder:    model.DeletedPlaceholder,
	}}
	h.sendToUser(m.SenderID, out)
	h.sendToUser(m.ReceiverID, out)
}

func (h *Hub) handleReact(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleReact", time.Now())()
	if msg.MessageID == "" || msg.Emoji == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m, err := h.msgRepo.GetByID(ctx, msg.MessageID)
	if err != nil {
		h.sendError(c, "cannot react: "+errText(err), "")
		return
	}
	if m.SenderID != c.userID && m.ReceiverID != c.userID {
		h.sendError(c, "cannot react: permission denied", "")
		return
	}
	if m.Deleted {
		h.sendError(c, "cannot react: not found", "")
		return
	}

	userName := c.userID
	if u, err := h.identity.Lookup(ctx, c.userID); err == nil && u.DisplayName != "" {
		userName = u.DisplayName
	}
	if _, err := h.reactRepo.Toggle(ctx, msg.MessageID, c.userID, userName, msg.Emoji); err != nil {
		logger.Errorf("ws react message=%s user=%s: %v", msg.MessageID, c.userID, err)
		h.sendError(c, "failed to react", "")
		return
	}

	groups, err := h.reactRepo.GroupsByMessage(ctx, msg.MessageID)
	if err != nil {
		logger.Errorf("ws react groups message=%s: %v", msg.MessageID, err)
		return
	}
	h.BroadcastReactions(m, groups)
}

// BroadcastReactions pushes the full recomputed reaction state for a message
// to both participants.
func (h *Hub) BroadcastReactions(m *model.Message, groups []model.ReactionGroup) {
	out := OutgoingMessage{Type: EventReactionUpdated, Payload: ReactionUpdatedPayload{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		Reactions:      groups,
	}}
	h.sendToUser(m.SenderID, out)
	h.sendToUser(m.ReceiverID, out)
}

func (h *Hub) handleStar(ctx context.Context, c *Client, msg IncomingMessage, star bool) {
	if msg.MessageID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m, err := h.msgRepo.GetByID(ctx, msg.MessageID)
	if err != nil {
		h.sendError(c, "cannot star: "+errText(err), "")
		return
	}
	if m.SenderID != c.userID && m.ReceiverID != c.userID {
		h.sendError(c, "cannot star: permission denied", "")
		return
	}

	if star {
		err = h.msgRepo.Star(ctx, msg.MessageID, c.userID)
	} else {
		err = h.msgRepo.Unstar(ctx, msg.MessageID, c.userID)
	}
	if err != nil {
		logger.Errorf("ws star message=%s user=%s: %v", msg.MessageID, c.userID, err)
		h.sendError(c, "failed to update star", "")
		return
	}

	// Stars are private: only the acting user's devices learn about them.
	h.sendToUser(c.userID, OutgoingMessage{Type: EventMessageStarred, Payload: MessageStarredPayload{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		Starred:        star,
	}})
}

func (h *Hub) handleForward(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleForward", time.Now())()
	if msg.MessageID == "" || msg.TargetConversationID == "" {
		h.sendError(c, "message_id and target_conversation_id required", "")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fwd, err := h.msgRepo.Forward(ctx, msg.MessageID, msg.TargetConversationID, c.userID)
	if err != nil {
		h.sendError(c, "cannot forward: "+errText(err), "")
		return
	}

	h.stampSender(ctx, fwd)
	h.BroadcastNewMessage(fwd)
	h.pushUnread(ctx, fwd.ReceiverID, fwd.ConversationID)
}

// BroadcastNewMessage fans a stored message out to both participants.
func (h *Hub) BroadcastNewMessage(m *model.Message) {
	out := OutgoingMessage{Type: EventNewMessage, Payload: NewMessagePayload{Message: m}}
	h.sendToUser(m.SenderID, out)
	h.sendToUser(m.ReceiverID, out)
}

func (h *Hub) handleMarkRead(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleMarkRead", time.Now())()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conv, err := h.conversationFor(ctx, c, msg.ConversationID)
	if err != nil {
		h.sendError(c, "cannot mark read: "+errText(err), "")
		return
	}

	n, err := h.msgRepo.MarkRead(ctx, conv.ID, c.userID)
	if err != nil {
		logger.Errorf("ws mark read conv=%s user=%s: %v", conv.ID, c.userID, err)
		return
	}
	if n > 0 {
		// The sender sees the read receipt; the reader's badge drops.
		out := OutgoingMessage{Type: EventReceipt, Payload: ReceiptPayload{
			ConversationID: conv.ID,
			UserID:         c.userID,
			Status:         model.MessageStatusRead,
		}}
		h.sendToUser(conv.Peer(c.userID), out)
	}
	h.pushUnread(ctx, c.userID, conv.ID)
}

func (h *Hub) handleTyping(c *Client, msg IncomingMessage) {
	if msg.ConversationID == "" {
		return
	}
	h.mu.RLock()
	_, subscribed := c.convs[msg.ConversationID]
	h.mu.RUnlock()
	if !subscribed {
		return
	}
	if h.typing.set(msg.ConversationID, c.userID, msg.IsTyping) {
		h.broadcastTyping(msg.ConversationID, c.userID, msg.IsTyping)
	}
}

func (h *Hub) expireTyping(now time.Time) {
	for _, key := range h.typing.expire(now) {
		h.broadcastTyping(key.conversationID, key.userID, false)
	}
}

// broadcastTyping reaches only live subscribers of the conversation, minus
// the typist.
func (h *Hub) broadcastTyping(conversationID, userID string, isTyping bool) {
	out := OutgoingMessage{Type: EventTyping, Payload: TypingPayload{
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       isTyping,
	}}
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.convSubs[conversationID]))
	for c := range h.convSubs[conversationID] {
		if c.userID != userID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		h.sendToClient(c, out)
	}
}

// deliverPending moves the user's incoming sent messages to delivered,
// broadcasts the receipt to the sender, and refreshes the user's badge.
func (h *Hub) deliverPending(ctx context.Context, conv *model.Conversation, userID string) {
	n, err := h.msgRepo.MarkDelivered(ctx, conv.ID, userID)
	if err != nil {
		logger.Errorf("ws deliver conv=%s user=%s: %v", conv.ID, userID, err)
		return
	}
	if n > 0 {
		out := OutgoingMessage{Type: EventReceipt, Payload: ReceiptPayload{
			ConversationID: conv.ID,
			UserID:         userID,
			Status:         model.MessageStatusDelivered,
		}}
		h.sendToUser(conv.Peer(userID), out)
	}
	h.pushUnread(ctx, userID, conv.ID)
}

// pushUnread recomputes and pushes the user's per-conversation and global
// unread counts.
func (h *Hub) pushUnread(ctx context.Context, userID, conversationID string) {
	count, err := h.convRepo.UnreadCount(ctx, conversationID, userID)
	if err != nil {
		logger.Errorf("ws unread count conv=%s user=%s: %v", conversationID, userID, err)
		return
	}
	total, err := h.convRepo.GlobalUnread(ctx, userID)
	if err != nil {
		logger.Errorf("ws global unread user=%s: %v", userID, err)
		return
	}
	h.sendToUser(userID, OutgoingMessage{Type: EventUnreadCount, Payload: UnreadCountPayload{
		ConversationID: conversationID,
		Count:          count,
		Total:          total,
	}})
}

// BroadcastReceipt tells peerID that observerID moved incoming messages in
// the conversation to the given status.
func (h *Hub) BroadcastReceipt(conversationID, observerID, peerID string, status model.MessageStatus) {
	h.sendToUser(peerID, OutgoingMessage{Type: EventReceipt, Payload: ReceiptPayload{
		ConversationID: conversationID,
		UserID:         observerID,
		Status:         status,
	}})
}

// PushUnread recomputes and pushes unread counters for userID. Shared with
// the HTTP API.
func (h *Hub) PushUnread(ctx context.Context, userID, conversationID string) {
	h.pushUnread(ctx, userID, conversationID)
}

// BroadcastConversationCreated tells both participants about a conversation
// created over the HTTP API.
func (h *Hub) BroadcastConversationCreated(conv *model.Conversation) {
	out := OutgoingMessage{Type: EventConversationCreated, Payload: conv}
	for _, uid := range conv.Participants {
		h.sendToUser(uid, out)
	}
}

func (h *Hub) stampSender(ctx context.Context, m *model.Message) {
	u, err := h.identity.Lookup(ctx, m.SenderID)
	if err != nil {
		logger.Errorf("ws resolve sender user=%s: %v", m.SenderID, err)
		return
	}
	m.Sender = u
}

// attachReplyQuote loads the quoted message for display. The quote is looked
// up at render time, never duplicated: a later deletion of the original shows
// up as the placeholder.
func (h *Hub) attachReplyQuote(ctx context.Context, m *model.Message) {
	if m.ReplyToID == nil {
		return
	}
	quoted, err := h.msgRepo.GetByID(ctx, *m.ReplyToID)
	if err != nil {
		return
	}
	quoted.Redact()
	m.ReplyTo = &model.Message{
		ID:          quoted.ID,
		SenderID:    quoted.SenderID,
		Content:     quoted.Content,
		MessageType: quoted.MessageType,
		Deleted:     quoted.Deleted,
	}
}

func (h *Hub) hasSubscriber(conversationID, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.convSubs[conversationID] {
		if c.userID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) sendToUser(userID string, msg OutgoingMessage) {
	h.mu.RLock()
	clients, ok := h.clients[userID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) sendError(c *Client, msg, clientMsgID string) {
	h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: msg, ClientMsgID: clientMsgID}})
}

// errText maps repository sentinels to stable client-facing strings.
func errText(err error) string {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "not found"
	case errors.Is(err, repository.ErrPermissionDenied):
		return "permission denied"
	case errors.Is(err, repository.ErrEditWindowExpired):
		return "edit window expired"
	case errors.Is(err, repository.ErrNoChange):
		return "no change"
	case errors.Is(err, repository.ErrConflict):
		return "conflict"
	default:
		return "internal error"
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
