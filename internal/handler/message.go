package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campusconnect/messaging/internal/logger"
	"github.com/campusconnect/messaging/internal/middleware"
	"github.com/campusconnect/messaging/internal/model"
	"github.com/campusconnect/messaging/internal/repository"
	"github.com/campusconnect/messaging/internal/ws"
)

type MessageHandler struct {
	msgRepo    *repository.MessageRepository
	convRepo   *repository.ConversationRepository
	reactRepo  *repository.ReactionRepository
	identity   ws.IdentityResolver
	hub        *ws.Hub
	editWindow time.Duration
}

func NewMessageHandler(
	msgRepo *repository.MessageRepository,
	convRepo *repository.ConversationRepository,
	reactRepo *repository.ReactionRepository,
	identity ws.IdentityResolver,
	hub *ws.Hub,
	editWindow time.Duration,
) *MessageHandler {
	if editWindow <= 0 {
		editWindow = 15 * time.Minute
	}
	return &MessageHandler{
		msgRepo:    msgRepo,
		convRepo:   convRepo,
		reactRepo:  reactRepo,
		identity:   identity,
		hub:        hub,
		editWindow: editWindow,
	}
}

// GetMessages returns a page of conversation history, newest first.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	userID := middleware.GetUserID(r.Context())

	conv, err := h.convRepo.GetByID(r.Context(), conversationID)
	if err != nil {
		writeRepoError(w, err, "failed to load conversation")
		return
	}
	if !conv.HasParticipant(userID) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit > 100 {
		limit = 100
	}

	messages, err := h.msgRepo.List(r.Context(), conversationID, userID, limit, offset)
	if err != nil {
		logger.Errorf("messages list conv=%s: %v", conversationID, err)
		writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}

	for i := range messages {
		h.enrich(r, &messages[i])
	}
	writeJSON(w, http.StatusOK, messages)
}

// enrich attaches reactions, the reply quote, stars and the sender profile.
func (h *MessageHandler) enrich(r *http.Request, m *model.Message) {
	if groups, err := h.reactRepo.GroupsByMessage(r.Context(), m.ID); err == nil && len(groups) > 0 {
		m.Reactions = groups
	}
	if starred, err := h.msgRepo.StarredBy(r.Context(), m.ID); err == nil && len(starred) > 0 {
		m.StarredBy = starred
	}
	if m.ReplyToID != nil && m.ReplyTo == nil {
		if quoted, err := h.msgRepo.GetByID(r.Context(), *m.ReplyToID); err == nil {
			quoted.Redact()
			m.ReplyTo = &model.Message{
				ID:          quoted.ID,
				SenderID:    quoted.SenderID,
				Content:     quoted.Content,
				MessageType: quoted.MessageType,
				Deleted:     quoted.Deleted,
			}
		}
	}
	if u, err := h.identity.Lookup(r.Context(), m.SenderID); err == nil {
		m.Sender = u
	}
}

type editMessageRequest struct {
	Content string `json:"content"`
}

func (h *MessageHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	messageID := chi.URLParam(r, "messageID")
	userID := middleware.GetUserID(r.Context())

	m, err := h.msgRepo.Edit(r.Context(), messageID, userID, req.Content, h.editWindow)
	if err != nil {
		writeRepoError(w, err, "failed to edit message")
		return
	}
	h.hub.BroadcastMessageEdited(m)
	writeJSON(w, http.StatusOK, m)
}

func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	userID := middleware.GetUserID(r.Context())

	m, err := h.msgRepo.SoftDelete(r.Context(), messageID, userID)
	if err != nil {
		writeRepoError(w, err, "failed to delete message")
		return
	}
	h.hub.BroadcastMessageDeleted(m)
	writeJSON(w, http.StatusOK, map[string]string{"placeholder": model.DeletedPlaceholder})
}

type reactRequest struct {
	Emoji string `json:"emoji"`
}

// React toggles the caller's reaction: same emoji removes, another emoji
// replaces.
func (h *MessageHandler) React(w http.ResponseWriter, r *http.Request) {
	var req reactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Emoji == "" {
		writeError(w, http.StatusBadRequest, "emoji is required")
		return
	}
	messageID := chi.URLParam(r, "messageID")
	userID := middleware.GetUserID(r.Context())

	m, ok := h.loadParty(w, r, messageID, userID)
	if !ok {
		return
	}
	if m.Deleted {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	userName := userID
	if u, err := h.identity.Lookup(r.Context(), userID); err == nil && u.DisplayName != "" {
		userName = u.DisplayName
	}
	outcome, err := h.reactRepo.Toggle(r.Context(), messageID, userID, userName, req.Emoji)
	if err != nil {
		logger.Errorf("react message=%s user=%s: %v", messageID, userID, err)
		writeError(w, http.StatusInternalServerError, "failed to react")
		return
	}
	groups, err := h.reactRepo.GroupsByMessage(r.Context(), messageID)
	if err != nil {
		logger.Errorf("react groups message=%s: %v", messageID, err)
		writeError(w, http.StatusInternalServerError, "failed to load reactions")
		return
	}
	h.hub.BroadcastReactions(m, groups)
	writeJSON(w, http.StatusOK, map[string]any{"outcome": outcome, "reactions": groups})
}

func (h *MessageHandler) GetReactions(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	userID := middleware.GetUserID(r.Context())
	if _, ok := h.loadParty(w, r, messageID, userID); !ok {
		return
	}
	groups, err := h.reactRepo.GroupsByMessage(r.Context(), messageID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load reactions")
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *MessageHandler) StarMessage(w http.ResponseWriter, r *http.Request) {
	h.setStar(w, r, true)
}

func (h *MessageHandler) UnstarMessage(w http.ResponseWriter, r *http.Request) {
	h.setStar(w, r, false)
}

func (h *MessageHandler) setStar(w http.ResponseWriter, r *http.Request, star bool) {
	messageID := chi.URLParam(r, "messageID")
	userID := middleware.GetUserID(r.Context())
	if _, ok := h.loadParty(w, r, messageID, userID); !ok {
		return
	}
	var err error
	if star {
		err = h.msgRepo.Star(r.Context(), messageID, userID)
	} else {
		err = h.msgRepo.Unstar(r.Context(), messageID, userID)
	}
	if err != nil {
		logger.Errorf("star message=%s user=%s: %v", messageID, userID, err)
		writeError(w, http.StatusInternalServerError, "failed to update star")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"starred": star})
}

type forwardRequest struct {
	ConversationID string `json:"conversation_id"`
}

// Forward copies the message into another of the caller's conversations,
// marked with its origin.
func (h *MessageHandler) Forward(w http.ResponseWriter, r *http.Request) {
	var req forwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversationID == "" {
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	messageID := chi.URLParam(r, "messageID")
	userID := middleware.GetUserID(r.Context())

	fwd, err := h.msgRepo.Forward(r.Context(), messageID, req.ConversationID, userID)
	if err != nil {
		writeRepoError(w, err, "failed to forward message")
		return
	}
	if u, err := h.identity.Lookup(r.Context(), fwd.SenderID); err == nil {
		fwd.Sender = u
	}
	h.hub.BroadcastNewMessage(fwd)
	h.hub.PushUnread(r.Context(), fwd.ReceiverID, fwd.ConversationID)
	writeJSON(w, http.StatusCreated, fwd)
}

// MarkRead moves all incoming sent/delivered messages of the conversation
// to read and resets the caller's badge.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	userID := middleware.GetUserID(r.Context())

	conv, err := h.convRepo.GetByID(r.Context(), conversationID)
	if err != nil {
		writeRepoError(w, err, "failed to load conversation")
		return
	}
	if !conv.HasParticipant(userID) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}

	n, err := h.msgRepo.MarkRead(r.Context(), conversationID, userID)
	if err != nil {
		logger.Errorf("mark read conv=%s user=%s: %v", conversationID, userID, err)
		writeError(w, http.StatusInternalServerError, "failed to mark read")
		return
	}
	if n > 0 {
		h.hub.BroadcastReceipt(conversationID, userID, conv.Peer(userID), model.MessageStatusRead)
	}
	h.hub.PushUnread(r.Context(), userID, conversationID)
	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}

// loadParty loads the message and checks the caller is one of the two
// participants, writing the error response on failure.
func (h *MessageHandler) loadParty(w http.ResponseWriter, r *http.Request, messageID, userID string) (*model.Message, bool) {
	m, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil {
		writeRepoError(w, err, "failed to load message")
		return nil, false
	}
	if m.SenderID != userID && m.ReceiverID != userID {
		writeError(w, http.StatusForbidden, "permission denied")
		return nil, false
	}
	return m, true
}
