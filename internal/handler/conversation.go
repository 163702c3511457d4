package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campusconnect/messaging/internal/logger"
	"github.com/campusconnect/messaging/internal/middleware"
	"github.com/campusconnect/messaging/internal/model"
	"github.com/campusconnect/messaging/internal/presence"
	"github.com/campusconnect/messaging/internal/repository"
	"github.com/campusconnect/messaging/internal/ws"
)

type ConversationHandler struct {
	convRepo *repository.ConversationRepository
	identity ws.IdentityResolver
	tracker  *presence.Tracker
	hub      *ws.Hub
}

func NewConversationHandler(convRepo *repository.ConversationRepository, identity ws.IdentityResolver, tracker *presence.Tracker, hub *ws.Hub) *ConversationHandler {
	return &ConversationHandler{convRepo: convRepo, identity: identity, tracker: tracker, hub: hub}
}

type createConversationRequest struct {
	UserID string `json:"user_id"`
}

// Create finds or creates the conversation with the given peer. Repeated
// calls with the same peer always land on the same conversation.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	currentUserID := middleware.GetUserID(r.Context())
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.UserID == currentUserID {
		writeError(w, http.StatusBadRequest, "cannot create conversation with yourself")
		return
	}
	if _, err := h.identity.Lookup(r.Context(), req.UserID); err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	conv, created, err := h.convRepo.FindOrCreate(r.Context(), currentUserID, req.UserID)
	if err != nil {
		logger.Errorf("conversation create %s/%s: %v", currentUserID, req.UserID, err)
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	view := h.enrich(r, conv, currentUserID)
	if created {
		h.hub.BroadcastConversationCreated(conv)
		writeJSON(w, http.StatusCreated, view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// List returns the caller's conversations: pinned first, then by last
// activity.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	currentUserID := middleware.GetUserID(r.Context())
	views, err := h.convRepo.ListForUser(r.Context(), currentUserID)
	if err != nil {
		logger.Errorf("conversation list user=%s: %v", currentUserID, err)
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	for i := range views {
		peerID := views[i].Conversation.Peer(currentUserID)
		if u, err := h.identity.Lookup(r.Context(), peerID); err == nil {
			views[i].Peer = u
		}
		p := h.tracker.Get(r.Context(), peerID)
		views[i].PeerPresence = &p
	}
	writeJSON(w, http.StatusOK, views)
}

// Get returns a single conversation view.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	currentUserID := middleware.GetUserID(r.Context())
	conv, _ := h.loadOwn(w, r, currentUserID)
	if conv == nil {
		return
	}
	writeJSON(w, http.StatusOK, h.enrich(r, conv, currentUserID))
}

type overlayRequest struct {
	Value bool `json:"value"`
}

func (h *ConversationHandler) SetPinned(w http.ResponseWriter, r *http.Request) {
	h.setOverlay(w, r, model.OverlayPinned)
}

func (h *ConversationHandler) SetArchived(w http.ResponseWriter, r *http.Request) {
	h.setOverlay(w, r, model.OverlayArchived)
}

func (h *ConversationHandler) SetMuted(w http.ResponseWriter, r *http.Request) {
	h.setOverlay(w, r, model.OverlayMuted)
}

func (h *ConversationHandler) setOverlay(w http.ResponseWriter, r *http.Request, kind model.OverlayKind) {
	var req overlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	currentUserID := middleware.GetUserID(r.Context())
	conv, _ := h.loadOwn(w, r, currentUserID)
	if conv == nil {
		return
	}
	if err := h.convRepo.SetOverlay(r.Context(), conv.ID, currentUserID, kind, req.Value); err != nil {
		logger.Errorf("conversation %s overlay conv=%s user=%s: %v", kind, conv.ID, currentUserID, err)
		writeError(w, http.StatusInternalServerError, "failed to update conversation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{string(kind): req.Value})
}

// Clear hides history before now for the caller only. Messages stay intact
// for the other participant.
func (h *ConversationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	currentUserID := middleware.GetUserID(r.Context())
	conv, _ := h.loadOwn(w, r, currentUserID)
	if conv == nil {
		return
	}
	cutoff := time.Now().UTC()
	if err := h.convRepo.SetCleared(r.Context(), conv.ID, currentUserID, cutoff); err != nil {
		logger.Errorf("conversation clear conv=%s user=%s: %v", conv.ID, currentUserID, err)
		writeError(w, http.StatusInternalServerError, "failed to clear conversation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared_at": cutoff})
}

// Unread returns the caller's global unread total.
func (h *ConversationHandler) Unread(w http.ResponseWriter, r *http.Request) {
	currentUserID := middleware.GetUserID(r.Context())
	total, err := h.convRepo.GlobalUnread(r.Context(), currentUserID)
	if err != nil {
		logger.Errorf("global unread user=%s: %v", currentUserID, err)
		writeError(w, http.StatusInternalServerError, "failed to count unread")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total": total})
}

// loadOwn fetches the conversation from the URL and verifies the caller is
// party to it, writing the error response itself on failure.
func (h *ConversationHandler) loadOwn(w http.ResponseWriter, r *http.Request, userID string) (*model.Conversation, error) {
	id := chi.URLParam(r, "conversationID")
	conv, err := h.convRepo.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, err, "failed to load conversation")
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		writeError(w, http.StatusForbidden, "permission denied")
		return nil, repository.ErrPermissionDenied
	}
	return conv, nil
}

func (h *ConversationHandler) enrich(r *http.Request, conv *model.Conversation, userID string) model.ConversationView {
	view := model.ConversationView{Conversation: *conv}
	if overlay, err := h.convRepo.GetOverlay(r.Context(), conv.ID, userID); err == nil {
		view.Overlay = *overlay
	}
	peerID := conv.Peer(userID)
	if u, err := h.identity.Lookup(r.Context(), peerID); err == nil {
		view.Peer = u
	}
	p := h.tracker.Get(r.Context(), peerID)
	view.PeerPresence = &p
	if count, err := h.convRepo.UnreadCount(r.Context(), conv.ID, userID); err == nil {
		view.UnreadCount = count
	}
	return view
}
