package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusconnect/messaging/internal/middleware"
	"github.com/campusconnect/messaging/internal/presence"
)

type PresenceHandler struct {
	tracker *presence.Tracker
}

func NewPresenceHandler(tracker *presence.Tracker) *PresenceHandler {
	return &PresenceHandler{tracker: tracker}
}

// Get returns the current presence of a user. Any authenticated user may
// look up any other.
func (h *PresenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id required")
		return
	}
	writeJSON(w, http.StatusOK, h.tracker.Get(r.Context(), userID))
}

// Heartbeat refreshes the caller's presence. HTTP fallback for clients
// without a live WebSocket.
func (h *PresenceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	active := r.URL.Query().Get("active") != "false"
	h.tracker.Heartbeat(r.Context(), userID, active)
	w.WriteHeader(http.StatusNoContent)
}
