package handler

import (
	"encoding/json"
	"net/http"

	"github.com/campusconnect/messaging/internal/logger"
	"github.com/campusconnect/messaging/internal/middleware"
	"github.com/campusconnect/messaging/internal/notify"
)

type PushHandler struct {
	push *notify.WebPush
}

func NewPushHandler(push *notify.WebPush) *PushHandler {
	return &PushHandler{push: push}
}

// VAPIDPublic hands out the public key the browser subscribes with.
func (h *PushHandler) VAPIDPublic(w http.ResponseWriter, r *http.Request) {
	key := h.push.PublicKey()
	if key == "" {
		writeError(w, http.StatusServiceUnavailable, "push not configured")
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(key))
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var sub notify.PushSubscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, keys.p256dh and keys.auth required")
		return
	}
	userID := middleware.GetUserID(r.Context())
	if err := h.push.Subscribe(r.Context(), userID, sub); err != nil {
		logger.Errorf("push subscribe user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint required")
		return
	}
	userID := middleware.GetUserID(r.Context())
	if err := h.push.Unsubscribe(r.Context(), userID, req.Endpoint); err != nil {
		logger.Errorf("push unsubscribe user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to remove subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
