package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/campusconnect/messaging/internal/logger"
	"github.com/campusconnect/messaging/internal/storage"
)

// PushSubscription is the browser subscription object as PushManager hands
// it out.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// WebPush sends Web Push notifications to saved subscriptions. With nil
// VAPID options subscriptions are still stored, sending is skipped.
type WebPush struct {
	store storage.Store
	vapid *webpush.Options
}

func NewWebPush(store storage.Store, publicKey, privateKey string) *WebPush {
	w := &WebPush{store: store}
	if publicKey != "" && privateKey != "" {
		w.vapid = &webpush.Options{
			Subscriber:      "campusconnect-messaging",
			VAPIDPublicKey:  publicKey,
			VAPIDPrivateKey: privateKey,
			TTL:             30,
		}
	}
	return w
}

// Enabled reports whether sending is configured.
func (w *WebPush) Enabled() bool { return w.vapid != nil }

// PublicKey returns the VAPID public key clients subscribe with.
func (w *WebPush) PublicKey() string {
	if w.vapid == nil {
		return ""
	}
	return w.vapid.VAPIDPublicKey
}

// Subscribe stores a browser subscription for the user.
func (w *WebPush) Subscribe(ctx context.Context, userID string, sub PushSubscription) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return w.store.SavePushSubscription(ctx, userID, sub.Endpoint, string(raw))
}

// Unsubscribe drops the subscription with the given endpoint.
func (w *WebPush) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	return w.store.DeletePushSubscription(ctx, userID, endpoint)
}

// NotifyNewMessage pushes a message preview to every device of the
// recipient. Gone endpoints (404/410) are pruned on the way.
func (w *WebPush) NotifyNewMessage(ctx context.Context, recipientID, senderName, body string, data map[string]string) {
	if w.vapid == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	subs, err := w.store.ListPushSubscriptions(ctx, recipientID)
	if err != nil {
		logger.Errorf("push list subscriptions user=%s: %v", recipientID, err)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"title": senderName,
		"body":  body,
		"data":  data,
	})

	for endpoint, raw := range subs {
		var sub PushSubscription
		if err := json.Unmarshal([]byte(raw), &sub); err != nil || sub.Endpoint == "" {
			continue
		}
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payload, wpSub, w.vapid)
		if err != nil {
			logger.Errorf("push send %s: %v", truncEndpoint(endpoint), err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == 410 || resp.StatusCode == 404 {
			if err := w.store.DeletePushSubscription(ctx, recipientID, endpoint); err != nil {
				logger.Errorf("push prune %s: %v", truncEndpoint(endpoint), err)
			}
		}
	}
}

func truncEndpoint(endpoint string) string {
	if len(endpoint) > 50 {
		return endpoint[:50]
	}
	return strings.TrimSpace(endpoint)
}
