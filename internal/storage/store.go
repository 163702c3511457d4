package storage

import (
	"context"
	"time"

	"github.com/campusconnect/messaging/internal/model"
)

// Store keeps the ephemeral state that does not belong in Postgres: the latest
// presence record per user and Web Push subscriptions.
// Implementations: redis.Client, memory.Client (for -dev and tests).
type Store interface {
	// SetPresence stores the latest presence record. ttl > 0 bounds how long
	// a non-offline record survives without a heartbeat refresh.
	SetPresence(ctx context.Context, p model.Presence, ttl time.Duration) error
	// GetPresence returns the latest record, or an offline record with a zero
	// LastSeen if none is stored (history is never retained).
	GetPresence(ctx context.Context, userID string) (model.Presence, error)

	SavePushSubscription(ctx context.Context, userID, endpoint, payload string) error
	ListPushSubscriptions(ctx context.Context, userID string) (map[string]string, error)
	DeletePushSubscription(ctx context.Context, userID, endpoint string) error

	Close() error
}
