package model

import "time"

// PresenceStatus is a user's live connectivity state, independent of any
// conversation. Transitions are driven by heartbeat presence/absence, not by
// message activity.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceOffline PresenceStatus = "offline"
)

// Presence holds only the latest value per user; history is never retained.
type Presence struct {
	UserID   string         `json:"user_id"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"last_seen"`
}
