package ws

import (
	"sync"
	"time"
)

// typingKey identifies one user typing in one conversation.
type typingKey struct {
	conversationID string
	userID         string
}

// typingTracker holds the ephemeral typing state. Nothing here is persisted:
// entries auto-expire after ttl so a dropped connection never leaves a stuck
// indicator, even when the explicit stop signal is lost.
type typingTracker struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[typingKey]time.Time
}

func newTypingTracker(ttl time.Duration) *typingTracker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &typingTracker{ttl: ttl, m: make(map[typingKey]time.Time)}
}

// set records or clears a typing signal. It returns true when the visible
// state changed (so repeat refreshes do not re-broadcast).
func (t *typingTracker) set(conversationID, userID string, isTyping bool) bool {
	key := typingKey{conversationID, userID}
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	exp, active := t.m[key]
	active = active && exp.After(now)
	if !isTyping {
		delete(t.m, key)
		return active
	}
	t.m[key] = now.Add(t.ttl)
	return !active
}

// expire removes entries past their deadline and returns them so the caller
// can broadcast the implicit stop.
func (t *typingTracker) expire(now time.Time) []typingKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []typingKey
	for key, exp := range t.m {
		if !exp.After(now) {
			delete(t.m, key)
			expired = append(expired, key)
		}
	}
	return expired
}

// drop clears all of the user's typing entries (used on disconnect) and
// returns the conversations that had one.
func (t *typingTracker) drop(userID string) []typingKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	var dropped []typingKey
	for key := range t.m {
		if key.userID == userID {
			delete(t.m, key)
			dropped = append(dropped, key)
		}
	}
	return dropped
}
