// Package presence tracks each user's live connectivity state. Transitions
// are driven by heartbeat presence and absence, never by message activity:
// online -> away after a period without user activity, anything -> offline
// once heartbeats stop, whether or not a disconnect was ever signalled.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/campusconnect/messaging/internal/logger"
	"github.com/campusconnect/messaging/internal/model"
	"github.com/campusconnect/messaging/internal/storage"
)

// Config holds the tracker's policy knobs. The durations are deployment
// choices, so they come from configuration rather than constants.
type Config struct {
	// HeartbeatTTL bounds how long after the last heartbeat a user still
	// counts as connected. An ungraceful disconnect resolves to offline
	// within HeartbeatTTL + SweepEvery.
	HeartbeatTTL time.Duration
	// AwayAfter moves a still-connected user to away once no activity has
	// been reported for this long.
	AwayAfter time.Duration
	// SweepEvery is the sweeper tick interval.
	SweepEvery time.Duration
}

type userState struct {
	status       model.PresenceStatus
	conns        int
	lastBeat     time.Time
	lastActivity time.Time
	lastSeen     time.Time
}

// Subscription is a live stream of one user's presence changes. The owner
// must Close it when the view goes away; an unreleased subscription leaks.
type Subscription struct {
	ch     chan model.Presence
	cancel func()
	once   sync.Once
}

// Updates returns the stream. It is closed when the subscription is closed
// or the tracker shuts down.
func (s *Subscription) Updates() <-chan model.Presence { return s.ch }

// Close releases the subscription. Safe to call multiple times.
func (s *Subscription) Close() { s.once.Do(s.cancel) }

const subBufSize = 16

type Tracker struct {
	cfg   Config
	store storage.Store

	mu     sync.Mutex
	users  map[string]*userState
	subs   map[string]map[*Subscription]struct{}
	closed bool

	done chan struct{}
}

func NewTracker(cfg Config, store storage.Store) *Tracker {
	if cfg.HeartbeatTTL <= 0 {
		cfg.HeartbeatTTL = 60 * time.Second
	}
	if cfg.AwayAfter <= 0 {
		cfg.AwayAfter = 5 * time.Minute
	}
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = 5 * time.Second
	}
	return &Tracker{
		cfg:   cfg,
		store: store,
		users: make(map[string]*userState),
		subs:  make(map[string]map[*Subscription]struct{}),
		done:  make(chan struct{}),
	}
}

// Run drives the timeout sweeper until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	defer close(t.done)
	ticker := time.NewTicker(t.cfg.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.shutdown()
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *Tracker) shutdown() {
	t.mu.Lock()
	t.closed = true
	for _, subs := range t.subs {
		for s := range subs {
			close(s.ch)
		}
	}
	t.subs = make(map[string]map[*Subscription]struct{})
	t.mu.Unlock()
}

// Connect registers a client connection for the user and marks them online.
func (t *Tracker) Connect(ctx context.Context, userID string) {
	now := time.Now().UTC()
	t.mu.Lock()
	st := t.state(userID)
	st.conns++
	st.lastBeat = now
	st.lastActivity = now
	st.lastSeen = now
	changed := st.status != model.PresenceOnline
	st.status = model.PresenceOnline
	p := t.snapshot(userID, st)
	t.mu.Unlock()

	if changed {
		t.publish(p)
	}
	t.persist(ctx, p)
}

// Disconnect drops one client connection. The user goes offline when their
// last connection is gone; lost connections without a Disconnect resolve the
// same way via the heartbeat sweeper.
func (t *Tracker) Disconnect(ctx context.Context, userID string) {
	now := time.Now().UTC()
	t.mu.Lock()
	st := t.state(userID)
	if st.conns > 0 {
		st.conns--
	}
	st.lastSeen = now
	changed := false
	if st.conns == 0 && st.status != model.PresenceOffline {
		st.status = model.PresenceOffline
		changed = true
	}
	p := t.snapshot(userID, st)
	t.mu.Unlock()

	if changed {
		t.publish(p)
	}
	// lastSeen moved even when other connections remain, so the store is
	// refreshed either way.
	t.persist(ctx, p)
}

// Heartbeat refreshes the user's connectivity. active reports user activity
// (focus, input); an inactive heartbeat keeps the connection alive but lets
// the away timer run.
func (t *Tracker) Heartbeat(ctx context.Context, userID string, active bool) {
	now := time.Now().UTC()
	t.mu.Lock()
	st := t.state(userID)
	st.lastBeat = now
	st.lastSeen = now
	if active {
		st.lastActivity = now
	}
	changed := false
	if st.status == model.PresenceOffline || (active && st.status == model.PresenceAway) {
		st.status = model.PresenceOnline
		changed = true
	}
	p := t.snapshot(userID, st)
	t.mu.Unlock()

	if changed {
		t.publish(p)
	}
	t.persist(ctx, p)
}

// Get returns the user's current presence, consulting the store for users
// this process has never seen.
func (t *Tracker) Get(ctx context.Context, userID string) model.Presence {
	t.mu.Lock()
	st, ok := t.users[userID]
	if ok {
		p := t.snapshot(userID, st)
		t.mu.Unlock()
		return p
	}
	t.mu.Unlock()

	p, err := t.store.GetPresence(ctx, userID)
	if err != nil {
		logger.Errorf("presence get user=%s: %v", userID, err)
		return model.Presence{UserID: userID, Status: model.PresenceOffline}
	}
	return p
}

// Subscribe returns a stream of the user's presence changes, starting with
// the current snapshot. The caller must Close the subscription on teardown.
func (t *Tracker) Subscribe(ctx context.Context, userID string) *Subscription {
	s := &Subscription{ch: make(chan model.Presence, subBufSize)}
	s.cancel = func() {
		t.mu.Lock()
		if subs, ok := t.subs[userID]; ok {
			if _, live := subs[s]; live {
				delete(subs, s)
				if len(subs) == 0 {
					delete(t.subs, userID)
				}
				close(s.ch)
			}
		}
		t.mu.Unlock()
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		close(s.ch)
		s.once.Do(func() {})
		return s
	}
	if _, ok := t.subs[userID]; !ok {
		t.subs[userID] = make(map[*Subscription]struct{})
	}
	t.subs[userID][s] = struct{}{}
	t.mu.Unlock()

	s.ch <- t.Get(ctx, userID)
	return s
}

// sweep applies the timeout transitions: connected-but-idle users go away,
// users whose heartbeats stopped go offline.
func (t *Tracker) sweep() {
	now := time.Now().UTC()
	var changed []model.Presence

	t.mu.Lock()
	for id, st := range t.users {
		if st.status == model.PresenceOffline {
			continue
		}
		switch {
		case now.Sub(st.lastBeat) > t.cfg.HeartbeatTTL:
			st.status = model.PresenceOffline
			st.conns = 0
			changed = append(changed, t.snapshot(id, st))
		case st.status == model.PresenceOnline && now.Sub(st.lastActivity) > t.cfg.AwayAfter:
			st.status = model.PresenceAway
			changed = append(changed, t.snapshot(id, st))
		}
	}
	t.mu.Unlock()

	for _, p := range changed {
		t.publish(p)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		t.persist(ctx, p)
		cancel()
	}
}

// state must be called with t.mu held.
func (t *Tracker) state(userID string) *userState {
	st, ok := t.users[userID]
	if !ok {
		st = &userState{status: model.PresenceOffline}
		t.users[userID] = st
	}
	return st
}

// snapshot must be called with t.mu held.
func (t *Tracker) snapshot(userID string, st *userState) model.Presence {
	return model.Presence{UserID: userID, Status: st.status, LastSeen: st.lastSeen}
}

// publish fans the update out under the lock: sends are non-blocking, and
// holding the lock serializes against Close so a channel is never closed
// mid-send.
func (t *Tracker) publish(p model.Presence) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for s := range t.subs[p.UserID] {
		select {
		case s.ch <- p:
		default:
			// Slow subscriber: drop the update, the next one supersedes it.
		}
	}
}

func (t *Tracker) persist(ctx context.Context, p model.Presence) {
	if err := t.store.SetPresence(ctx, p, t.cfg.HeartbeatTTL); err != nil {
		logger.Errorf("presence persist user=%s: %v", p.UserID, err)
	}
}
