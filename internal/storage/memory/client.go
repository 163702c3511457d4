package memory

import (
	"context"
	"sync"
	"time"

	"github.com/campusconnect/messaging/internal/model"
)

type presenceItem struct {
	p   model.Presence
	exp time.Time
}

// Client is the in-memory storage.Store used for -dev mode and tests.
type Client struct {
	mu       sync.RWMutex
	presence map[string]presenceItem
	pushSubs map[string]map[string]string
}

func New() *Client {
	return &Client{
		presence: make(map[string]presenceItem),
		pushSubs: make(map[string]map[string]string),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) SetPresence(ctx context.Context, p model.Presence, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp := time.Time{}
	if p.Status != model.PresenceOffline && ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.presence[p.UserID] = presenceItem{p: p, exp: exp}
	return nil
}

func (c *Client) GetPresence(ctx context.Context, userID string) (model.Presence, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.presence[userID]
	if !ok {
		return model.Presence{UserID: userID, Status: model.PresenceOffline}, nil
	}
	if !it.exp.IsZero() && time.Now().After(it.exp) {
		// Expired heartbeat reads back as offline; LastSeen survives.
		return model.Presence{UserID: userID, Status: model.PresenceOffline, LastSeen: it.p.LastSeen}, nil
	}
	return it.p, nil
}

func (c *Client) SavePushSubscription(ctx context.Context, userID, endpoint, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs, ok := c.pushSubs[userID]
	if !ok {
		subs = make(map[string]string)
		c.pushSubs[userID] = subs
	}
	subs[endpoint] = payload
	return nil
}

func (c *Client) ListPushSubscriptions(ctx context.Context, userID string) (map[string]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.pushSubs[userID]))
	for k, v := range c.pushSubs[userID] {
		out[k] = v
	}
	return out, nil
}

func (c *Client) DeletePushSubscription(ctx context.Context, userID, endpoint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pushSubs[userID], endpoint)
	return nil
}
