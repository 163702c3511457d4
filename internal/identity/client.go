package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/campusconnect/messaging/internal/model"
)

// Client resolves user profiles against the identity service. Profiles are
// cached with a TTL so message fan-out does not hammer the service. With an
// empty baseURL the client degrades to bare user ids, which is what -dev runs
// use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	cache map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	user    model.UserPublic
	expires time.Time
}

func NewClient(baseURL string, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &Client{
		cache: make(map[string]cacheEntry),
		ttl:   ttl,
	}
	if baseURL != "" {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
		c.httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return c
}

// Lookup returns the public profile for userID.
func (c *Client) Lookup(ctx context.Context, userID string) (*model.UserPublic, error) {
	if userID == "" {
		return nil, fmt.Errorf("identity: empty user id")
	}
	if c.baseURL == "" {
		return &model.UserPublic{ID: userID, DisplayName: userID}, nil
	}

	c.mu.RLock()
	entry, ok := c.cache[userID]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		u := entry.user
		return &u, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/internal/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Stale beats nothing during identity-service outages.
		if ok {
			u := entry.user
			return &u, nil
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		if ok {
			u := entry.user
			return &u, nil
		}
		return nil, fmt.Errorf("identity lookup %s: %d", userID, resp.StatusCode)
	}

	var u model.UserPublic
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		u.ID = userID
	}

	c.mu.Lock()
	c.cache[userID] = cacheEntry{user: u, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return &u, nil
}
