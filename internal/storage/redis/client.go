package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campusconnect/messaging/internal/model"
)

const (
	presenceKeyPrefix = "presence:"
	pushKeyPrefix     = "push:subs:"

	// Push subscriptions expire if the user never reconnects.
	pushSubscriptionTTL = 30 * 24 * time.Hour
	maxSubsPerUser      = 10
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

type presenceRecord struct {
	Status   model.PresenceStatus `json:"status"`
	LastSeen time.Time            `json:"last_seen"`
}

// SetPresence stores the latest record under presence:{userId}. Offline
// records keep a long TTL so lastSeen stays readable; online/away records
// expire after ttl without a heartbeat, which reads back as offline.
func (c *Client) SetPresence(ctx context.Context, p model.Presence, ttl time.Duration) error {
	data, err := json.Marshal(presenceRecord{Status: p.Status, LastSeen: p.LastSeen})
	if err != nil {
		return fmt.Errorf("redis presence marshal: %w", err)
	}
	if p.Status == model.PresenceOffline || ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return c.cli.Set(ctx, presenceKeyPrefix+p.UserID, data, ttl).Err()
}

func (c *Client) GetPresence(ctx context.Context, userID string) (model.Presence, error) {
	p := model.Presence{UserID: userID, Status: model.PresenceOffline}
	val, err := c.cli.Get(ctx, presenceKeyPrefix+userID).Result()
	if err == redis.Nil {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("redis presence get: %w", err)
	}
	var rec presenceRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return p, fmt.Errorf("redis presence unmarshal: %w", err)
	}
	p.Status = rec.Status
	p.LastSeen = rec.LastSeen
	return p, nil
}

// SavePushSubscription stores a subscription payload keyed by its endpoint in
// a hash per user, capped at maxSubsPerUser.
func (c *Client) SavePushSubscription(ctx context.Context, userID, endpoint, payload string) error {
	key := pushKeyPrefix + userID
	n, err := c.cli.HLen(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis push hlen: %w", err)
	}
	if n >= maxSubsPerUser {
		exists, err := c.cli.HExists(ctx, key, endpoint).Result()
		if err != nil {
			return fmt.Errorf("redis push hexists: %w", err)
		}
		if !exists {
			return fmt.Errorf("redis push: subscription limit reached for user %s", userID)
		}
	}
	if err := c.cli.HSet(ctx, key, endpoint, payload).Err(); err != nil {
		return fmt.Errorf("redis push hset: %w", err)
	}
	return c.cli.Expire(ctx, key, pushSubscriptionTTL).Err()
}

func (c *Client) ListPushSubscriptions(ctx context.Context, userID string) (map[string]string, error) {
	subs, err := c.cli.HGetAll(ctx, pushKeyPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("redis push hgetall: %w", err)
	}
	return subs, nil
}

func (c *Client) DeletePushSubscription(ctx context.Context, userID, endpoint string) error {
	return c.cli.HDel(ctx, pushKeyPrefix+userID, endpoint).Err()
}
