package startup

import (
	"context"
	"os"
	"time"

	"github.com/campusconnect/messaging/internal/logger"
	redisstorage "github.com/campusconnect/messaging/internal/storage/redis"
)

// ConnectRedisWithRetry connects to Redis with exponential backoff.
func ConnectRedisWithRetry(redisURL string, maxWait time.Duration) *redisstorage.Client {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := redisstorage.New(ctx, redisURL)
		cancel()
		if err != nil {
			if time.Now().After(deadline) {
				logger.Errorf("redis (gave up after %v): %v", maxWait, err)
				os.Exit(1)
			}
			logger.Errorf("redis connect failed, retry in %v: %v", backoff, err)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		return client
	}
}
