package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"geosnap-service/internal/client"
	"geosnap-service/internal/util"
)

const (
	issuePrefix  = "otp_issue:"
	verifyPrefix = "otp_verify:"
	opTimeout    = 5 * time.Second
)

// RateLimitCache counts OTP issuance requests and verification attempts per
// email hash inside fixed windows.
type RateLimitCache struct {
	client *client.RedisClient
}

func NewRateLimitCache(client *client.RedisClient) *RateLimitCache {
	return &RateLimitCache{client: client}
}

func (c *RateLimitCache) IncrementIssueCounter(email string, window time.Duration) (int, error) {
	return c.increment(issuePrefix, email, window)
}

func (c *RateLimitCache) IncrementVerifyCounter(email string, window time.Duration) (int, error) {
	return c.increment(verifyPrefix, email, window)
}

// ResetVerifyCounter clears the attempt counter after a successful verify.
func (c *RateLimitCache) ResetVerifyCounter(email string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	key := verifyPrefix + util.EmailHash(email)
	if err := c.client.Del(ctx, key); err != nil {
		util.Error("Failed to reset verify counter",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to reset verify counter: %w", err)
	}
	return nil
}

func (c *RateLimitCache) increment(prefix, email string, window time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	key := prefix + util.EmailHash(email)
	count, err := c.client.IncrWithExpire(ctx, key, window)
	if err != nil {
		util.Error("Failed to increment rate limit counter",
			zap.String("key", key),
			zap.Duration("window", window),
			zap.Error(err))
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return int(count), nil
}
