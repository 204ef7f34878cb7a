package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key pattern: ratelimit:{user_id}:messages with a
// window-length TTL set on first increment.

type RateLimitConfig struct {
	MessageLimit  int
	MessageWindow time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessageLimit:  60,
		MessageWindow: 60 * time.Second,
	}
}

type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config}
}

// AllowMessage checks and counts one message send for the user.
func (rl *RateLimiter) AllowMessage(ctx context.Context, userID int64) (RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%d:messages", userID)

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return RateLimitResult{}, err
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, key, rl.config.MessageWindow).Err(); err != nil {
			return RateLimitResult{}, err
		}
	}

	ttl, err := rl.client.TTL(ctx, key).Result()
	if err != nil {
		ttl = rl.config.MessageWindow
	}

	remaining := rl.config.MessageLimit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{
		Allowed:   count <= int64(rl.config.MessageLimit),
		Remaining: remaining,
		ResetIn:   ttl,
	}, nil
}
