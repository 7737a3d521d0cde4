package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const resetThrottlePrefix = "reset:req:"

// ResetThrottle limits how often a password-reset mail can be requested for a
// single account. One SetNX per request: the first caller inside the window
// wins, later ones are told to back off.
type ResetThrottle struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResetThrottle(client *redis.Client, ttl time.Duration) *ResetThrottle {
	return &ResetThrottle{client: client, ttl: ttl}
}

// Allow reports whether a reset mail may be sent for userID right now.
func (t *ResetThrottle) Allow(ctx context.Context, userID string) (bool, error) {
	ok, err := t.client.SetNX(ctx, resetThrottlePrefix+userID, time.Now().UTC().Format(time.RFC3339), t.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reset throttle setnx: %w", err)
	}
	return ok, nil
}
