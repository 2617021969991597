package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

func UPISubmissionKey(userID string) string {
	return fmt.Sprintf("rate_limit:upi:%s", userID)
}

// UPISubmissionLimiter caps how often one user may submit UPI payment proof.
type UPISubmissionLimiter struct {
	rl     *RateLimiter
	limit  int
	window time.Duration
}

func NewUPISubmissionLimiter(rl *RateLimiter, limit int, window time.Duration) *UPISubmissionLimiter {
	return &UPISubmissionLimiter{rl: rl, limit: limit, window: window}
}

func (l *UPISubmissionLimiter) AllowSubmission(ctx context.Context, userID string) (bool, error) {
	return l.rl.Allow(ctx, UPISubmissionKey(userID), l.limit, l.window)
}
