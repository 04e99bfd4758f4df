package coordinator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RateLimitResult is check_rate_limit's answer.
type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

func rateLimitKey(id string, windowSeconds int) string {
	return fmt.Sprintf("rate_limit:%s:%d", id, windowSeconds)
}

// CheckRateLimit applies a sliding window over a Redis sorted set: each
// call records a unique member scored by now's timestamp, trims
// members older than the window, and compares the remaining cardinality
// against max. On any KV error, it fails open per spec.md §7.
func (c *Coordinator) CheckRateLimit(ctx context.Context, id string, max int, windowSeconds int) RateLimitResult {
	key := rateLimitKey(id, windowSeconds)
	now := c.clock.Now()
	windowStart := now.Add(-time.Duration(windowSeconds) * time.Second)
	resetAt := now.Add(time.Duration(windowSeconds) * time.Second)

	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()
	if err := c.kv.ZAdd(ctx, key, float64(now.UnixNano()), member); err != nil {
		c.logger.Warn("rate limit substrate error, failing open", zap.Error(err), zap.String("id", id))
		return RateLimitResult{Allowed: true, Remaining: int64(max), ResetAt: resetAt}
	}

	if err := c.kv.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10)); err != nil {
		c.logger.Warn("rate limit trim failed, failing open", zap.Error(err), zap.String("id", id))
		return RateLimitResult{Allowed: true, Remaining: int64(max), ResetAt: resetAt}
	}

	count, err := c.kv.ZCard(ctx, key)
	if err != nil {
		c.logger.Warn("rate limit cardinality read failed, failing open", zap.Error(err), zap.String("id", id))
		return RateLimitResult{Allowed: true, Remaining: int64(max), ResetAt: resetAt}
	}

	remaining := int64(max) - count
	if remaining < 0 {
		remaining = 0
	}

	return RateLimitResult{Allowed: count <= int64(max), Remaining: remaining, ResetAt: resetAt}
}
