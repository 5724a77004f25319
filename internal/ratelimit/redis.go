package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window limiter with counters centralized in Redis, so the
// limit holds across gateway processes. If Redis is unavailable the limiter
// fails open: admission control degrades rather than taking the gateway down.
type Redis struct {
	client *redis.Client
	limit  int
	logger *slog.Logger
}

// NewRedis creates a limiter allowing perMinute requests per key per window.
func NewRedis(client *redis.Client, perMinute int, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client: client,
		limit:  perMinute,
		logger: logger,
	}
}

// Allow counts one request against key's current window via INCR. The key
// expires shortly after the window closes, so counters clean themselves up.
func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	windowStart := time.Now().Truncate(Window)
	counterKey := fmt.Sprintf("ratelimit:%s:%d", key, windowStart.Unix())

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, counterKey)
	pipe.Expire(ctx, counterKey, Window+10*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("rate limit store unavailable, failing open",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return Decision{
			Allowed:   true,
			Limit:     r.limit,
			Remaining: r.limit,
			Reset:     windowStart.Add(Window),
		}, nil
	}

	count := int(incr.Val())
	remaining := r.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= r.limit,
		Limit:     r.limit,
		Remaining: remaining,
		Reset:     windowStart.Add(Window),
	}, nil
}
