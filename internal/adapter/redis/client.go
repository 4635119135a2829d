package redis

import (
	"context"
	"fmt"

	"github.com/0x-mperego/unimec-display/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient parses redisURL, attaches the metrics hook when m is non-nil
// and verifies the connection.
func NewClient(ctx context.Context, redisURL string, m *metrics.RedisMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if m != nil {
		rdb.AddHook(instrumentation{metrics: m})
	}

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
