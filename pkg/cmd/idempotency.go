package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/ledgerflow/pkg/idempotency"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// NewIdempotencyStore connects to redisURL, or keeps claims in memory when it is empty.
// The returned close function is never nil.
func NewIdempotencyStore(ctx context.Context, logger *slog.Logger, redisURL string) (idempotency.Store, func() error, error) {
	if redisURL == "" {
		logger.InfoContext(ctx, "Using in-memory idempotency store")

		return idempotency.NewMemoryStore(clockwork.NewRealClock()), func() error { return nil }, nil
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.InfoContext(ctx, "Using redis idempotency store", "addr", options.Addr)

	return idempotency.NewRedisStore(client, idempotency.DefaultKeyPrefix), client.Close, nil
}
