package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/ledgerflow/pkg/idempotency"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Claim(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := idempotency.NewMemoryStore(clock)

	claimed, err := store.Claim(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.Claim(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = store.Claim(ctx, "evt-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	clock.Advance(time.Minute)

	claimed, err = store.Claim(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed, "expired claims can be taken again")

	_, err = store.Claim(ctx, "", time.Minute)
	require.ErrorIs(t, err, idempotency.ErrEmptyKey)
}

func TestRedisStore_Claim(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	store := idempotency.NewRedisStore(client, "")

	claimed, err := store.Claim(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.True(t, server.Exists(idempotency.DefaultKeyPrefix+"evt-1"))

	claimed, err = store.Claim(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	server.FastForward(time.Minute + time.Second)

	claimed, err = store.Claim(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	_, err = store.Claim(ctx, "", time.Minute)
	require.ErrorIs(t, err, idempotency.ErrEmptyKey)
}

func TestRedisStore_ConnectionFailure(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})

	t.Cleanup(func() {
		_ = client.Close()
	})

	server.Close()

	_, err := idempotency.NewRedisStore(client, "test:").Claim(context.Background(), "evt-1", time.Minute)
	assert.Error(t, err)
}
