package nlu

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/semlayer/internal/intent"
)

// Set SEMLAYER_TEST_REDIS_ADDR to run against a live server.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("SEMLAYER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SEMLAYER_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	cache, err := NewRedisCache(ctx, addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	key := "test-" + uuid.NewString()
	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	in := &intent.StructuredIntent{MetricID: "total_spending", Breakdown: "value_tiers"}
	require.NoError(t, cache.Set(ctx, key, in, time.Minute))

	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fingerprint(t, in), fingerprint(t, got))
}
