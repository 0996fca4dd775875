package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "test:"), mr
}

func TestAllow_FixedWindow(t *testing.T) {
	l, mr := setupLimiter(t)
	ctx := context.Background()

	ok, _, err := l.Allow(ctx, "ad_claim", "u-1", 1, 15*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, retryAfter, err := l.Allow(ctx, "ad_claim", "u-1", 1, 15*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 15, retryAfter)

	ok, _, err = l.Allow(ctx, "ad_claim", "u-2", 1, 15*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "other subjects have their own window")

	mr.FastForward(16 * time.Second)
	ok, _, err = l.Allow(ctx, "ad_claim", "u-1", 1, 15*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "window resets after expiry")
}

func TestAllow_Disabled(t *testing.T) {
	tests := []struct {
		name    string
		limiter *Limiter
		limit   int
		window  time.Duration
		subject string
	}{
		{name: "nil limiter", limiter: nil, limit: 1, window: time.Second, subject: "u"},
		{name: "nil client", limiter: New(nil, ""), limit: 1, window: time.Second, subject: "u"},
		{name: "zero window", limiter: New(nil, ""), limit: 1, window: 0, subject: "u"},
		{name: "zero limit", limiter: New(nil, ""), limit: 0, window: time.Second, subject: "u"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, _, err := tt.limiter.Allow(context.Background(), "s", tt.subject, tt.limit, tt.window)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestAllow_RedisDown(t *testing.T) {
	l, mr := setupLimiter(t)
	mr.Close()

	_, _, err := l.Allow(context.Background(), "ad_claim", "u-1", 1, time.Second)
	assert.Error(t, err)
}
