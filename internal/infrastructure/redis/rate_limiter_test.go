package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	t.Run("上限までは許可し、超えたら拒否する", func(t *testing.T) {
		limiter := NewRateLimiter(client, 3, time.Minute)
		for i := 0; i < 3; i++ {
			ok, err := limiter.Allow(ctx, "ip:192.0.2.1")
			require.NoError(t, err)
			assert.True(t, ok, "request %d", i+1)
		}
		ok, err := limiter.Allow(ctx, "ip:192.0.2.1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("キーごとに独立して数える", func(t *testing.T) {
		limiter := NewRateLimiter(client, 1, time.Minute)
		ok, err := limiter.Allow(ctx, "ip:192.0.2.10")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = limiter.Allow(ctx, "ip:192.0.2.11")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ウィンドウが過ぎるとリセットされる", func(t *testing.T) {
		limiter := NewRateLimiter(client, 1, 500*time.Millisecond)
		ok, err := limiter.Allow(ctx, "ip:192.0.2.20")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = limiter.Allow(ctx, "ip:192.0.2.20")
		require.NoError(t, err)
		assert.False(t, ok)

		time.Sleep(700 * time.Millisecond)
		ok, err = limiter.Allow(ctx, "ip:192.0.2.20")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
