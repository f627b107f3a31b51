package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUserLimiterBoundsConcurrencyPerUser(t *testing.T) {
	limiter := newUserLimiter(1)

	require.True(t, limiter.acquire(context.Background(), "u-1"))

	blocked, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.False(t, limiter.acquire(blocked, "u-1"))

	// Another user is unaffected by the first one's backlog.
	require.True(t, limiter.acquire(context.Background(), "u-2"))
	limiter.release("u-2")

	limiter.release("u-1")
	require.True(t, limiter.acquire(context.Background(), "u-1"))
	limiter.release("u-1")
}

func TestUserLimiterRejectsCanceledContext(t *testing.T) {
	limiter := newUserLimiter(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.False(t, limiter.acquire(ctx, "u-1"))

	active, users := limiter.counts()
	require.Equal(t, 0, active)
	require.Equal(t, 0, users)
}

func TestUserLimiterCleanupDropsIdleUsers(t *testing.T) {
	limiter := newUserLimiter(2)

	require.True(t, limiter.acquire(context.Background(), "busy"))
	require.True(t, limiter.acquire(context.Background(), "idle"))
	limiter.release("idle")

	limiter.cleanup()

	active, users := limiter.counts()
	require.Equal(t, 1, active)
	require.Equal(t, 1, users)

	limiter.release("busy")
}
