package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_FirstTokenImmediate(t *testing.T) {
	l := New(time.Second)

	start := time.Now()
	require.NoError(t, l.RemoveTokens(context.Background(), 1))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiter_SpacesTokensByInterval(t *testing.T) {
	interval := 30 * time.Millisecond
	l := New(interval)

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, l.RemoveTokens(context.Background(), 1))
	}
	// First token is free, the remaining three each wait one refill.
	assert.GreaterOrEqual(t, time.Since(start), 3*interval-5*time.Millisecond)
}

func TestLimiter_MultipleTokens(t *testing.T) {
	interval := 20 * time.Millisecond
	l := New(interval)

	start := time.Now()
	require.NoError(t, l.RemoveTokens(context.Background(), 3))
	assert.GreaterOrEqual(t, time.Since(start), 2*interval-5*time.Millisecond)
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := New(time.Hour)
	require.NoError(t, l.RemoveTokens(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.RemoveTokens(ctx, 1))
}

func TestLimiter_DefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultInterval, New(0).Interval())
	assert.Equal(t, 5*time.Millisecond, New(5*time.Millisecond).Interval())
}
