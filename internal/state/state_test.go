package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGenerations(t *testing.T) {
	s := NewMemoryStateManager()
	ctx := context.Background()

	gen, err := s.Generation(ctx, "queries")
	require.NoError(t, err)
	assert.Zero(t, gen)

	gen, err = s.Bump(ctx, "queries")
	require.NoError(t, err)
	assert.EqualValues(t, 1, gen)

	other, err := s.Generation(ctx, "terms")
	require.NoError(t, err)
	assert.Zero(t, other)
}

func TestMemoryAcquireExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStateManager().(*memoryStateManager)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := s.Acquire(ctx, "rewrite:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Acquire(ctx, "rewrite:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = s.Acquire(ctx, "rewrite:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Release(ctx, "rewrite:1"))
	ok, err = s.Acquire(ctx, "rewrite:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
