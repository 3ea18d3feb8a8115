package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTierRoundtrip(t *testing.T) {
	t.Parallel()

	m := NewMemoryTier(time.Minute, 0)
	defer m.Close()
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k1", []byte("v1"), 0))
	value, ok, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), value)

	require.NoError(t, m.Set(ctx, "k1", []byte("v2"), 0))
	value, _, _ = m.Get(ctx, "k1")
	assert.Equal(t, []byte("v2"), value, "set overwrites")

	require.NoError(t, m.Remove(ctx, "k1"))
	_, ok, err = m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Remove(ctx, "k1"), "removing an absent key is a no-op")
}

func TestMemoryTierExpiry(t *testing.T) {
	t.Parallel()

	m := NewMemoryTier(time.Minute, 0)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "short", []byte("x"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := m.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryTierKeysByPrefix(t *testing.T) {
	t.Parallel()

	m := NewMemoryTier(time.Minute, 0)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "ws1:unified:a", []byte("1"), 0))
	require.NoError(t, m.Set(ctx, "ws1:unified:b", []byte("2"), 0))
	require.NoError(t, m.Set(ctx, "ws2:unified:c", []byte("3"), 0))
	require.NoError(t, m.Set(ctx, "ws1:counts", []byte("4"), 0))

	keys, err := m.Keys(ctx, "ws1:unified:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ws1:unified:a", "ws1:unified:b"}, keys,
		"prefix scans never cross workspaces")
}
