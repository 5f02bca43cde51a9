package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedValue struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestMemorySetGet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", cachedValue{Name: "a", Score: 1.5}, time.Minute))

	var got cachedValue
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, cachedValue{Name: "a", Score: 1.5}, got)
}

func TestMemoryMiss(t *testing.T) {
	c := NewMemory()
	var got cachedValue
	hit, err := c.Get(context.Background(), "absent", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestMemoryExpiry(t *testing.T) {
	c := NewMemory()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", cachedValue{Name: "a"}, time.Minute))
	now = now.Add(59 * time.Second)
	var got cachedValue
	hit, _ := c.Get(ctx, "k", &got)
	assert.True(t, hit)

	now = now.Add(time.Second)
	hit, _ = c.Get(ctx, "k", &got)
	assert.False(t, hit)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryDeletePrefix(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, SimulationKey("u1", "", ""), 1, 0))
	require.NoError(t, c.Set(ctx, SimulationKey("u1", "2026-01-01", "2026-02-01"), 2, 0))
	require.NoError(t, c.Set(ctx, SimulationKey("u10", "", ""), 3, 0))
	require.NoError(t, c.Set(ctx, AdviceKey("u1"), 4, 0))

	require.NoError(t, c.DeletePrefix(ctx, SimulationPrefix("u1")))

	var v int
	hit, _ := c.Get(ctx, SimulationKey("u1", "", ""), &v)
	assert.False(t, hit)
	hit, _ = c.Get(ctx, SimulationKey("u10", "", ""), &v)
	assert.True(t, hit, "prefix must not match a different user with a shared prefix")
	hit, _ = c.Get(ctx, AdviceKey("u1"), &v)
	assert.True(t, hit)

	require.NoError(t, c.Delete(ctx, UserKeys("u1")...))
	hit, _ = c.Get(ctx, AdviceKey("u1"), &v)
	assert.False(t, hit)
}

func TestMemoryReturnsCopies(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	in := []string{"a", "b"}
	require.NoError(t, c.Set(ctx, "k", in, 0))
	in[0] = "mutated"

	var out []string
	_, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestNop(t *testing.T) {
	var c Nop
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", 1, 0))
	var v int
	hit, err := c.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, hit)
}
