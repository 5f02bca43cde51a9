package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	tcommon "github.com/bobmcallan/playasset/tests/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) *Redis {
	t.Helper()
	rc := tcommon.StartRedis(t)
	client := redis.NewClient(&redis.Options{Addr: rc.Address()})
	t.Cleanup(func() { client.Close() })
	// Unique prefix per test keeps runs isolated on the shared container.
	return NewRedis(client, fmt.Sprintf("t%d:", time.Now().UnixNano()))
}

func TestRedisSetGetDelete(t *testing.T) {
	c := testRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, AdviceKey("u1"), cachedValue{Name: "advice", Score: 2}, time.Minute))

	var got cachedValue
	hit, err := c.Get(ctx, AdviceKey("u1"), &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "advice", got.Name)

	require.NoError(t, c.Delete(ctx, AdviceKey("u1")))
	hit, err = c.Get(ctx, AdviceKey("u1"), &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisDeletePrefix(t *testing.T) {
	c := testRedis(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, c.Set(ctx, SimulationKey("u1", fmt.Sprintf("s%d", i), ""), i, time.Minute))
	}
	require.NoError(t, c.Set(ctx, SimulationKey("u2", "", ""), 1, time.Minute))

	require.NoError(t, c.DeletePrefix(ctx, SimulationPrefix("u1")))

	var v int
	hit, _ := c.Get(ctx, SimulationKey("u1", "s10", ""), &v)
	assert.False(t, hit)
	hit, _ = c.Get(ctx, SimulationKey("u2", "", ""), &v)
	assert.True(t, hit)
}
