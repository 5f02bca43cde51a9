package lock

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/playasset/internal/common"
	tcommon "github.com/bobmcallan/playasset/tests/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedisLocker(t *testing.T, ttl time.Duration) *Redis {
	t.Helper()
	rc := tcommon.StartRedis(t)
	client := redis.NewClient(&redis.Options{Addr: rc.Address()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, fmt.Sprintf("t%d:", time.Now().UnixNano()), ttl, common.NewSilentLogger())
}

func TestRedisLockExclusive(t *testing.T) {
	l := testRedisLocker(t, 5*time.Second)
	ctx := context.Background()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "position")
			if !assert.NoError(t, err) {
				return
			}
			v := counter
			time.Sleep(2 * time.Millisecond)
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, counter)
}

func TestRedisLockTimeout(t *testing.T) {
	l := testRedisLocker(t, 5*time.Second)

	unlock, err := l.Lock(context.Background(), "held")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "held")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLockLeaseExpires(t *testing.T) {
	l := testRedisLocker(t, 200*time.Millisecond)

	_, err := l.Lock(context.Background(), "crashed")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	unlock, err := l.Lock(ctx, "crashed")
	require.NoError(t, err)
	unlock()
}
