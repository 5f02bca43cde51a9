package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/interfaces"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if this holder's token is still there.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis serializes work per key across server instances using SET NX with
// a lease. The lease bounds how long a crashed holder blocks others.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger *common.Logger
}

// NewRedis creates a distributed locker. ttl is the lease length.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration, logger *common.Logger) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{
		client: client,
		prefix: prefix + "lock:",
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		logger: logger,
	}
}

// Lock polls SET NX until the key is acquired or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := r.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx %s: %w", key, err)
		}
		if ok {
			return func() { r.unlock(lockKey, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Redis) unlock(lockKey, token string) {
	// Release runs after the caller's ctx may be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := releaseScript.Run(ctx, r.client, []string{lockKey}, token).Int64()
	if err != nil {
		r.logger.Warn().Err(err).Str("key", lockKey).Msg("Failed to release lock")
		return
	}
	if res == 0 {
		r.logger.Warn().Str("key", lockKey).Msg("Lock lease expired before release")
	}
}

var _ interfaces.Locker = (*Redis)(nil)
