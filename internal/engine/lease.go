package engine

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lease establishes exclusive tick ownership (§5: "there is exactly one
// tick in flight per deployment"). Acquire is non-blocking: it reports
// false rather than waiting when another holder is active, so the cadence
// loop can skip the tick instead of queuing it.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LocalLease is a process-local lease backed by a non-blocking mutex —
// the default for single-node deployments (§5).
type LocalLease struct {
	ch chan struct{}
}

// NewLocalLease returns a ready-to-acquire LocalLease.
func NewLocalLease() *LocalLease {
	l := &LocalLease{ch: make(chan struct{}, 1)}
	l.ch <- struct{}{}
	return l
}

func (l *LocalLease) Acquire(ctx context.Context) (bool, error) {
	select {
	case <-l.ch:
		return true, nil
	default:
		return false, nil
	}
}

func (l *LocalLease) Release(ctx context.Context) error {
	select {
	case l.ch <- struct{}{}:
	default:
	}
	return nil
}

// RedisLease is a distributed lease using the classic SET NX EX pattern —
// grounded on the teacher's RedisCacheManager's use of the same client for
// single-value TTL'd state (internal/infrastructure/data.RedisCacheManager),
// applied here to "one process holds the tick" instead of "one cached
// quote." If the holder dies without releasing, the key's TTL expiry lets
// another process acquire after ttl elapses (§5: "another process may
// acquire the lease after TTL and resume at the next scheduled boundary").
type RedisLease struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewRedisLease builds a lease keyed by key, held for at most ttl.
func NewRedisLease(client *redis.Client, key, token string, ttl time.Duration) *RedisLease {
	return &RedisLease{client: client, key: key, token: token, ttl: ttl}
}

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Release deletes the lease key only if it still holds this lease's token,
// so a lease that expired and was reacquired by another process is never
// torn down by a late Release call from the original holder.
func (l *RedisLease) Release(ctx context.Context) error {
	const script = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`
	return l.client.Eval(ctx, script, []string{l.key}, l.token).Err()
}

var (
	_ Lease = (*LocalLease)(nil)
	_ Lease = (*RedisLease)(nil)
)
