package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLeaseTTL     = 30 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLocker is a Locker shared by every process that uses the same Redis.
//
// Leases are SET NX PX keys holding a random token, renewed while held and
// released only by the holder of the token.
type RedisLocker struct {
	client       *redis.Client
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
}

type RedisLockerOption func(*RedisLocker)

// WithLeaseTTL sets how long a lease lives without being renewed.
func WithLeaseTTL(ttl time.Duration) RedisLockerOption {
	return func(l *RedisLocker) { l.ttl = ttl }
}

// WithPollInterval sets how often a blocked Lock retries.
func WithPollInterval(interval time.Duration) RedisLockerOption {
	return func(l *RedisLocker) { l.pollInterval = interval }
}

func NewRedisLocker(client *redis.Client, prefix string, opts ...RedisLockerOption) *RedisLocker {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	l := &RedisLocker{
		client:       client,
		prefix:       prefix,
		ttl:          defaultLeaseTTL,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLocker) key(id string) string {
	return l.prefix + ":lock:" + id
}

func (l *RedisLocker) Lock(ctx context.Context, id string) (Unlock, error) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		unlock, err := l.TryLock(ctx, id)
		if !errors.Is(err, ErrLockHeld) {
			return unlock, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, id string) (Unlock, error) {
	key, token := l.key(id), uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %q: %w", id, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				logger.Warn("failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}

func (l *RedisLocker) renew(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			renewed, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				logger.Warn("failed to renew lock", "key", key, "error", err)
				continue
			}
			if renewed == 0 {
				logger.Warn("lock lease lost", "key", key)
				return
			}
		}
	}
}
