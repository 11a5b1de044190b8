package lock

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-inventory/internal/model"
)

// releaseScript deletes the key only when it still carries the caller's
// lock id, so a lock that expired and was re-acquired by someone else is
// never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStore keeps locks as plain keys with a TTL. SET NX is the atomic
// create-if-absent; expiry is handled by Redis itself.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore returns a RedisStore namespacing keys under prefix.
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "lock"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return s.prefix + ":" + k }

// Acquire creates the lock if no live lock exists for l.Key.
func (s *RedisStore) Acquire(ctx context.Context, l model.Lock) error {
	ok, err := s.rdb.SetNX(ctx, s.key(l.Key), l.ID, ttlOf(l)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}
	return nil
}

// Release deletes the lock if it is still owned by id.
func (s *RedisStore) Release(ctx context.Context, key, id string) error {
	n, err := releaseScript.Run(ctx, s.rdb, []string{s.key(key)}, id).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Held reports whether id still owns key.
func (s *RedisStore) Held(ctx context.Context, key, id string) (bool, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == id, nil
}

// ttlOf is the lock's lifetime on the caller's clock, floored at the
// smallest TTL Redis accepts.
func ttlOf(l model.Lock) time.Duration {
	ttl := l.ExpiresAt.Sub(l.CreatedAt)
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	return ttl
}

// DeleteExpired is a no-op: Redis expires keys on its own.
func (s *RedisStore) DeleteExpired(context.Context, time.Time) (int, error) { return 0, nil }
