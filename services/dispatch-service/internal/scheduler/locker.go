// services/dispatch-service/internal/scheduler/locker.go

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker grants exclusive, expiring locks by key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, bool, error)
}

type Lock interface {
	Release(ctx context.Context) error
}

// RedisLocker holds locks as SET NX keys with a random token so a replica
// can only release a lock it owns.
type RedisLocker struct {
	client redis.Cmdable
}

func NewRedisLocker(client redis.Cmdable) *RedisLocker {
	return &RedisLocker{client: client}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLock{client: l.client, key: key, token: token}, true, nil
}

type redisLock struct {
	client redis.Cmdable
	key    string
	token  string
}

func (l *redisLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}

// LocalLocker is an in-process Locker for single-replica deployments.
// Like RedisLocker, each grant carries a token and only its owner can
// release it.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localGrant
	clock func() time.Time
}

type localGrant struct {
	token   string
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localGrant), clock: time.Now}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if g, ok := l.held[key]; ok && now.Before(g.expires) {
		return nil, false, nil
	}
	token := uuid.NewString()
	l.held[key] = localGrant{token: token, expires: now.Add(ttl)}
	return localLock{l: l, key: key, token: token}, true, nil
}

type localLock struct {
	l     *LocalLocker
	key   string
	token string
}

func (k localLock) Release(ctx context.Context) error {
	k.l.mu.Lock()
	defer k.l.mu.Unlock()
	if g, ok := k.l.held[k.key]; ok && g.token == k.token {
		delete(k.l.held, k.key)
	}
	return nil
}
