// Package lock provides the claim that keeps two tickers from working the
// same campaign at once.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type Locker interface {
	// Acquire claims key for ttl. ok is false when someone else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (lease Lease, ok bool, err error)
}

type Lease interface {
	Release(ctx context.Context) error
}

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	Client *redis.Client
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{client: l.Client, key: key, token: token}, true, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localClaim
	now  func() time.Time
}

type localClaim struct {
	token   string
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]localClaim{}, now: time.Now}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if c, ok := l.held[key]; ok && now.Before(c.expires) {
		return nil, false, nil
	}
	token := uuid.NewString()
	l.held[key] = localClaim{token: token, expires: now.Add(ttl)}
	return &localLease{owner: l, key: key, token: token}, true, nil
}

type localLease struct {
	owner *LocalLocker
	key   string
	token string
}

func (l *localLease) Release(ctx context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	if c, ok := l.owner.held[l.key]; ok && c.token == l.token {
		delete(l.owner.held, l.key)
	}
	return nil
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = (*LocalLocker)(nil)
)
