// Package cyclelock keeps two sequencer batches from running at once across
// processes. Row leases already make overlapping batches safe; the lock
// keeps them from wasting a cycle fighting over the same rows. A held lock
// is renewed for as long as its batch runs.
package cyclelock

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKey = "leadflow:followups:cycle"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry out only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker grants a single holder per key.
type Locker interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

// RedisLocker is a Locker backed by SET NX PX.
type RedisLocker struct {
	client *redis.Client
	key    string
}

// New creates a locker on client.
func New(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, key: defaultKey}
}

// NewFromURL dials Redis from a redis:// or rediss:// URL.
func NewFromURL(redisURL string, tlsInsecure bool) (*RedisLocker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.TLSConfig != nil && tlsInsecure {
		opt.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed managed Redis
	}
	return New(redis.NewClient(opt)), nil
}

// WithKey returns a copy of the locker guarding key.
func (l *RedisLocker) WithKey(key string) *RedisLocker {
	return &RedisLocker{client: l.client, key: key}
}

// Acquire takes the lock for ttl. When another holder has it, ok is false.
// While held, the lock is renewed every third of ttl so a batch that runs
// longer than ttl keeps it. Renewal stops on release, once the key is lost
// or when Redis cannot be reached. release is safe to call after the lock expired.
func (l *RedisLocker) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire cycle lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	done := make(chan struct{})
	go l.keepAlive(context.WithoutCancel(ctx), token, ttl, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(done)
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
		})
	}
	return release, true, nil
}

func (l *RedisLocker) keepAlive(ctx context.Context, token string, ttl time.Duration, done <-chan struct{}) {
	interval := ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			extended, err := extendScript.Run(ctx, l.client, []string{l.key}, token, ttl.Milliseconds()).Int()
			if err != nil || extended == 0 {
				return
			}
		}
	}
}

// Close closes the Redis client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// Noop always grants the lock. Single-instance deployments without Redis
// use it.
type Noop struct{}

// Acquire always succeeds.
func (Noop) Acquire(context.Context, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = Noop{}
)
