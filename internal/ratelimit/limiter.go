package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter answers whether an action keyed by a string may run now.
type RateLimiter interface {
	Allow(key string) bool
}

// Limiter enforces a minimum interval between requests to the same host.
type Limiter struct {
	mu          sync.Mutex
	hosts       map[string]time.Time
	minInterval time.Duration
}

// New creates a limiter with the given minimum interval per host.
func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		hosts:       make(map[string]time.Time),
		minInterval: minInterval,
	}
}

// Allow reports whether a request to host may proceed now, and records it
// if so.
func (l *Limiter) Allow(host string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.hosts[host]
	if ok && time.Since(last) < l.minInterval {
		return false
	}
	l.hosts[host] = time.Now()
	return true
}

// Wait blocks until a request to host is allowed, then records it. It
// returns early with ctx.Err() when the context is canceled, so a shutdown
// never stalls on a politeness delay.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	for {
		l.mu.Lock()
		last, ok := l.hosts[host]
		if !ok || time.Since(last) >= l.minInterval {
			l.hosts[host] = time.Now()
			l.mu.Unlock()
			return nil
		}
		sleep := l.minInterval - time.Since(last)
		l.mu.Unlock()

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Reset forgets the recorded timestamp for one host.
func (l *Limiter) Reset(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hosts, host)
}

// ResetAll forgets all recorded hosts.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hosts = make(map[string]time.Time)
}

var _ RateLimiter = (*Limiter)(nil)

// setNXClient is the slice of the Redis client the limiter needs.
type setNXClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLimiter is a distributed rate limiter backed by Redis SETNX, used
// when multiple instances must share refresh-trigger limits.
type RedisLimiter struct {
	client   setNXClient
	prefix   string
	interval time.Duration
}

func NewRedis(client *redis.Client, prefix string, interval time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, interval: interval}
}

func (l *RedisLimiter) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ok, err := l.client.SetNX(ctx, l.prefix+key, 1, l.interval).Result()
	if err != nil {
		// Fail open: a Redis outage should not block refreshes.
		return true
	}
	return ok
}

var _ RateLimiter = (*RedisLimiter)(nil)
