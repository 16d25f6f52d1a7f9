package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers keys for a while.  First reports whether key was unseen
// and marks it seen for ttl.
type Deduper interface {
	First(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisDeduper shares seen keys between sweeper instances using SET NX.
type RedisDeduper struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisDeduper returns a Deduper storing keys under prefix.
func NewRedisDeduper(rdb *redis.Client, prefix string) *RedisDeduper {
	return &RedisDeduper{rdb: rdb, prefix: prefix}
}

func (d *RedisDeduper) First(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, d.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// MemoryDeduper is a single-process Deduper.
type MemoryDeduper struct {
	mu   sync.Mutex
	now  func() time.Time
	seen map[string]time.Time
}

// NewMemoryDeduper returns an empty MemoryDeduper using the wall clock.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{now: time.Now, seen: make(map[string]time.Time)}
}

func (d *MemoryDeduper) First(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for k, until := range d.seen {
		if !until.After(now) {
			delete(d.seen, k)
		}
	}
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = now.Add(ttl)
	return true, nil
}
