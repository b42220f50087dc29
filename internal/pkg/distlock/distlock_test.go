package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisLockExclusive(t *testing.T) {
	ctx := context.Background()
	rdb := newTestRedis(t)

	a := NewRedisLock(rdb, "watchdog", time.Minute)
	b := NewRedisLock(rdb, "watchdog", time.Minute)

	got, err := a.Acquire(ctx)
	if err != nil || !got {
		t.Fatalf("first Acquire = %v, %v", got, err)
	}
	got, err = b.Acquire(ctx)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if got {
		t.Fatal("second holder acquired a held lock")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	got, err = b.Acquire(ctx)
	if err != nil || !got {
		t.Fatalf("Acquire after release = %v, %v", got, err)
	}
}

func TestRedisLockReleaseRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	rdb := newTestRedis(t)

	a := NewRedisLock(rdb, "watchdog", time.Minute)
	b := NewRedisLock(rdb, "watchdog", time.Minute)

	if got, _ := a.Acquire(ctx); !got {
		t.Fatal("owner failed to acquire")
	}
	// A non-owner release must not free the lock.
	if err := b.Release(ctx); err != nil {
		t.Fatalf("non-owner Release: %v", err)
	}
	if got, _ := b.Acquire(ctx); got {
		t.Fatal("lock freed by non-owner release")
	}
}

func TestNewLockPrefersRedis(t *testing.T) {
	rdb := newTestRedis(t)
	if _, ok := NewLock(rdb, nil, "k", time.Minute).(*RedisLock); !ok {
		t.Fatal("expected RedisLock when a client is given")
	}
	if _, ok := NewLock(nil, nil, "k", time.Minute).(*PGAdvisoryLock); !ok {
		t.Fatal("expected PGAdvisoryLock fallback")
	}
}
