// Package queue implements the delayed dispatch queue on Redis.
//
// Jobs live in a sorted set scored by their due time in unix milliseconds;
// ZADD on an existing member replaces its score, which gives enqueue its
// idempotent-replace semantics for free. Attempt counts live in a hash
// keyed by job id. Due members are claimed with a Lua script so two
// dispatcher instances never pop the same job.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	schedKey    = "dispatch:sched"
	attemptsKey = "dispatch:attempts"

	// DefaultMaxAttempts caps delivery retries per job.
	DefaultMaxAttempts = 5
	// DefaultBackoffBase is the first retry delay; each further retry doubles it.
	DefaultBackoffBase = 5 * time.Second
)

// popScript atomically claims due members: read then remove in one call.
var popScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
if #due > 0 then
	redis.call('ZREM', KEYS[1], unpack(due))
end
return due
`)

// Queue is a durable delayed task queue for dispatch job ids.
type Queue struct {
	rdb         *redis.Client
	maxAttempts int
	backoffBase time.Duration
}

// New creates a queue on the given Redis client with the default retry policy.
func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb, maxAttempts: DefaultMaxAttempts, backoffBase: DefaultBackoffBase}
}

// Enqueue schedules a job id to fire after delay. Re-enqueueing an id
// already in the queue replaces its due time and resets its attempt count.
func (q *Queue) Enqueue(ctx context.Context, jobID string, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	due := time.Now().Add(delay)
	pipe := q.rdb.TxPipeline()
	pipe.ZAdd(ctx, schedKey, redis.Z{Score: float64(due.UnixMilli()), Member: jobID})
	pipe.HDel(ctx, attemptsKey, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobID, err)
	}
	return nil
}

// PopDue claims up to limit job ids due at or before now. Claimed ids are
// removed from the schedule; a crashed consumer is healed by the ledger
// recovery worker, not by the queue.
func (q *Queue) PopDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	res, err := popScript.Run(ctx, q.rdb, []string{schedKey}, now.UnixMilli(), limit).StringSlice()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("pop due: %w", err)
	}
	return res, nil
}

// Retry re-schedules a failed job with exponential backoff. It returns
// false once the attempt cap is reached, at which point the job stays
// failed in the ledger until an operator requeues it.
func (q *Queue) Retry(ctx context.Context, jobID string) (bool, error) {
	attempt, err := q.rdb.HIncrBy(ctx, attemptsKey, jobID, 1).Result()
	if err != nil {
		return false, fmt.Errorf("count attempt for %s: %w", jobID, err)
	}
	if int(attempt) >= q.maxAttempts {
		if err := q.rdb.HDel(ctx, attemptsKey, jobID).Err(); err != nil {
			return false, fmt.Errorf("clear attempts for %s: %w", jobID, err)
		}
		return false, nil
	}

	backoff := q.backoffBase << (attempt - 1)
	due := time.Now().Add(backoff)
	if err := q.rdb.ZAdd(ctx, schedKey, redis.Z{Score: float64(due.UnixMilli()), Member: jobID}).Err(); err != nil {
		return false, fmt.Errorf("reschedule %s: %w", jobID, err)
	}
	return true, nil
}

// Remove drops a job id from the schedule and clears its attempts.
func (q *Queue) Remove(ctx context.Context, jobID string) error {
	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, schedKey, jobID)
	pipe.HDel(ctx, attemptsKey, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove %s: %w", jobID, err)
	}
	return nil
}

// Depth returns the number of scheduled entries.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, schedKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}
