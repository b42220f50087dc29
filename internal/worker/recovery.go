package worker

import (
	"context"
	"log"
	"time"
)

const (
	// DefaultRecoveryInterval is how often the ledger is swept.
	DefaultRecoveryInterval = 2 * time.Minute
	// DefaultStaleAge is how long a job may sit in processing before its
	// dispatcher is presumed dead.
	DefaultStaleAge = 5 * time.Minute
	// DefaultOverdueAge is how far past its schedule a pending job may be
	// before it is pushed back into the queue (queue entry lost).
	DefaultOverdueAge = 5 * time.Minute
)

// RecoveryStore is the ledger surface the recovery sweep needs.
type RecoveryStore interface {
	ResetStaleProcessing(ctx context.Context, cutoff time.Time) ([]string, error)
	ListOverduePendingIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// Enqueuer re-schedules recovered job ids for immediate dispatch.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string, delay time.Duration) error
}

// JobRecovery heals two crash modes: jobs stuck in processing after a
// dispatcher died mid-send, and pending jobs whose queue entry was lost.
// Both are returned to the queue; idempotent-replace enqueue makes the
// sweep safe to repeat.
type JobRecovery struct {
	jobs     RecoveryStore
	queue    Enqueuer
	interval time.Duration
	staleAge time.Duration
}

// NewJobRecovery creates a recovery sweep with default timing.
func NewJobRecovery(jobs RecoveryStore, queue Enqueuer) *JobRecovery {
	return &JobRecovery{
		jobs:     jobs,
		queue:    queue,
		interval: DefaultRecoveryInterval,
		staleAge: DefaultStaleAge,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (jr *JobRecovery) Start(ctx context.Context) {
	log.Printf("[JobRecovery] Starting (interval=%s, stale_age=%s)", jr.interval, jr.staleAge)

	ticker := time.NewTicker(jr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[JobRecovery] Stopped")
			return
		case <-ticker.C:
			jr.sweep(ctx)
		}
	}
}

// Sweep runs one recovery pass. Exported for tests.
func (jr *JobRecovery) Sweep(ctx context.Context) { jr.sweep(ctx) }

func (jr *JobRecovery) sweep(ctx context.Context) {
	now := time.Now()

	stale, err := jr.jobs.ResetStaleProcessing(ctx, now.Add(-jr.staleAge))
	if err != nil {
		log.Printf("[JobRecovery] reset stale processing: %v", err)
	} else {
		for _, id := range stale {
			if err := jr.queue.Enqueue(ctx, id, 0); err != nil {
				log.Printf("[JobRecovery] re-enqueue stale %s: %v", id, err)
			}
		}
		if len(stale) > 0 {
			log.Printf("[JobRecovery] requeued %d stale processing jobs", len(stale))
		}
	}

	overdue, err := jr.jobs.ListOverduePendingIDs(ctx, now.Add(-DefaultOverdueAge), 100)
	if err != nil {
		log.Printf("[JobRecovery] list overdue pending: %v", err)
		return
	}
	for _, id := range overdue {
		if err := jr.queue.Enqueue(ctx, id, 0); err != nil {
			log.Printf("[JobRecovery] re-enqueue overdue %s: %v", id, err)
		}
	}
	if len(overdue) > 0 {
		log.Printf("[JobRecovery] re-enqueued %d overdue pending jobs", len(overdue))
	}
}
