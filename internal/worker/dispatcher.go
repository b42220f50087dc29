// Package worker holds the background loops: the dispatch worker pool, the
// repeat watchdog, the job recovery sweep, and the group sync.
package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/broadsend/groupcast/internal/channel"
	"github.com/broadsend/groupcast/internal/domain"
	"github.com/broadsend/groupcast/internal/message"
	"github.com/broadsend/groupcast/internal/pkg/logger"
	"github.com/broadsend/groupcast/internal/repository/postgres"
)

const (
	// DefaultDispatchPollInterval is how often the pool polls for due jobs.
	DefaultDispatchPollInterval = 2 * time.Second
	// DefaultDispatchBatchSize caps the jobs claimed per poll.
	DefaultDispatchBatchSize = 10
	// DefaultDispatchWorkers is the send concurrency.
	DefaultDispatchWorkers = 4
)

// DispatchQueue is the queue surface the dispatcher needs.
type DispatchQueue interface {
	PopDue(ctx context.Context, now time.Time, limit int) ([]string, error)
	Retry(ctx context.Context, jobID string) (bool, error)
}

// JobStore is the ledger surface the dispatcher needs.
type JobStore interface {
	Get(ctx context.Context, id string) (*domain.Job, error)
	MarkProcessing(ctx context.Context, id string) (bool, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkRetryPending(ctx context.Context, id, reason string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

// TemplateStore resolves the template text for a job.
type TemplateStore interface {
	Get(ctx context.Context, owner, id string) (*domain.Template, error)
}

// Dispatcher pops due job ids from the queue and delivers them through the
// channel gateways. The ledger's conditional processing claim is what makes
// concurrent dispatchers and late queue firings safe; the queue only
// decides WHEN a job id surfaces.
type Dispatcher struct {
	queue     DispatchQueue
	jobs      JobStore
	templates TemplateStore
	adapters  channel.Registry
	renderer  *message.Renderer

	pollInterval time.Duration
	batchSize    int
	workers      int

	sent   atomic.Int64
	failed atomic.Int64
}

// NewDispatcher creates a dispatcher with default polling and concurrency.
func NewDispatcher(q DispatchQueue, jobs JobStore, templates TemplateStore, adapters channel.Registry) *Dispatcher {
	return &Dispatcher{
		queue:        q,
		jobs:         jobs,
		templates:    templates,
		adapters:     adapters,
		renderer:     message.NewRenderer(),
		pollInterval: DefaultDispatchPollInterval,
		batchSize:    DefaultDispatchBatchSize,
		workers:      DefaultDispatchWorkers,
	}
}

// SetWorkers overrides the send concurrency.
func (d *Dispatcher) SetWorkers(n int) {
	if n > 0 {
		d.workers = n
	}
}

// SetPollInterval overrides the queue poll interval.
func (d *Dispatcher) SetPollInterval(iv time.Duration) {
	if iv > 0 {
		d.pollInterval = iv
	}
}

// Stats returns lifetime sent and failed counters.
func (d *Dispatcher) Stats() (sent, failed int64) {
	return d.sent.Load(), d.failed.Load()
}

// Start runs the poll loop and worker pool until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	log.Printf("[Dispatcher] Starting (workers=%d, poll=%s, batch=%d)",
		d.workers, d.pollInterval, d.batchSize)

	ids := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				d.process(ctx, id)
			}
		}()
	}

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(ids)
			wg.Wait()
			log.Println("[Dispatcher] Stopped")
			return
		case <-ticker.C:
			due, err := d.queue.PopDue(ctx, time.Now(), d.batchSize)
			if err != nil {
				log.Printf("[Dispatcher] poll failed: %v", err)
				continue
			}
			for _, id := range due {
				select {
				case ids <- id:
				case <-ctx.Done():
				}
			}
		}
	}
}

// process delivers one job id. Every early return is a deliberate no-op:
// the ledger row is the source of truth, the queue entry just a hint.
func (d *Dispatcher) process(ctx context.Context, jobID string) {
	job, err := d.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, postgres.ErrJobNotFound) {
			log.Printf("[Dispatcher] job %s vanished from ledger, dropping", jobID)
			return
		}
		log.Printf("[Dispatcher] load job %s: %v", jobID, err)
		return
	}

	claimed, err := d.jobs.MarkProcessing(ctx, job.ID)
	if err != nil {
		log.Printf("[Dispatcher] claim job %s: %v", job.ID, err)
		return
	}
	if !claimed {
		// Already sent, skipped by a stop, failed for good, or claimed
		// by another dispatcher. Late queue firings land here.
		return
	}

	if err := d.deliver(ctx, job); err != nil {
		d.failed.Add(1)
		again, rErr := d.queue.Retry(ctx, job.ID)
		if rErr != nil {
			log.Printf("[Dispatcher] schedule retry for %s: %v", job.ID, rErr)
			again = false
		}
		if again {
			// Back to pending for the retry, so a campaign stop in the
			// backoff window skips it like any other waiting job.
			if mErr := d.jobs.MarkRetryPending(ctx, job.ID, err.Error()); mErr != nil {
				log.Printf("[Dispatcher] mark job %s retry pending: %v", job.ID, mErr)
			}
			log.Printf("[Dispatcher] job %s failed, retrying: %v", job.ID, err)
		} else {
			if mErr := d.jobs.MarkFailed(ctx, job.ID, err.Error()); mErr != nil {
				log.Printf("[Dispatcher] mark job %s failed: %v", job.ID, mErr)
			}
			log.Printf("[Dispatcher] job %s failed permanently: %v", job.ID, err)
		}
		return
	}

	d.sent.Add(1)
	logger.Info("message delivered",
		"job_id", job.ID,
		"campaign_id", job.CampaignID,
		"channel", string(job.Channel),
		"chat_id", job.GroupChatID)
	if err := d.jobs.MarkSent(ctx, job.ID, time.Now()); err != nil {
		log.Printf("[Dispatcher] mark job %s sent: %v", job.ID, err)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, job *domain.Job) error {
	adapter, ok := d.adapters.For(job.Channel)
	if !ok {
		return errors.New("no adapter for channel " + string(job.Channel))
	}

	status, err := adapter.ConnectionStatus(ctx, job.Owner)
	if err != nil {
		return err
	}
	if status != channel.StatusConnected {
		return channel.ErrNotConnected
	}

	tmpl, err := d.templates.Get(ctx, job.Owner, job.TemplateID)
	if err != nil {
		return err
	}

	msg := channel.Message{
		Text:     d.renderer.Render(*tmpl, *job),
		MediaURL: tmpl.MediaURL,
	}
	return adapter.SendToGroup(ctx, job.Owner, job.GroupChatID, msg)
}
