package worker

import (
	"context"
	"log"
	"time"

	"github.com/broadsend/groupcast/internal/domain"
	"github.com/broadsend/groupcast/internal/pkg/distlock"
	"github.com/broadsend/groupcast/internal/service/campaign"
)

const (
	// DefaultWatchdogInterval is the repeat scan tick.
	DefaultWatchdogInterval = 10 * time.Second
	// DefaultWatchdogBatch bounds how many due campaigns one tick handles.
	DefaultWatchdogBatch = 20
	// WatchdogLockTTL bounds how long a crashed holder can wedge the scan.
	WatchdogLockTTL = 30 * time.Second
)

// CampaignService is the surface the watchdog drives.
type CampaignService interface {
	DueRepeats(ctx context.Context, limit int) ([]domain.Campaign, error)
	RepeatWaveIfReady(ctx context.Context, c domain.Campaign) (string, error)
}

// RepeatWatchdog scans for campaigns whose repeat watermark is due and asks
// the campaign service to plan their next wave. The distributed lock only
// reduces wasted work across instances; correctness rests on the
// conditional watermark claim inside RepeatWaveIfReady.
type RepeatWatchdog struct {
	svc      CampaignService
	lock     distlock.DistLock
	interval time.Duration
	batch    int
}

// NewRepeatWatchdog creates a watchdog. lock may be nil when running a
// single instance.
func NewRepeatWatchdog(svc CampaignService, lock distlock.DistLock) *RepeatWatchdog {
	return &RepeatWatchdog{
		svc:      svc,
		lock:     lock,
		interval: DefaultWatchdogInterval,
		batch:    DefaultWatchdogBatch,
	}
}

// SetInterval overrides the scan tick.
func (w *RepeatWatchdog) SetInterval(iv time.Duration) {
	if iv > 0 {
		w.interval = iv
	}
}

// Start runs the scan loop until ctx is cancelled.
func (w *RepeatWatchdog) Start(ctx context.Context) {
	log.Printf("[RepeatWatchdog] Starting (interval=%s, batch=%d)", w.interval, w.batch)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[RepeatWatchdog] Stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// Tick runs one scan pass. Exported for the embedded-server mode and tests.
func (w *RepeatWatchdog) Tick(ctx context.Context) {
	w.tick(ctx)
}

func (w *RepeatWatchdog) tick(ctx context.Context) {
	if w.lock != nil {
		acquired, err := w.lock.Acquire(ctx)
		if err != nil {
			log.Printf("[RepeatWatchdog] lock acquire failed: %v", err)
			return
		}
		if !acquired {
			return
		}
		defer func() {
			if err := w.lock.Release(ctx); err != nil {
				log.Printf("[RepeatWatchdog] lock release failed: %v", err)
			}
		}()
	}

	due, err := w.svc.DueRepeats(ctx, w.batch)
	if err != nil {
		log.Printf("[RepeatWatchdog] scan failed: %v", err)
		return
	}

	for _, c := range due {
		outcome, err := w.svc.RepeatWaveIfReady(ctx, c)
		if err != nil {
			log.Printf("[RepeatWatchdog] campaign %s: %v", c.ID, err)
			continue
		}
		switch outcome {
		case campaign.RepeatPlanned:
			log.Printf("[RepeatWatchdog] campaign %s: wave planned", c.ID)
		case campaign.RepeatWaveInProgress, campaign.RepeatNotClaimed, campaign.RepeatNotEligible:
			// Normal contention outcomes, nothing to do this tick.
		}
	}
}
