package campaign

import (
	"context"
	"time"

	"github.com/broadsend/groupcast/internal/domain"
)

// Repository defines the data access contract for campaign rows.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, owner, id string) (*domain.Campaign, error)

	// GetActive returns the running campaign for (owner, channel), or
	// ErrNotFound when none is running.
	GetActive(ctx context.Context, owner string, ch domain.Channel) (*domain.Campaign, error)

	// Create inserts a new campaign row. Returns ErrAlreadyRunning when the
	// at-most-one-running-per-(owner, channel) constraint rejects the insert.
	Create(ctx context.Context, c *domain.Campaign) error

	// SetStopped transitions the campaign to stopped, disables repeat, and
	// clears next_repeat_at.
	SetStopped(ctx context.Context, owner, id string) error

	// ArmRepeat sets next_repeat_at on a running campaign.
	ArmRepeat(ctx context.Context, id string, next time.Time) error

	// ClaimRepeat conditionally advances next_repeat_at to next, guarded on
	// the campaign still being running with repeat enabled and a watermark
	// <= now. Returns false when zero rows matched (another process won).
	ClaimRepeat(ctx context.Context, id string, now, next time.Time) (bool, error)

	// ListDueRepeats returns up to limit running campaigns whose repeat
	// watermark is due at or before now.
	ListDueRepeats(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error)
}

// JobRepository defines the data access contract for the job ledger.
type JobRepository interface {
	// InsertBatch persists a wave as a single multi-row insert.
	InsertBatch(ctx context.Context, jobs []domain.Job) error

	// FuturePendingKeys returns the (group, template) pairs of this
	// campaign's pending jobs with scheduled_at at or after now.
	FuturePendingKeys(ctx context.Context, campaignID string, now time.Time) (map[domain.PairKey]bool, error)

	// HasDueActive reports whether any pending or processing job for the
	// campaign has scheduled_at at or before now.
	HasDueActive(ctx context.Context, campaignID string, now time.Time) (bool, error)

	// SkipActive bulk-transitions pending and processing jobs to skipped
	// with the given reason, stamping sent_at with the stop moment.
	// Returns the number of jobs skipped.
	SkipActive(ctx context.Context, campaignID, reason string, at time.Time) (int, error)

	// Progress returns per-status counts for the campaign.
	Progress(ctx context.Context, campaignID string) (*domain.Progress, error)

	// List returns all jobs for the campaign ordered by scheduled_at.
	List(ctx context.Context, campaignID string) ([]domain.Job, error)

	// SelectForRequeue returns the campaign's jobs eligible for requeue:
	// pending only, or every status when includeSent is set. Ordered by
	// scheduled_at ascending.
	SelectForRequeue(ctx context.Context, campaignID string, includeSent bool) ([]domain.Job, error)

	// ResetSchedule returns a job to pending at the given time, clearing
	// sent_at and last_error.
	ResetSchedule(ctx context.Context, id string, at time.Time) error
}

// GroupRepository supplies the planner's group input.
type GroupRepository interface {
	// ListSelected returns the owner's selected groups on the channel.
	ListSelected(ctx context.Context, owner string, ch domain.Channel) ([]domain.Group, error)
}

// TemplateRepository supplies the planner's template and targeting input.
type TemplateRepository interface {
	// ListEnabled returns the owner's enabled templates ordered by sort order.
	ListEnabled(ctx context.Context, owner string) ([]domain.Template, error)

	// ListTargets returns the owner's targeting overrides for the channel.
	ListTargets(ctx context.Context, owner string, ch domain.Channel) ([]domain.TemplateTarget, error)
}

// Queue is the delayed dispatch queue the planner mirrors jobs into.
// Enqueue with an id already present replaces the prior entry.
type Queue interface {
	Enqueue(ctx context.Context, jobID string, delay time.Duration) error
}
