package campaign

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/broadsend/groupcast/internal/domain"
	"github.com/broadsend/groupcast/internal/planner"
	"github.com/broadsend/groupcast/internal/schedule"
)

// Service implements the campaign state machine. All public methods are
// safe for concurrent use if the underlying repositories are; concurrent
// starts and repeat ticks are resolved by conditional writes in the
// repositories, not by locks here.
type Service struct {
	campaigns Repository
	jobs      JobRepository
	groups    GroupRepository
	templates TemplateRepository
	queue     Queue

	now func() time.Time
}

// NewService creates a campaign service backed by the given repositories
// and dispatch queue.
func NewService(campaigns Repository, jobs JobRepository, groups GroupRepository, templates TemplateRepository, queue Queue) *Service {
	return &Service{
		campaigns: campaigns,
		jobs:      jobs,
		groups:    groups,
		templates: templates,
		queue:     queue,
		now:       time.Now,
	}
}

// StartInput holds the settings for a new campaign.
type StartInput struct {
	Channel                domain.Channel `json:"channel"`
	TimeFrom               string         `json:"time_from"`
	TimeTo                 string         `json:"time_to"`
	Timezone               string         `json:"timezone"`
	BetweenGroupsSecMin    int            `json:"between_groups_sec_min"`
	BetweenGroupsSecMax    int            `json:"between_groups_sec_max"`
	BetweenTemplatesMinMin int            `json:"between_templates_min_min"`
	BetweenTemplatesMinMax int            `json:"between_templates_min_max"`
	RepeatEnabled          bool           `json:"repeat_enabled"`
	RepeatMinMinutes       int            `json:"repeat_min_minutes"`
	RepeatMaxMinutes       int            `json:"repeat_max_minutes"`
}

// WaveStats summarizes one planned wave.
type WaveStats struct {
	Planned        int `json:"planned"`
	SkippedPending int `json:"skipped_pending"`
}

// StartResult is the outcome of Start.
type StartResult struct {
	Campaign       *domain.Campaign `json:"campaign"`
	AlreadyRunning bool             `json:"already_running"`
	Stats          *WaveStats       `json:"stats,omitempty"`
}

func (in StartInput) validate() error {
	if !in.Channel.Valid() {
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, in.Channel)
	}
	for _, hhmm := range []string{in.TimeFrom, in.TimeTo} {
		if _, _, err := schedule.ParseHHMM(hhmm); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if in.RepeatEnabled && in.RepeatMaxMinutes <= 0 {
		return fmt.Errorf("%w: repeat enabled with no interval", ErrInvalidInput)
	}
	return nil
}

// Start launches a campaign for the owner on the given channel. If one is
// already running it is returned as-is with AlreadyRunning set. On fresh
// creation the first wave is planned immediately; a planning failure rolls
// the campaign back to stopped so it never dangles running with zero jobs.
func (s *Service) Start(ctx context.Context, owner string, in StartInput) (*StartResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	if existing, err := s.campaigns.GetActive(ctx, owner, in.Channel); err == nil {
		return &StartResult{Campaign: existing, AlreadyRunning: true}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check active campaign: %w", err)
	}

	now := s.now()
	c := &domain.Campaign{
		ID:                     uuid.New().String(),
		Owner:                  owner,
		Channel:                in.Channel,
		Status:                 domain.CampaignRunning,
		TimeFrom:               in.TimeFrom,
		TimeTo:                 in.TimeTo,
		Timezone:               in.Timezone,
		BetweenGroupsSecMin:    in.BetweenGroupsSecMin,
		BetweenGroupsSecMax:    in.BetweenGroupsSecMax,
		BetweenTemplatesMinMin: in.BetweenTemplatesMinMin,
		BetweenTemplatesMinMax: in.BetweenTemplatesMinMax,
		RepeatEnabled:          in.RepeatEnabled,
		RepeatMinMinutes:       in.RepeatMinMinutes,
		RepeatMaxMinutes:       in.RepeatMaxMinutes,
		CreatedAt:              now,
	}

	if err := s.campaigns.Create(ctx, c); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			// Lost the insert race: another request created the campaign
			// between our active check and the insert. Return the winner.
			winner, qerr := s.campaigns.GetActive(ctx, owner, in.Channel)
			if qerr != nil {
				return nil, fmt.Errorf("re-query after start race: %w", qerr)
			}
			return &StartResult{Campaign: winner, AlreadyRunning: true}, nil
		}
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	stats, err := s.runWave(ctx, c, now)
	if err != nil {
		if rbErr := s.campaigns.SetStopped(ctx, owner, c.ID); rbErr != nil {
			log.Printf("[campaign.Service] rollback of %s failed: %v", c.ID, rbErr)
		}
		return nil, fmt.Errorf("plan first wave: %w", err)
	}

	if c.RepeatEnabled {
		next := now.Add(time.Duration(schedule.RandBetween(c.RepeatMinMinutes, c.RepeatMaxMinutes)) * time.Minute)
		if err := s.campaigns.ArmRepeat(ctx, c.ID, next); err != nil {
			return nil, fmt.Errorf("arm repeat: %w", err)
		}
		c.NextRepeatAt = &next
	}

	log.Printf("[campaign.Service] Campaign %s started on %s: %d jobs planned", c.ID, c.Channel, stats.Planned)
	return &StartResult{Campaign: c, Stats: stats}, nil
}

// Stop terminates the campaign: status stopped, repeat disabled, and every
// job still pending or processing bulk-skipped. Queue entries already in
// flight are left alone; the dispatcher re-checks ledger status before
// sending, so late firings against skipped jobs are no-ops.
func (s *Service) Stop(ctx context.Context, owner, id string) (int, error) {
	c, err := s.campaigns.Get(ctx, owner, id)
	if err != nil {
		return 0, err
	}
	if !c.IsRunning() {
		return 0, ErrNotRunning
	}
	if err := s.campaigns.SetStopped(ctx, owner, c.ID); err != nil {
		return 0, fmt.Errorf("stop campaign: %w", err)
	}
	skipped, err := s.jobs.SkipActive(ctx, c.ID, domain.SkipReasonCampaignStopped, s.now())
	if err != nil {
		return 0, fmt.Errorf("skip active jobs: %w", err)
	}
	log.Printf("[campaign.Service] Campaign %s stopped: %d jobs skipped", c.ID, skipped)
	return skipped, nil
}

// Active returns the running campaign for (owner, channel), or ErrNotFound.
func (s *Service) Active(ctx context.Context, owner string, ch domain.Channel) (*domain.Campaign, error) {
	if !ch.Valid() {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, ch)
	}
	return s.campaigns.GetActive(ctx, owner, ch)
}

// Progress returns the campaign's per-status job counts and job list.
func (s *Service) Progress(ctx context.Context, owner, id string) (*domain.Progress, []domain.Job, error) {
	c, err := s.campaigns.Get(ctx, owner, id)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.jobs.Progress(ctx, c.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("progress: %w", err)
	}
	jobs, err := s.jobs.List(ctx, c.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list jobs: %w", err)
	}
	return p, jobs, nil
}

// Requeue resets the campaign's jobs back to pending and re-enqueues them.
// With forceNow everything fires immediately; otherwise each job keeps its
// offset from the earliest selected job's original schedule, re-based onto
// now, so relative ordering and gaps survive the requeue.
func (s *Service) Requeue(ctx context.Context, owner, id string, includeSent, forceNow bool) (int, error) {
	c, err := s.campaigns.Get(ctx, owner, id)
	if err != nil {
		return 0, err
	}

	jobs, err := s.jobs.SelectForRequeue(ctx, c.ID, includeSent)
	if err != nil {
		return 0, fmt.Errorf("select jobs: %w", err)
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	now := s.now()
	earliest := jobs[0].ScheduledAt
	for _, j := range jobs[1:] {
		if j.ScheduledAt.Before(earliest) {
			earliest = j.ScheduledAt
		}
	}

	for _, j := range jobs {
		at := now
		if !forceNow {
			at = now.Add(j.ScheduledAt.Sub(earliest))
		}
		if err := s.jobs.ResetSchedule(ctx, j.ID, at); err != nil {
			return 0, fmt.Errorf("reset job %s: %w", j.ID, err)
		}
		if err := s.queue.Enqueue(ctx, j.ID, at.Sub(now)); err != nil {
			return 0, fmt.Errorf("enqueue job %s: %w", j.ID, err)
		}
	}

	log.Printf("[campaign.Service] Campaign %s: requeued %d jobs (force_now=%v)", c.ID, len(jobs), forceNow)
	return len(jobs), nil
}

// Repeat tick outcomes.
const (
	RepeatPlanned        = "planned"
	RepeatWaveInProgress = "wave_in_progress"
	RepeatNotClaimed     = "not_claimed"
	RepeatNotEligible    = "not_eligible"
)

// DueRepeats returns running repeat campaigns whose watermark is due.
func (s *Service) DueRepeats(ctx context.Context, limit int) ([]domain.Campaign, error) {
	return s.campaigns.ListDueRepeats(ctx, s.now(), limit)
}

// RepeatWaveIfReady plans a repeat wave for a due campaign. The watermark
// is claimed with a conditional update before planning starts, so a crash
// mid-plan cannot re-trigger rapidly and two watchdogs racing the same
// campaign cannot both plan it. A wave still in flight defers the tick
// without touching the watermark.
func (s *Service) RepeatWaveIfReady(ctx context.Context, c domain.Campaign) (string, error) {
	now := s.now()

	fresh, err := s.campaigns.Get(ctx, c.Owner, c.ID)
	if err != nil {
		return RepeatNotEligible, err
	}
	if !fresh.IsRunning() || !fresh.RepeatEnabled || fresh.NextRepeatAt == nil || fresh.NextRepeatAt.After(now) {
		return RepeatNotEligible, nil
	}

	inFlight, err := s.jobs.HasDueActive(ctx, fresh.ID, now)
	if err != nil {
		return "", fmt.Errorf("check wave in flight: %w", err)
	}
	if inFlight {
		return RepeatWaveInProgress, nil
	}

	next := now.Add(time.Duration(schedule.RandBetween(fresh.RepeatMinMinutes, fresh.RepeatMaxMinutes)) * time.Minute)
	claimed, err := s.campaigns.ClaimRepeat(ctx, fresh.ID, now, next)
	if err != nil {
		return "", fmt.Errorf("claim repeat: %w", err)
	}
	if !claimed {
		return RepeatNotClaimed, nil
	}

	stats, err := s.runWave(ctx, fresh, now)
	if err != nil {
		// The watermark already moved, so the failure surfaces in logs
		// and the next due tick retries with fresh state.
		return "", fmt.Errorf("plan repeat wave: %w", err)
	}
	log.Printf("[campaign.Service] Campaign %s: repeat wave planned, %d jobs", fresh.ID, stats.Planned)
	return RepeatPlanned, nil
}

// runWave loads planner inputs, plans, persists the batch and mirrors it
// into the dispatch queue.
func (s *Service) runWave(ctx context.Context, c *domain.Campaign, now time.Time) (*WaveStats, error) {
	groups, err := s.groups.ListSelected(ctx, c.Owner, c.Channel)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	templates, err := s.templates.ListEnabled(ctx, c.Owner)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	targets, err := s.templates.ListTargets(ctx, c.Owner, c.Channel)
	if err != nil {
		return nil, fmt.Errorf("load targets: %w", err)
	}
	pending, err := s.jobs.FuturePendingKeys(ctx, c.ID, now)
	if err != nil {
		return nil, fmt.Errorf("load pending keys: %w", err)
	}

	res, err := planner.Plan(planner.Input{
		Campaign:    *c,
		Now:         now,
		Groups:      groups,
		Templates:   templates,
		Targets:     targets,
		PendingKeys: pending,
	})
	if err != nil {
		return nil, err
	}

	if err := s.jobs.InsertBatch(ctx, res.Jobs); err != nil {
		return nil, fmt.Errorf("insert jobs: %w", err)
	}
	for _, j := range res.Jobs {
		delay := j.ScheduledAt.Sub(now)
		if delay < 0 {
			delay = 0
		}
		if err := s.queue.Enqueue(ctx, j.ID, delay); err != nil {
			return nil, fmt.Errorf("enqueue job %s: %w", j.ID, err)
		}
	}
	return &WaveStats{Planned: len(res.Jobs), SkippedPending: res.SkippedPending}, nil
}
