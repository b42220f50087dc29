// Package planner computes campaign waves: given a tenant's usable groups,
// enabled templates, targeting overrides, and the set of (group, template)
// pairs that already have a future pending job, it produces the exact batch
// of new jobs to insert, each with a resolved scheduled_at.
//
// Planning is pure. The caller loads state, persists the returned jobs in
// one batch, and mirrors them into the dispatch queue.
package planner

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/broadsend/groupcast/internal/domain"
	"github.com/broadsend/groupcast/internal/schedule"
)

// Typed failure reasons. None of these are retryable from the planner's
// perspective; the campaign service decides whether to roll back.
var (
	ErrNoGroups    = errors.New("no_groups")
	ErrNoTemplates = errors.New("no_templates")
	ErrNoJobs      = errors.New("no_jobs")
	ErrNoTargets   = errors.New("no_targets_for_templates")
)

// Input carries everything a single planning pass needs. Groups should be
// the tenant's selected groups for the campaign's channel; Templates the
// enabled ones ordered by their sort order; Targets the override rows for
// that channel; PendingKeys the (group, template) pairs that already have a
// pending job with scheduled_at in the future.
type Input struct {
	Campaign    domain.Campaign
	Now         time.Time
	Groups      []domain.Group
	Templates   []domain.Template
	Targets     []domain.TemplateTarget
	PendingKeys map[domain.PairKey]bool
}

// Result is one planned wave.
type Result struct {
	Jobs []domain.Job
	// SkippedPending counts pairs left alone because a future pending job
	// already covers them.
	SkippedPending int
}

// Plan computes the jobs for one wave.
//
// Targeting is deliberately asymmetric: with zero override rows on the
// channel every template broadcasts to all usable groups, but once any row
// exists a template without rows sends to nothing this wave.
func Plan(in Input) (*Result, error) {
	c := in.Campaign

	usable := make([]domain.Group, 0, len(in.Groups))
	for _, g := range in.Groups {
		if g.Channel == c.Channel && g.Usable() {
			usable = append(usable, g)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoGroups
	}
	if len(in.Templates) == 0 {
		return nil, ErrNoTemplates
	}

	targetSets := make(map[string]map[string]bool)
	for _, t := range in.Targets {
		if t.Channel != c.Channel {
			continue
		}
		set := targetSets[t.TemplateID]
		if set == nil {
			set = make(map[string]bool)
			targetSets[t.TemplateID] = set
		}
		set[t.GroupID] = true
	}
	hasAnyTargets := len(targetSets) > 0

	base := in.Now.In(c.Location())
	cursor := schedule.ClampToWindow(base, c.TimeFrom, c.TimeTo)
	resolver := schedule.NewResolver(c.TimeFrom, c.TimeTo,
		c.BetweenTemplatesMinMin, c.BetweenTemplatesMinMax)

	res := &Result{}
	for _, tmpl := range in.Templates {
		var targets []domain.Group
		switch {
		case targetSets[tmpl.ID] != nil:
			set := targetSets[tmpl.ID]
			for _, g := range usable {
				if set[g.ID] {
					targets = append(targets, g)
				}
			}
		case !hasAnyTargets:
			targets = usable
		default:
			// Overrides exist for other templates but not this one:
			// it sends to nobody this wave.
		}

		for _, g := range targets {
			key := domain.PairKey{GroupID: g.ID, TemplateID: tmpl.ID}
			if in.PendingKeys[key] {
				res.SkippedPending++
				continue
			}

			slot, own := resolver.Next(g.ID, schedule.ParseSendTime(g.SendTime), base)
			if !own {
				slot = schedule.ClampToWindow(cursor, c.TimeFrom, c.TimeTo)
				gap := schedule.RandBetween(c.BetweenGroupsSecMin, c.BetweenGroupsSecMax)
				cursor = slot.Add(time.Duration(gap) * time.Second)
			}

			res.Jobs = append(res.Jobs, domain.Job{
				ID:          uuid.New().String(),
				CampaignID:  c.ID,
				Owner:       c.Owner,
				Channel:     c.Channel,
				GroupID:     g.ID,
				GroupChatID: g.ChatID,
				GroupName:   g.Name,
				TemplateID:  tmpl.ID,
				Status:      domain.JobPending,
				ScheduledAt: slot,
			})
		}

		// Inter-template delay moves only the shared cursor; per-group
		// watermarks already carry their own spacing.
		gap := schedule.RandBetween(c.BetweenTemplatesMinMin, c.BetweenTemplatesMinMax)
		cursor = cursor.Add(time.Duration(gap) * time.Minute)
	}

	if len(res.Jobs) == 0 {
		if res.SkippedPending == 0 && hasAnyTargets {
			return nil, ErrNoTargets
		}
		return nil, ErrNoJobs
	}
	return res, nil
}
