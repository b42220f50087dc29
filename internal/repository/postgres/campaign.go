package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/broadsend/groupcast/internal/domain"
	"github.com/broadsend/groupcast/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
//
// At-most-one running campaign per (owner, channel) is enforced by a
// partial unique index; Create surfaces its violation as ErrAlreadyRunning
// so the service can fall back to re-querying the winner.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `
	id, owner, channel, status, time_from, time_to, timezone,
	between_groups_sec_min, between_groups_sec_max,
	between_templates_min_min, between_templates_min_max,
	repeat_enabled, repeat_min_minutes, repeat_max_minutes,
	next_repeat_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var next sql.NullTime
	err := row.Scan(
		&c.ID, &c.Owner, &c.Channel, &c.Status, &c.TimeFrom, &c.TimeTo, &c.Timezone,
		&c.BetweenGroupsSecMin, &c.BetweenGroupsSecMax,
		&c.BetweenTemplatesMinMin, &c.BetweenTemplatesMinMax,
		&c.RepeatEnabled, &c.RepeatMinMinutes, &c.RepeatMaxMinutes,
		&next, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if next.Valid {
		c.NextRepeatAt = &next.Time
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, owner, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx, `
		SELECT`+campaignColumns+`
		FROM campaigns
		WHERE id = $1 AND owner = $2
	`, id, owner))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) GetActive(ctx context.Context, owner string, ch domain.Channel) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx, `
		SELECT`+campaignColumns+`
		FROM campaigns
		WHERE owner = $1 AND channel = $2 AND status = 'running'
		LIMIT 1
	`, owner, ch))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, owner, channel, status, time_from, time_to, timezone,
			 between_groups_sec_min, between_groups_sec_max,
			 between_templates_min_min, between_templates_min_max,
			 repeat_enabled, repeat_min_minutes, repeat_max_minutes,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
	`, c.ID, c.Owner, c.Channel, c.Status, c.TimeFrom, c.TimeTo, c.Timezone,
		c.BetweenGroupsSecMin, c.BetweenGroupsSecMax,
		c.BetweenTemplatesMinMin, c.BetweenTemplatesMinMax,
		c.RepeatEnabled, c.RepeatMinMinutes, c.RepeatMaxMinutes)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return campaign.ErrAlreadyRunning
		}
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) SetStopped(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'stopped', repeat_enabled = FALSE, next_repeat_at = NULL, updated_at = NOW()
		WHERE id = $1 AND owner = $2
	`, id, owner)
	if err != nil {
		return fmt.Errorf("stop campaign: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("stop campaign: %w", err)
	}
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) ArmRepeat(ctx context.Context, id string, next time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET next_repeat_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'running'
	`, id, next)
	if err != nil {
		return fmt.Errorf("arm repeat: %w", err)
	}
	return nil
}

// ClaimRepeat is the watchdog's hard guard: the watermark advances only if
// the row still carries a due watermark on a running repeat campaign, so
// exactly one of any concurrent claimers wins.
func (r *CampaignRepo) ClaimRepeat(ctx context.Context, id string, now, next time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET next_repeat_at = $3, updated_at = NOW()
		WHERE id = $1
		  AND repeat_enabled = TRUE
		  AND status = 'running'
		  AND next_repeat_at IS NOT NULL
		  AND next_repeat_at <= $2
	`, id, now, next)
	if err != nil {
		return false, fmt.Errorf("claim repeat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim repeat: %w", err)
	}
	return n == 1, nil
}

func (r *CampaignRepo) ListDueRepeats(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+campaignColumns+`
		FROM campaigns
		WHERE repeat_enabled = TRUE
		  AND status = 'running'
		  AND next_repeat_at IS NOT NULL
		  AND next_repeat_at <= $1
		ORDER BY next_repeat_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due repeats: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
