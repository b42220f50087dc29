package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/broadsend/groupcast/internal/domain"
)

// JobRepo is the job ledger. Status transitions are conditional updates so
// that concurrent dispatchers and a stopping campaign resolve by
// single-writer-wins instead of locks.
type JobRepo struct{ db *sql.DB }

// NewJobRepo creates a Postgres-backed job repository.
func NewJobRepo(db *sql.DB) *JobRepo { return &JobRepo{db: db} }

const jobColumns = `
	id, campaign_id, owner, channel, group_id, group_chat_id, group_name,
	template_id, status, scheduled_at, sent_at, COALESCE(last_error, ''),
	created_at, updated_at`

func scanJob(row interface{ Scan(...interface{}) error }) (*domain.Job, error) {
	j := &domain.Job{}
	var sentAt sql.NullTime
	err := row.Scan(
		&j.ID, &j.CampaignID, &j.Owner, &j.Channel, &j.GroupID, &j.GroupChatID,
		&j.GroupName, &j.TemplateID, &j.Status, &j.ScheduledAt, &sentAt,
		&j.LastError, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if sentAt.Valid {
		j.SentAt = &sentAt.Time
	}
	return j, nil
}

func (r *JobRepo) Get(ctx context.Context, id string) (*domain.Job, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, `
		SELECT`+jobColumns+`
		FROM campaign_jobs
		WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// InsertBatch persists one wave as a single statement, so no partial wave
// is ever observable from outside.
func (r *JobRepo) InsertBatch(ctx context.Context, jobs []domain.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO campaign_jobs
			(id, campaign_id, owner, channel, group_id, group_chat_id,
			 group_name, template_id, status, scheduled_at, created_at, updated_at)
		VALUES `)
	args := make([]interface{}, 0, len(jobs)*10)
	for i, j := range jobs {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 10
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, NOW(), NOW())",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10)
		args = append(args, j.ID, j.CampaignID, j.Owner, j.Channel, j.GroupID,
			j.GroupChatID, j.GroupName, j.TemplateID, j.Status, j.ScheduledAt)
	}

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert job batch: %w", err)
	}
	return nil
}

func (r *JobRepo) FuturePendingKeys(ctx context.Context, campaignID string, now time.Time) (map[domain.PairKey]bool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT group_id, template_id
		FROM campaign_jobs
		WHERE campaign_id = $1 AND status = 'pending' AND scheduled_at >= $2
	`, campaignID, now)
	if err != nil {
		return nil, fmt.Errorf("future pending keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[domain.PairKey]bool)
	for rows.Next() {
		var k domain.PairKey
		if err := rows.Scan(&k.GroupID, &k.TemplateID); err != nil {
			return nil, fmt.Errorf("scan pending key: %w", err)
		}
		keys[k] = true
	}
	return keys, rows.Err()
}

func (r *JobRepo) HasDueActive(ctx context.Context, campaignID string, now time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM campaign_jobs
			WHERE campaign_id = $1
			  AND status IN ('pending', 'processing')
			  AND scheduled_at <= $2
		)
	`, campaignID, now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check due active jobs: %w", err)
	}
	return exists, nil
}

func (r *JobRepo) SkipActive(ctx context.Context, campaignID, reason string, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_jobs
		SET status = 'skipped', last_error = $2, sent_at = $3, updated_at = NOW()
		WHERE campaign_id = $1 AND status IN ('pending', 'processing')
	`, campaignID, reason, at)
	if err != nil {
		return 0, fmt.Errorf("skip active jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("skip active jobs: %w", err)
	}
	return int(n), nil
}

func (r *JobRepo) Progress(ctx context.Context, campaignID string) (*domain.Progress, error) {
	p := &domain.Progress{}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'processing'),
		       COUNT(*) FILTER (WHERE status = 'sent'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COUNT(*) FILTER (WHERE status = 'skipped')
		FROM campaign_jobs
		WHERE campaign_id = $1
	`, campaignID).Scan(&p.Total, &p.Pending, &p.Processing, &p.Sent, &p.Failed, &p.Skipped)
	if err != nil {
		return nil, fmt.Errorf("progress: %w", err)
	}
	p.Done = p.Pending == 0 && p.Processing == 0
	return p, nil
}

func (r *JobRepo) List(ctx context.Context, campaignID string) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+jobColumns+`
		FROM campaign_jobs
		WHERE campaign_id = $1
		ORDER BY scheduled_at ASC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (r *JobRepo) SelectForRequeue(ctx context.Context, campaignID string, includeSent bool) ([]domain.Job, error) {
	q := `
		SELECT` + jobColumns + `
		FROM campaign_jobs
		WHERE campaign_id = $1`
	if !includeSent {
		q += ` AND status = 'pending'`
	}
	q += ` ORDER BY scheduled_at ASC`

	rows, err := r.db.QueryContext(ctx, q, campaignID)
	if err != nil {
		return nil, fmt.Errorf("select for requeue: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (r *JobRepo) ResetSchedule(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_jobs
		SET status = 'pending', scheduled_at = $2, sent_at = NULL, last_error = '', updated_at = NOW()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("reset job schedule: %w", err)
	}
	return nil
}

// MarkProcessing is the dispatcher's claim. Only pending rows match:
// first firings and queue retries both arrive pending (MarkRetryPending
// re-parks a retryable failure), so a stop's bulk skip covers every job
// a late queue firing could touch.
func (r *JobRepo) MarkProcessing(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_jobs
		SET status = 'processing', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}
	return n == 1, nil
}

func (r *JobRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_jobs
		SET status = 'sent', sent_at = $2, last_error = '', updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// MarkRetryPending returns a delivery failure with a scheduled queue
// retry to pending, keeping the error for the operator. Failed is
// reserved for exhausted jobs.
func (r *JobRepo) MarkRetryPending(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_jobs
		SET status = 'pending', last_error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, id, reason)
	if err != nil {
		return fmt.Errorf("mark retry pending: %w", err)
	}
	return nil
}

func (r *JobRepo) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_jobs
		SET status = 'failed', last_error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, id, reason)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ResetStaleProcessing returns to pending any job stuck in processing
// since before the cutoff, returning the affected ids so the caller can
// re-enqueue them.
func (r *JobRepo) ResetStaleProcessing(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE campaign_jobs
		SET status = 'pending', updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1
		RETURNING id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("reset stale processing: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListOverduePendingIDs returns ids of pending jobs whose scheduled_at
// fell before the cutoff, for the recovery worker to push back into the
// queue. The updated_at condition leaves jobs recently re-parked for a
// backoff retry to the queue; the sweep only takes rows nothing has
// touched since the cutoff.
func (r *JobRepo) ListOverduePendingIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id
		FROM campaign_jobs
		WHERE status = 'pending' AND scheduled_at < $1 AND updated_at < $1
		ORDER BY scheduled_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue pending: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func collectJobs(rows *sql.Rows) ([]domain.Job, error) {
	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}
