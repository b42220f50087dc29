package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/broadsend/groupcast/internal/domain"
)

// GroupRepo stores channel groups synced from the messaging gateways.
type GroupRepo struct{ db *sql.DB }

// NewGroupRepo creates a Postgres-backed group repository.
func NewGroupRepo(db *sql.DB) *GroupRepo { return &GroupRepo{db: db} }

const groupColumns = `
	id, owner, channel, chat_id, name, selected, announce,
	COALESCE(send_time, ''), synced_at`

func scanGroup(row interface{ Scan(...interface{}) error }) (*domain.Group, error) {
	g := &domain.Group{}
	err := row.Scan(&g.ID, &g.Owner, &g.Channel, &g.ChatID, &g.Name,
		&g.Selected, &g.Announce, &g.SendTime, &g.SyncedAt)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *GroupRepo) ListSelected(ctx context.Context, owner string, ch domain.Channel) ([]domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+groupColumns+`
		FROM groups
		WHERE owner = $1 AND channel = $2 AND selected = TRUE
		ORDER BY name ASC
	`, owner, ch)
	if err != nil {
		return nil, fmt.Errorf("list selected groups: %w", err)
	}
	defer rows.Close()
	return collectGroups(rows)
}

func (r *GroupRepo) List(ctx context.Context, owner string, ch domain.Channel) ([]domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+groupColumns+`
		FROM groups
		WHERE owner = $1 AND channel = $2
		ORDER BY name ASC
	`, owner, ch)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()
	return collectGroups(rows)
}

// Upsert syncs a group from the gateway. Operator-managed fields
// (selected, send_time) survive the sync; gateway-owned fields (name,
// announce flag) are refreshed.
func (r *GroupRepo) Upsert(ctx context.Context, g *domain.Group) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO groups
			(id, owner, channel, chat_id, name, selected, announce, send_time, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner, channel, chat_id) DO UPDATE
		SET name = EXCLUDED.name,
		    announce = EXCLUDED.announce,
		    synced_at = EXCLUDED.synced_at
	`, g.ID, g.Owner, g.Channel, g.ChatID, g.Name, g.Selected, g.Announce, g.SendTime, g.SyncedAt)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return nil
}

// SetSelected flips the operator's send-here flag.
func (r *GroupRepo) SetSelected(ctx context.Context, owner, id string, selected bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE groups SET selected = $3 WHERE id = $1 AND owner = $2
	`, id, owner, selected)
	if err != nil {
		return fmt.Errorf("set group selected: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set group selected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetSendTime stores the group's cadence descriptor text.
func (r *GroupRepo) SetSendTime(ctx context.Context, owner, id, sendTime string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE groups SET send_time = $3 WHERE id = $1 AND owner = $2
	`, id, owner, sendTime)
	if err != nil {
		return fmt.Errorf("set group send time: %w", err)
	}
	return nil
}

// MarkStale deletes groups on the channel not synced since the cutoff;
// the gateway no longer reports them.
func (r *GroupRepo) MarkStale(ctx context.Context, owner string, ch domain.Channel, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM groups
		WHERE owner = $1 AND channel = $2 AND synced_at < $3
	`, owner, ch, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune stale groups: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune stale groups: %w", err)
	}
	return int(n), nil
}

// ListAccounts returns the distinct owners with any presence on the
// channel, from synced groups or past campaigns.
func (r *GroupRepo) ListAccounts(ctx context.Context, ch domain.Channel) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT owner FROM groups WHERE channel = $1
		UNION
		SELECT DISTINCT owner FROM campaigns WHERE channel = $1
		ORDER BY owner
	`, ch)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

func collectGroups(rows *sql.Rows) ([]domain.Group, error) {
	var out []domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}
