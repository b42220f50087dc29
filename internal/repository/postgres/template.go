package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/broadsend/groupcast/internal/domain"
)

// TemplateRepo stores message templates and their targeting overrides.
type TemplateRepo struct{ db *sql.DB }

// NewTemplateRepo creates a Postgres-backed template repository.
func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

func (r *TemplateRepo) Get(ctx context.Context, owner, id string) (*domain.Template, error) {
	t := &domain.Template{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner, title, text, COALESCE(media_url, ''), enabled, sort_order
		FROM templates
		WHERE id = $1 AND owner = $2
	`, id, owner).Scan(&t.ID, &t.Owner, &t.Title, &t.Text, &t.MediaURL, &t.Enabled, &t.Order)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *TemplateRepo) ListEnabled(ctx context.Context, owner string) ([]domain.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner, title, text, COALESCE(media_url, ''), enabled, sort_order
		FROM templates
		WHERE owner = $1 AND enabled = TRUE
		ORDER BY sort_order ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list enabled templates: %w", err)
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		var t domain.Template
		if err := rows.Scan(&t.ID, &t.Owner, &t.Title, &t.Text, &t.MediaURL, &t.Enabled, &t.Order); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TemplateRepo) ListTargets(ctx context.Context, owner string, ch domain.Channel) ([]domain.TemplateTarget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tt.template_id, tt.group_id, tt.channel
		FROM template_targets tt
		JOIN templates t ON t.id = tt.template_id
		WHERE t.owner = $1 AND tt.channel = $2
	`, owner, ch)
	if err != nil {
		return nil, fmt.Errorf("list template targets: %w", err)
	}
	defer rows.Close()

	var out []domain.TemplateTarget
	for rows.Next() {
		var t domain.TemplateTarget
		if err := rows.Scan(&t.TemplateID, &t.GroupID, &t.Channel); err != nil {
			return nil, fmt.Errorf("scan template target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReplaceTargets swaps a template's override rows for the channel in one
// transaction. An empty group list clears the override, returning the
// template to broadcast behavior.
func (r *TemplateRepo) ReplaceTargets(ctx context.Context, owner, templateID string, ch domain.Channel, groupIDs []string) (int, error) {
	if _, err := r.Get(ctx, owner, templateID); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin targets tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM template_targets WHERE template_id = $1 AND channel = $2
	`, templateID, ch); err != nil {
		return 0, fmt.Errorf("clear template targets: %w", err)
	}

	if len(groupIDs) > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO template_targets (template_id, group_id, channel)
			SELECT $1, unnest($3::text[]), $2
		`, templateID, ch, pq.Array(groupIDs)); err != nil {
			return 0, fmt.Errorf("insert template targets: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit targets tx: %w", err)
	}
	return len(groupIDs), nil
}

// SetMediaURL records the stored media attachment for a template.
func (r *TemplateRepo) SetMediaURL(ctx context.Context, owner, id, url string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE templates SET media_url = $3 WHERE id = $1 AND owner = $2
	`, id, owner, url)
	if err != nil {
		return fmt.Errorf("set template media url: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set template media url: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
