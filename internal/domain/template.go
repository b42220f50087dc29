package domain

import "time"

// Template is a reusable message unit: text (Liquid placeholders allowed)
// plus an optional media URL. Identity is immutable; content and flags are
// mutable. Order controls sequencing within a wave.
type Template struct {
	ID       string `json:"id" db:"id"`
	Owner    string `json:"owner" db:"owner"`
	Title    string `json:"title" db:"title"`
	Text     string `json:"text" db:"text"`
	MediaURL string `json:"media_url" db:"media_url"`
	Enabled  bool   `json:"enabled" db:"enabled"`
	Order    int    `json:"order" db:"sort_order"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TemplateTarget restricts which groups a template sends to on a channel.
// Targeting is asymmetric by design: if a tenant has zero target rows for a
// channel the planner broadcasts every template to all selected groups, but
// once any row exists, a template without rows sends to nothing.
type TemplateTarget struct {
	TemplateID string  `json:"template_id" db:"template_id"`
	GroupID    string  `json:"group_id" db:"group_id"`
	Channel    Channel `json:"channel" db:"channel"`
}
