package domain

import "time"

// JobStatus enumerates the lifecycle of a single scheduled delivery.
// Transitions run pending → processing → {sent|failed|skipped}; a delivery
// failure with a queue retry outstanding returns the job to pending, so
// failed means retries are exhausted. Sent, failed, and skipped are
// terminal short of an explicit operator requeue.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobSent       JobStatus = "sent"
	JobFailed     JobStatus = "failed"
	JobSkipped    JobStatus = "skipped"
)

// SkipReasonCampaignStopped is recorded on jobs cancelled by a campaign stop.
const SkipReasonCampaignStopped = "campaign_stopped"

// Job is one scheduled delivery of one template to one group within one
// campaign. Group and template are referenced by id only (weak references);
// the group chat id and name are snapshotted so delivery survives a later
// group deletion.
type Job struct {
	ID         string  `json:"id" db:"id"`
	CampaignID string  `json:"campaign_id" db:"campaign_id"`
	Owner      string  `json:"owner" db:"owner"`
	Channel    Channel `json:"channel" db:"channel"`

	GroupID     string `json:"group_id" db:"group_id"`
	GroupChatID string `json:"group_chat_id" db:"group_chat_id"`
	GroupName   string `json:"group_name" db:"group_name"`
	TemplateID  string `json:"template_id" db:"template_id"`

	Status      JobStatus  `json:"status" db:"status"`
	ScheduledAt time.Time  `json:"scheduled_at" db:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at" db:"sent_at"`
	LastError   string     `json:"last_error" db:"last_error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the job reached a final state.
func (j *Job) IsTerminal() bool {
	return j.Status == JobSent || j.Status == JobFailed || j.Status == JobSkipped
}

// PairKey identifies a (group, template) pair within a campaign. The wave
// planner uses it to avoid scheduling a duplicate future job for a pair
// that already has one pending.
type PairKey struct {
	GroupID    string
	TemplateID string
}

// Key returns the job's (group, template) identity.
func (j *Job) Key() PairKey {
	return PairKey{GroupID: j.GroupID, TemplateID: j.TemplateID}
}

// Progress is a live per-status snapshot of a campaign's jobs, computed
// from the job ledger (never cached).
type Progress struct {
	Total      int  `json:"total"`
	Pending    int  `json:"pending"`
	Processing int  `json:"processing"`
	Sent       int  `json:"sent"`
	Failed     int  `json:"failed"`
	Skipped    int  `json:"skipped"`
	Done       bool `json:"done"`
}
