package domain

import (
	"time"
)

// Channel identifies a messaging transport.
type Channel string

const (
	ChannelWhatsApp Channel = "wa"
	ChannelTelegram Channel = "tg"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelWhatsApp || c == ChannelTelegram
}

// CampaignStatus enumerates the lifecycle states of a campaign.
// There is no paused state: stopping a campaign is terminal for that row,
// and a fresh start creates a new campaign.
type CampaignStatus string

const (
	CampaignRunning CampaignStatus = "running"
	CampaignStopped CampaignStatus = "stopped"
)

// Campaign is one tenant's recurring send program on a single channel.
// At most one running campaign may exist per (owner, channel); the
// database enforces this with a partial unique index.
type Campaign struct {
	ID      string         `json:"id" db:"id"`
	Owner   string         `json:"owner" db:"owner"`
	Channel Channel        `json:"channel" db:"channel"`
	Status  CampaignStatus `json:"status" db:"status"`

	// Daily sending window, "HH:MM" in the tenant's timezone. The window
	// may cross midnight (e.g. 21:00-06:00).
	TimeFrom string `json:"time_from" db:"time_from"`
	TimeTo   string `json:"time_to" db:"time_to"`
	Timezone string `json:"timezone" db:"timezone"`

	// Spacing between consecutive groups (seconds) for groups without
	// their own cadence, and between consecutive templates (minutes).
	BetweenGroupsSecMin    int `json:"between_groups_sec_min" db:"between_groups_sec_min"`
	BetweenGroupsSecMax    int `json:"between_groups_sec_max" db:"between_groups_sec_max"`
	BetweenTemplatesMinMin int `json:"between_templates_min_min" db:"between_templates_min_min"`
	BetweenTemplatesMinMax int `json:"between_templates_min_max" db:"between_templates_min_max"`

	// Repeat policy. NextRepeatAt is the watermark claimed by the repeat
	// watchdog; nil means no repeat is armed.
	RepeatEnabled    bool       `json:"repeat_enabled" db:"repeat_enabled"`
	RepeatMinMinutes int        `json:"repeat_min_minutes" db:"repeat_min_minutes"`
	RepeatMaxMinutes int        `json:"repeat_max_minutes" db:"repeat_max_minutes"`
	NextRepeatAt     *time.Time `json:"next_repeat_at" db:"next_repeat_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsRunning reports whether the campaign can still produce waves.
func (c *Campaign) IsRunning() bool {
	return c.Status == CampaignRunning
}

// Location resolves the tenant timezone, falling back to UTC when the
// label is empty or unknown.
func (c *Campaign) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
