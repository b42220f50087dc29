package domain

import "time"

// Group is a channel-specific destination, synced periodically from the
// channel gateway. ChatID is the transport identifier (WhatsApp JID or
// Telegram chat id); ID is our stable internal key.
//
// SendTime is the group's cadence descriptor: a fixed daily clock time
// ("09:30"), a named interval bucket ("2-5 minutes", "6 hours"), or empty
// for no cadence (the wave planner's shared cursor applies). Parsing lives
// in the schedule package.
type Group struct {
	ID      string  `json:"id" db:"id"`
	Owner   string  `json:"owner" db:"owner"`
	Channel Channel `json:"channel" db:"channel"`
	ChatID  string  `json:"chat_id" db:"chat_id"`
	Name    string  `json:"name" db:"name"`

	// Selected marks the group eligible for sending.
	Selected bool `json:"selected" db:"selected"`

	// Announce marks WhatsApp announcement-only groups, which cannot
	// receive posts from regular members and are excluded from waves.
	Announce bool `json:"announce" db:"announce"`

	SendTime string `json:"send_time" db:"send_time"`

	SyncedAt  *time.Time `json:"synced_at" db:"synced_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// Usable reports whether the group can receive a wave job on its channel.
func (g *Group) Usable() bool {
	if !g.Selected {
		return false
	}
	if g.Channel == ChannelWhatsApp && g.Announce {
		return false
	}
	return true
}
