// Package channel defines the messaging gateway contract and the HTTP
// client shims for the WhatsApp and Telegram gateways. The gateways
// themselves run as separate services that hold the account sessions; this
// package only speaks their JSON APIs.
package channel

import (
	"context"
	"errors"

	"github.com/broadsend/groupcast/internal/domain"
)

// Status is a gateway account's connection state.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusConnecting   Status = "connecting"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Message is one outbound group post.
type Message struct {
	Text     string `json:"text"`
	MediaURL string `json:"media_url,omitempty"`
}

// GroupInfo is a group as reported by the gateway.
type GroupInfo struct {
	ChatID   string `json:"chat_id"`
	Name     string `json:"name"`
	Announce bool   `json:"announce"`
}

// ErrNotConnected is returned by SendToGroup when the account session is
// not in a connected state. The dispatcher treats it as a normal send
// failure so queue backoff applies.
var ErrNotConnected = errors.New("channel account not connected")

// Adapter is the gateway contract for one channel.
type Adapter interface {
	// ConnectionStatus reports the account's session state.
	ConnectionStatus(ctx context.Context, owner string) (Status, error)

	// SendToGroup posts a message into a group chat.
	SendToGroup(ctx context.Context, owner, chatID string, msg Message) error

	// ListGroups returns the groups the account participates in.
	ListGroups(ctx context.Context, owner string) ([]GroupInfo, error)
}

// Registry maps channels to their adapters.
type Registry map[domain.Channel]Adapter

// For returns the adapter for a channel.
func (r Registry) For(ch domain.Channel) (Adapter, bool) {
	a, ok := r[ch]
	return a, ok
}
