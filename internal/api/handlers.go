// Package api exposes the scheduler's HTTP surface: campaign lifecycle,
// template targeting, media upload, and group management. Authentication
// lives in front of this service; tenancy comes from the X-Account-ID
// header set by the edge.
package api

import (
	"context"
	"io"

	"github.com/broadsend/groupcast/internal/domain"
	"github.com/broadsend/groupcast/internal/service/campaign"
)

// CampaignService is the campaign surface the handlers call.
type CampaignService interface {
	Start(ctx context.Context, owner string, in campaign.StartInput) (*campaign.StartResult, error)
	Stop(ctx context.Context, owner, id string) (int, error)
	Active(ctx context.Context, owner string, ch domain.Channel) (*domain.Campaign, error)
	Progress(ctx context.Context, owner, id string) (*domain.Progress, []domain.Job, error)
	Requeue(ctx context.Context, owner, id string, includeSent, forceNow bool) (int, error)
}

// TemplateStore is the template surface the handlers call.
type TemplateStore interface {
	ReplaceTargets(ctx context.Context, owner, templateID string, ch domain.Channel, groupIDs []string) (int, error)
	SetMediaURL(ctx context.Context, owner, id, url string) error
}

// GroupStore is the group surface the handlers call.
type GroupStore interface {
	List(ctx context.Context, owner string, ch domain.Channel) ([]domain.Group, error)
	SetSelected(ctx context.Context, owner, id string, selected bool) error
	SetSendTime(ctx context.Context, owner, id, sendTime string) error
}

// MediaStore uploads template attachments.
type MediaStore interface {
	Upload(ctx context.Context, owner, filename, contentType string, body io.Reader) (string, error)
}

// SubscriptionGate decides whether an account may start campaigns. Billing
// is enforced upstream; the scheduler only honors the verdict.
type SubscriptionGate interface {
	Allow(ctx context.Context, owner string, ch domain.Channel) error
}

// Handlers bundles the dependencies for all route handlers.
type Handlers struct {
	campaigns CampaignService
	templates TemplateStore
	groups    GroupStore
	media     MediaStore
	gate      SubscriptionGate
}

// NewHandlers creates the handler set. media and gate may be nil, which
// disables media upload and subscription checks respectively.
func NewHandlers(campaigns CampaignService, templates TemplateStore, groups GroupStore, media MediaStore, gate SubscriptionGate) *Handlers {
	return &Handlers{campaigns: campaigns, templates: templates, groups: groups, media: media, gate: gate}
}
