package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/broadsend/groupcast/internal/domain"
	"github.com/broadsend/groupcast/internal/pkg/httputil"
	"github.com/broadsend/groupcast/internal/planner"
	"github.com/broadsend/groupcast/internal/service/campaign"
)

// ActiveCampaign returns the running campaign id for a channel, or null.
func (h *Handlers) ActiveCampaign(w http.ResponseWriter, r *http.Request) {
	ch := domain.Channel(r.URL.Query().Get("channel"))
	c, err := h.campaigns.Active(r.Context(), ownerFrom(r), ch)
	if errors.Is(err, campaign.ErrNotFound) {
		httputil.OK(w, map[string]interface{}{"campaign_id": nil})
		return
	}
	if errors.Is(err, campaign.ErrInvalidInput) {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"campaign_id": c.ID})
}

// StartCampaign launches a campaign and plans its first wave.
func (h *Handlers) StartCampaign(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)

	var in campaign.StartInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}

	if h.gate != nil {
		if err := h.gate.Allow(r.Context(), owner, in.Channel); err != nil {
			httputil.Error(w, http.StatusPaymentRequired, err.Error())
			return
		}
	}

	res, err := h.campaigns.Start(r.Context(), owner, in)
	if err != nil {
		switch {
		case errors.Is(err, campaign.ErrInvalidInput):
			httputil.BadRequest(w, err.Error())
		case errors.Is(err, planner.ErrNoGroups),
			errors.Is(err, planner.ErrNoTemplates),
			errors.Is(err, planner.ErrNoJobs),
			errors.Is(err, planner.ErrNoTargets):
			httputil.Error(w, http.StatusUnprocessableEntity, err.Error())
		default:
			httputil.InternalError(w, err)
		}
		return
	}

	httputil.OK(w, map[string]interface{}{
		"campaign_id":     res.Campaign.ID,
		"already_running": res.AlreadyRunning,
		"stats":           res.Stats,
	})
}

// CampaignProgress returns per-status counts and the job list.
func (h *Handlers) CampaignProgress(w http.ResponseWriter, r *http.Request) {
	p, jobs, err := h.campaigns.Progress(r.Context(), ownerFrom(r), chi.URLParam(r, "id"))
	if errors.Is(err, campaign.ErrNotFound) {
		httputil.NotFound(w, "campaign not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"progress": p,
		"jobs":     jobs,
	})
}

// StopCampaign terminates a campaign and skips its remaining jobs.
func (h *Handlers) StopCampaign(w http.ResponseWriter, r *http.Request) {
	skipped, err := h.campaigns.Stop(r.Context(), ownerFrom(r), chi.URLParam(r, "id"))
	if errors.Is(err, campaign.ErrNotFound) {
		httputil.NotFound(w, "campaign not found")
		return
	}
	if errors.Is(err, campaign.ErrNotRunning) {
		httputil.Error(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"stopped": true, "skipped": skipped})
}

// RequeueCampaign resets jobs back to pending and re-enqueues them.
func (h *Handlers) RequeueCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IncludeSent bool `json:"include_sent"`
		ForceNow    bool `json:"force_now"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httputil.BadRequest(w, "invalid JSON body")
			return
		}
	}

	n, err := h.campaigns.Requeue(r.Context(), ownerFrom(r), chi.URLParam(r, "id"), body.IncludeSent, body.ForceNow)
	if errors.Is(err, campaign.ErrNotFound) {
		httputil.NotFound(w, "campaign not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"requeued": n})
}
