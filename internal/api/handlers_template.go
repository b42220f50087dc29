package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/broadsend/groupcast/internal/domain"
	"github.com/broadsend/groupcast/internal/pkg/httputil"
)

const maxMediaUpload = 16 << 20 // 16 MiB

// PutTemplateTargets replaces a template's targeting override for one
// channel. An empty group list clears the override and returns the
// template to broadcast behavior.
func (h *Handlers) PutTemplateTargets(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Channel  domain.Channel `json:"channel"`
		GroupIDs []string       `json:"group_ids"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if !body.Channel.Valid() {
		httputil.BadRequest(w, "unknown channel")
		return
	}

	n, err := h.templates.ReplaceTargets(r.Context(), ownerFrom(r), chi.URLParam(r, "id"), body.Channel, body.GroupIDs)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.NotFound(w, "template not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"count": n})
}

// UploadTemplateMedia stores an attachment and records its URL on the
// template.
func (h *Handlers) UploadTemplateMedia(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		httputil.Error(w, http.StatusNotImplemented, "media storage not configured")
		return
	}

	if err := r.ParseMultipartForm(maxMediaUpload); err != nil {
		httputil.BadRequest(w, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "missing file field")
		return
	}
	defer file.Close()

	owner := ownerFrom(r)
	url, err := h.media.Upload(r.Context(), owner, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	if err := h.templates.SetMediaURL(r.Context(), owner, chi.URLParam(r, "id"), url); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.NotFound(w, "template not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"url": url})
}

// ListGroups returns the owner's groups on a channel.
func (h *Handlers) ListGroups(w http.ResponseWriter, r *http.Request) {
	ch := domain.Channel(r.URL.Query().Get("channel"))
	if !ch.Valid() {
		httputil.BadRequest(w, "unknown channel")
		return
	}
	groups, err := h.groups.List(r.Context(), ownerFrom(r), ch)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"groups": groups})
}

// SetGroupSelected flips whether a group receives campaign sends.
func (h *Handlers) SetGroupSelected(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Selected bool `json:"selected"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	err := h.groups.SetSelected(r.Context(), ownerFrom(r), chi.URLParam(r, "id"), body.Selected)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.NotFound(w, "group not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"selected": body.Selected})
}

// SetGroupSendTime stores a group's cadence descriptor, e.g. "09:30" or
// "2-5 minutes". An empty value returns the group to the shared cursor.
func (h *Handlers) SetGroupSendTime(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SendTime string `json:"send_time"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	err := h.groups.SetSendTime(r.Context(), ownerFrom(r), chi.URLParam(r, "id"), body.SendTime)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"send_time": body.SendTime})
}
