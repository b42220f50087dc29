package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/broadsend/groupcast/internal/pkg/httputil"
)

type ctxKey int

const ownerKey ctxKey = iota

// SetupRoutes configures the router.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Account-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(requireOwner)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/active", h.ActiveCampaign)
			r.Post("/start", h.StartCampaign)
			r.Get("/{id}/progress", h.CampaignProgress)
			r.Post("/{id}/stop", h.StopCampaign)
			r.Post("/{id}/requeue", h.RequeueCampaign)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Put("/{id}/targets", h.PutTemplateTargets)
			r.Post("/{id}/media", h.UploadTemplateMedia)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", h.ListGroups)
			r.Put("/{id}/selected", h.SetGroupSelected)
			r.Put("/{id}/send-time", h.SetGroupSendTime)
		})
	})

	return r
}

// requireOwner pins every /api request to a tenant. The edge proxy
// authenticates and injects X-Account-ID.
func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get("X-Account-ID")
		if owner == "" {
			httputil.Error(w, http.StatusUnauthorized, "missing X-Account-ID header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
	})
}

func ownerFrom(r *http.Request) string {
	owner, _ := r.Context().Value(ownerKey).(string)
	return owner
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}
