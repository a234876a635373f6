package permissionshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrdash/internal/domain/auth"
	"hrdash/internal/transport/http/api"
	"hrdash/internal/transport/http/middleware"
	"hrdash/internal/transport/http/shared"
)

type Handler struct {
	Perms *auth.Table
}

func NewHandler(perms *auth.Table) *Handler {
	return &Handler{Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/permissions", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Get("/", h.handleList)
		r.Get("/{type}", h.handleGet)
	})
}

type entryResponse struct {
	auth.Permission
	Known   bool  `json:"known"`
	Allowed *bool `json:"allowed,omitempty"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Perms.Entries(), middleware.GetRequestID(r.Context()))
}

// handleGet answers for any type. Unknown types come back with every flag
// false; ?action=<name> adds the decision for that action.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	entry, known := h.Perms.Lookup(chi.URLParam(r, "type"))
	resp := entryResponse{Permission: entry, Known: known}

	if raw := r.URL.Query().Get("action"); raw != "" {
		action, err := auth.ParseAction(raw)
		if err != nil {
			shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "action", Reason: "must be one of: read create update delete"}})
			return
		}
		allowed := entry.Allows(action)
		resp.Allowed = &allowed
	}

	api.Success(w, resp, reqID)
}
