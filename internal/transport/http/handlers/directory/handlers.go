package directoryhandler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hrdash/internal/domain/audit"
	"hrdash/internal/domain/auth"
	"hrdash/internal/domain/directory"
	"hrdash/internal/platform/jobs"
	"hrdash/internal/transport/http/api"
	"hrdash/internal/transport/http/middleware"
	"hrdash/internal/transport/http/shared"
)

const (
	defaultPage  = 1
	defaultLimit = 20
)

type Fetcher interface {
	FetchEmployees(ctx context.Context, page, limit int, companyID string) directory.Result
}

type Handler struct {
	Directory        Fetcher
	Perms            *auth.Table
	Audit            audit.Recorder
	Jobs             *jobs.Service
	DefaultCompanyID string
	MaxPageSize      int
	now              func() time.Time
}

func NewHandler(fetcher Fetcher, perms *auth.Table, recorder audit.Recorder, jobService *jobs.Service, defaultCompanyID string, maxPageSize int) *Handler {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &Handler{
		Directory:        fetcher,
		Perms:            perms,
		Audit:            recorder,
		Jobs:             jobService,
		DefaultCompanyID: defaultCompanyID,
		MaxPageSize:      maxPageSize,
		now:              time.Now,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.Use(middleware.RequireCapability(h.Perms, auth.ResourceEmployee, auth.ActionRead))
		r.Get("/", h.handleList)
		r.Get("/export.pdf", h.handleExport)
	})
}

type listQuery struct {
	Page      int    `json:"page" validate:"gte=1"`
	Limit     int    `json:"limit" validate:"gte=1"`
	CompanyID string `json:"companyId" validate:"required,max=128,printascii"`
}

type listResponse struct {
	Data  []directory.Employee `json:"data"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

func (h *Handler) parseQuery(r *http.Request) (listQuery, *shared.Validator) {
	v := shared.NewValidator()
	q := listQuery{
		Page:      shared.QueryInt(r, v, "page", defaultPage),
		Limit:     shared.QueryInt(r, v, "limit", defaultLimit),
		CompanyID: strings.TrimSpace(r.URL.Query().Get("companyId")),
	}
	if q.CompanyID == "" {
		if user, ok := middleware.GetUser(r.Context()); ok {
			q.CompanyID = user.CompanyID
		}
	}
	if q.CompanyID == "" {
		q.CompanyID = h.DefaultCompanyID
	}
	if v.HasIssues() {
		return q, v
	}
	v.Struct(q)
	if q.Limit > h.MaxPageSize {
		v.Add("limit", "must be at most "+strconv.Itoa(h.MaxPageSize))
	}
	return q, v
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	q, v := h.parseQuery(r)
	if v.Reject(w, reqID) {
		return
	}

	result := h.Directory.FetchEmployees(r.Context(), q.Page, q.Limit, q.CompanyID)
	h.recordAudit(r, audit.ActionDirectoryList, q, result)
	if !result.OK() {
		failUpstream(w, result, reqID)
		return
	}

	api.Success(w, listResponse{Data: result.Data, Total: result.Total, Page: q.Page, Limit: q.Limit}, reqID)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	q, v := h.parseQuery(r)
	if v.Reject(w, reqID) {
		return
	}

	result := h.Directory.FetchEmployees(r.Context(), q.Page, q.Limit, q.CompanyID)
	h.recordAudit(r, audit.ActionDirectoryExport, q, result)
	if !result.OK() {
		failUpstream(w, result, reqID)
		return
	}

	generatedBy := ""
	if user, ok := middleware.GetUser(r.Context()); ok {
		generatedBy = user.UserID
	}
	var buf bytes.Buffer
	err := directory.RenderPDF(&buf, result, directory.ExportMeta{
		CompanyID:   q.CompanyID,
		Page:        q.Page,
		Limit:       q.Limit,
		GeneratedAt: h.now(),
		GeneratedBy: generatedBy,
	})
	if err != nil {
		slog.Error("directory export failed", "companyId", q.CompanyID, "page", q.Page, "err", err, "requestId", reqID)
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to render export", reqID)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=employees-page-%d.pdf", q.Page))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("directory export write failed", "err", err, "requestId", reqID)
	}
}

func failUpstream(w http.ResponseWriter, result directory.Result, reqID string) {
	api.FailWithDetails(
		w,
		http.StatusBadGateway,
		result.Failure.Code(),
		result.ErrorMessage(),
		map[string]any{"data": []directory.Employee{}, "total": 0},
		reqID,
	)
}

func (h *Handler) recordAudit(r *http.Request, action string, q listQuery, result directory.Result) {
	if h.Audit == nil {
		return
	}
	evt := audit.Event{
		CompanyID:  q.CompanyID,
		Action:     action,
		EntityType: audit.EntityEmployee,
		Outcome:    result.Outcome(),
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         remoteIP(r),
	}
	if user, ok := middleware.GetUser(r.Context()); ok {
		evt.ActorID = user.UserID
	}
	details := map[string]any{"page": q.Page, "limit": q.Limit, "total": result.Total, "returned": len(result.Data)}

	run := func(ctx context.Context) error {
		return h.Audit.Record(ctx, evt, details)
	}
	if h.Jobs != nil {
		h.Jobs.Enqueue(jobs.JobAuditRecord, evt.CompanyID, run)
		return
	}
	if err := run(r.Context()); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
