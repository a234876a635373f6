package authhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hrdash/internal/domain/auth"
	"hrdash/internal/transport/http/api"
	"hrdash/internal/transport/http/middleware"
	"hrdash/internal/transport/http/shared"
)

type Handler struct {
	Operator auth.Operator
	Secret   string
	TTL      time.Duration
	Perms    *auth.Table
}

func NewHandler(operator auth.Operator, secret string, ttl time.Duration, perms *auth.Table) *Handler {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Handler{Operator: operator, Secret: secret, TTL: ttl, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
	r.With(middleware.RequireUser).Get("/me", h.HandleMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      userView  `json:"user"`
}

type userView struct {
	ID        string `json:"id"`
	CompanyID string `json:"companyId"`
	Role      string `json:"role"`
}

type meResponse struct {
	User        userView          `json:"user"`
	Permissions []auth.Permission `json:"permissions"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	payload.Email = strings.TrimSpace(payload.Email)

	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, reqID) {
		return
	}

	user, err := h.Operator.Authenticate(payload.Email, payload.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			slog.Warn("operator authentication failed", "err", err, "requestId", reqID)
		}
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}

	token, expiresAt, err := auth.GenerateToken(h.Secret, auth.Claims{
		UserID:    user.UserID,
		CompanyID: user.CompanyID,
		RoleName:  user.RoleName,
	}, h.TTL)
	if err != nil {
		slog.Error("token issue failed", "err", err, "requestId", reqID)
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", reqID)
		return
	}

	slog.Info("operator login", "userId", user.UserID, "companyId", user.CompanyID, "requestId", reqID)
	api.Success(w, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      userView{ID: user.UserID, CompanyID: user.CompanyID, Role: user.RoleName},
	}, reqID)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, meResponse{
		User:        userView{ID: user.UserID, CompanyID: user.CompanyID, Role: user.RoleName},
		Permissions: h.Perms.Entries(),
	}, middleware.GetRequestID(r.Context()))
}
