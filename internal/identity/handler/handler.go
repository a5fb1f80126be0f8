package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bamarler/flaZK/internal/identity"
	"github.com/bamarler/flaZK/internal/platform/middleware"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
	"github.com/bamarler/flaZK/pkg/platform/httputil"
)

// Service defines the identity operations exposed over HTTP.
type Service interface {
	SendCode(ctx context.Context, phone string) error
	VerifyCode(ctx context.Context, phone, code string) (*identity.Credential, error)
}

// Handler handles phone verification endpoints.
type Handler struct {
	logger   *slog.Logger
	identity Service
}

// New creates a new identity Handler.
func New(identity Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, identity: identity}
}

// RegisterPublic registers the unauthenticated challenge routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/send-code", h.handleSendCode)
	r.Post("/auth/verify-code", h.handleVerifyCode)
}

// RegisterAuthed registers the bearer-authenticated routes.
func (h *Handler) RegisterAuthed(r chi.Router) {
	r.Get("/auth/me", h.handleMe)
}

type SendCodeRequest struct {
	Phone string `json:"phone"`
}

func (r *SendCodeRequest) Normalize() {
	r.Phone = strings.TrimSpace(r.Phone)
}

func (r *SendCodeRequest) Validate() error {
	if r.Phone == "" {
		return dErrors.New(dErrors.CodeValidation, "phone is required")
	}
	return nil
}

type SendCodeResponse struct {
	Status string `json:"status"`
}

func (h *Handler) handleSendCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[SendCodeRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	if err := h.identity.SendCode(ctx, req.Phone); err != nil {
		httputil.WriteError(w, err)
		return
	}

	// delivery is asynchronous; pending means the challenge was accepted
	httputil.WriteJSON(w, http.StatusAccepted, SendCodeResponse{Status: "pending"})
}

type VerifyCodeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

func (r *VerifyCodeRequest) Normalize() {
	r.Phone = strings.TrimSpace(r.Phone)
	r.Code = strings.TrimSpace(r.Code)
}

func (r *VerifyCodeRequest) Validate() error {
	if r.Phone == "" || r.Code == "" {
		return dErrors.New(dErrors.CodeValidation, "phone and code are required")
	}
	return nil
}

type VerifyCodeResponse struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

func (h *Handler) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[VerifyCodeRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	cred, err := h.identity.VerifyCode(ctx, req.Phone, req.Code)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			h.logger.WarnContext(ctx, "code verification failed",
				"request_id", middleware.GetRequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, VerifyCodeResponse{
		UserID: cred.UserID.String(),
		Token:  cred.Token,
	})
}

type MeResponse struct {
	UserID string `json:"userId"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MeResponse{UserID: userID.String()})
}
