package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bamarler/flaZK/internal/platform/middleware"
	"github.com/bamarler/flaZK/internal/verification/models"
	"github.com/bamarler/flaZK/internal/verification/service"
	id "github.com/bamarler/flaZK/pkg/domain"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
	"github.com/bamarler/flaZK/pkg/platform/httputil"
)

// Service defines the interface for verification session operations.
type Service interface {
	Create(ctx context.Context, cmd service.CreateCommand) (*service.CreateResult, error)
	GetStatus(ctx context.Context, client id.ClientID, sessionID id.SessionID) (*service.StatusView, error)
	GetForWidget(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Complete(ctx context.Context, cmd service.CompleteCommand) (*models.CompletionResult, error)
}

// Handler handles verification session endpoints.
type Handler struct {
	logger       *slog.Logger
	verification Service
}

// New creates a new verification Handler.
func New(verification Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:       logger,
		verification: verification,
	}
}

// RegisterClient registers the client-authenticated routes (X-API-Key).
func (h *Handler) RegisterClient(r chi.Router) {
	r.Post("/verification/request", h.handleCreateSession)
	r.Get("/verification/status/{sessionId}", h.handleGetStatus)
}

// RegisterWidget registers the widget-facing routes. Complete is reachable
// without a bearer token; the session read used for stateless resume
// requires one.
func (h *Handler) RegisterWidget(public, authed chi.Router) {
	public.Post("/verification/{sessionId}/complete", h.handleComplete)
	authed.Get("/verification/sessions/{sessionId}", h.handleGetSession)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	client := middleware.GetClient(ctx)
	if client == nil {
		h.logger.ErrorContext(ctx, "client missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateSessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cmd, err := req.ToCommand(client.ID, client.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.verification.Create(ctx, cmd)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create verification session",
			"request_id", requestID,
			"client_id", client.ID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toCreateResponse(result))
}

func (h *Handler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	client := middleware.GetClient(ctx)
	if client == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "session not found"))
		return
	}

	view, err := h.verification.GetStatus(ctx, client.ID, sessionID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.WarnContext(ctx, "failed to read session status",
				"request_id", requestID,
				"session_id", sessionID.String(),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(view))
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "session not found"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CompleteSessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.verification.Complete(ctx, service.CompleteCommand{
		SessionID: sessionID,
		Success:   req.Success,
		Proof:     req.Proof,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to complete verification session",
			"request_id", requestID,
			"session_id", sessionID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toCompleteResponse(result))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "session not found"))
		return
	}

	session, err := h.verification.GetForWidget(ctx, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toSessionView(session))
}
