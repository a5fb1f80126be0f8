package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bamarler/flaZK/internal/documents"
	"github.com/bamarler/flaZK/internal/eligibility"
	"github.com/bamarler/flaZK/internal/platform/middleware"
	id "github.com/bamarler/flaZK/pkg/domain"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
	"github.com/bamarler/flaZK/pkg/platform/httputil"
	"github.com/bamarler/flaZK/pkg/platform/sentinel"
)

// maxUploadBytes caps document uploads at 10 MiB.
const maxUploadBytes = 10 << 20

// Handler handles document endpoints for the verification context. All
// routes require bearer auth; users only ever see their own documents.
type Handler struct {
	logger  *slog.Logger
	scanner documents.Scanner
	store   documents.Store
}

// New creates a new documents Handler.
func New(scanner documents.Scanner, store documents.Store, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, scanner: scanner, store: store}
}

// Register registers the document routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/documents/scan", h.handleScan)
	r.Post("/documents/extract", h.handleExtract)
	r.Post("/documents/analyze", h.handleAnalyze)
	r.Get("/documents/user/{userId}", h.handleListForUser)
}

type ScanRequest struct {
	AgeMin        *int `json:"age_min,omitempty"`
	LicenseStatus *int `json:"license_status,omitempty"`
	PointsMax     *int `json:"points_max,omitempty"`
}

func (r *ScanRequest) Normalize() {}

func (r *ScanRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return r.requirements().Validate()
}

func (r *ScanRequest) requirements() eligibility.Requirements {
	return eligibility.Requirements{
		AgeMin:        r.AgeMin,
		LicenseStatus: r.LicenseStatus,
		PointsMax:     r.PointsMax,
	}
}

type ScanResponse struct {
	Age     bool `json:"age"`
	License bool `json:"license_status"`
	Points  bool `json:"points"`
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[ScanRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	result, err := h.scanner.ScanUserDocuments(ctx, userID, req.requirements())
	if err != nil {
		h.logger.WarnContext(ctx, "document scan failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ScanResponse{
		Age:     result.Age,
		License: result.License,
		Points:  result.Points,
	})
}

type ExtractResponse struct {
	Age           int `json:"age"`
	LicenseStatus int `json:"license_status"`
	Points        int `json:"points"`
}

// handleExtract returns the numeric snapshot to the authenticated document
// owner. This stays inside the verification context; the snapshot itself is
// never exposed to the client origin.
func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	snapshot, err := h.scanner.ExtractFromDocuments(ctx, userID, time.Now())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	licenseStatus := 0
	if snapshot.LicenseValid {
		licenseStatus = 1
	}
	httputil.WriteJSON(w, http.StatusOK, ExtractResponse{
		Age:           snapshot.Age,
		LicenseStatus: licenseStatus,
		Points:        snapshot.Points,
	})
}

type AnalyzeResponse struct {
	Facts eligibility.DocumentFacts `json:"facts"`
}

// handleAnalyze accepts a multipart upload under the "document" field and
// returns the partial facts extracted from it.
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("document")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "document file is required"))
		return
	}
	defer file.Close() //nolint:errcheck // read-only handle

	content, err := io.ReadAll(file)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "could not read document upload"))
		return
	}

	facts, err := h.scanner.AnalyzeUploadedDocument(ctx, userID, header.Filename, content)
	if err != nil {
		h.logger.WarnContext(ctx, "document analysis failed",
			"request_id", middleware.GetRequestID(ctx),
			"file_name", header.Filename,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, AnalyzeResponse{Facts: facts})
}

type DocumentSummary struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	UploadedAt string `json:"uploadedAt"`
}

type ListResponse struct {
	Documents []DocumentSummary `json:"documents"`
}

// handleListForUser lists the caller's stored documents. Users may only
// query their own id; anything else is Forbidden regardless of existence.
func (h *Handler) handleListForUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	requested, err := id.ParseUserID(chi.URLParam(r, "userId"))
	if err != nil || requested != userID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "cannot access another user's documents"))
		return
	}

	docs, err := h.store.ListByUser(ctx, userID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "could not list documents"))
		return
	}

	resp := ListResponse{Documents: make([]DocumentSummary, 0, len(docs))}
	for _, doc := range docs {
		resp.Documents = append(resp.Documents, DocumentSummary{
			DocumentID: doc.ID.String(),
			Name:       doc.Name,
			UploadedAt: doc.UploadedAt.UTC().Format(time.RFC3339),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) requireUser(ctx context.Context, w http.ResponseWriter) (id.UserID, bool) {
	userID := middleware.GetUserID(ctx)
	if userID.IsNil() {
		h.logger.ErrorContext(ctx, "userID missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.UserID{}, false
	}
	return userID, true
}
