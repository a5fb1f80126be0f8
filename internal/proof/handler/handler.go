package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bamarler/flaZK/internal/eligibility"
	"github.com/bamarler/flaZK/internal/platform/middleware"
	"github.com/bamarler/flaZK/internal/platform/tracer"
	"github.com/bamarler/flaZK/internal/proof"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
	"github.com/bamarler/flaZK/pkg/platform/httputil"
)

// Metrics counts generated artifacts. Satisfied by the verification metrics.
type Metrics interface {
	IncrementProofsGenerated(satisfied bool)
}

type Option func(*Handler)

// Handler exposes proof generation to the authenticated widget. The snapshot
// arrives in the request and leaves only as the opaque artifact.
type Handler struct {
	logger    *slog.Logger
	generator proof.Generator
	metrics   Metrics
	tracer    tracer.Tracer
}

// New creates a new proof Handler.
func New(generator proof.Generator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:    logger,
		generator: generator,
		tracer:    tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithMetrics sets the proof counter.
func WithMetrics(m Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithTracer sets the tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(h *Handler) {
		h.tracer = t
	}
}

// Register registers the proof routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/proof/generate", h.handleGenerate)
}

type SnapshotPayload struct {
	Age           int `json:"age"`
	LicenseStatus int `json:"license_status"`
	Points        int `json:"points"`
}

type RequirementsPayload struct {
	AgeMin        *int `json:"age_min,omitempty"`
	LicenseStatus *int `json:"license_status,omitempty"`
	PointsMax     *int `json:"points_max,omitempty"`
}

type GenerateRequest struct {
	Snapshot     SnapshotPayload     `json:"snapshot"`
	Requirements RequirementsPayload `json:"requirements"`
}

func (r *GenerateRequest) Normalize() {}

func (r *GenerateRequest) Validate() error {
	if r.Snapshot.Age < 0 || r.Snapshot.Points < 0 {
		return dErrors.New(dErrors.CodeValidation, "snapshot values must be non-negative")
	}
	return r.requirements().Validate()
}

func (r *GenerateRequest) requirements() eligibility.Requirements {
	return eligibility.Requirements{
		AgeMin:        r.Requirements.AgeMin,
		LicenseStatus: r.Requirements.LicenseStatus,
		PointsMax:     r.Requirements.PointsMax,
	}
}

func (r *GenerateRequest) snapshot() eligibility.Snapshot {
	return eligibility.Snapshot{
		Age:          r.Snapshot.Age,
		LicenseValid: r.Snapshot.LicenseStatus == 1,
		Points:       r.Snapshot.Points,
	}
}

type GenerateResponse struct {
	Proof string `json:"proof"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[GenerateRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	ctx, span := h.tracer.Start(ctx, tracer.SpanProofGenerate)
	artifact, err := h.generator.Generate(ctx, req.snapshot(), proof.ThresholdsFrom(req.requirements()))
	span.End(err)
	if err != nil {
		h.logger.ErrorContext(ctx, "proof generation failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.IncrementProofsGenerated(artifact.Satisfied())
	}
	httputil.WriteJSON(w, http.StatusOK, GenerateResponse{Proof: artifact.Proof})
}
