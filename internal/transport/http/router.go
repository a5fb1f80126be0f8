// Package httptransport composes the HTTP surface of the gateway. It mounts
// domain handlers behind the shared middleware stack; no business logic lives
// here.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	documentshandler "github.com/bamarler/flaZK/internal/documents/handler"
	identityhandler "github.com/bamarler/flaZK/internal/identity/handler"
	"github.com/bamarler/flaZK/internal/platform/health"
	"github.com/bamarler/flaZK/internal/platform/middleware"
	proofhandler "github.com/bamarler/flaZK/internal/proof/handler"
	verificationhandler "github.com/bamarler/flaZK/internal/verification/handler"
)

// requestTimeout bounds a single request end to end.
const requestTimeout = 30 * time.Second

// Deps carries everything the router mounts.
type Deps struct {
	Logger *slog.Logger

	Verification *verificationhandler.Handler
	Documents    *documentshandler.Handler
	Identity     *identityhandler.Handler
	Proof        *proofhandler.Handler
	Health       *health.Handler

	// ClientResolver authenticates verifier clients by API key.
	ClientResolver middleware.ClientResolver
	// TokenValidator authenticates widget users by bearer token.
	TokenValidator middleware.TokenValidator
}

// NewRouter wires all endpoints with middleware. Three auth tiers:
// X-API-Key for verifier clients, bearer tokens for widget users, and a small
// public tier for the phone challenge and the browser-driven completion call.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.ContentTypeJSON)

	deps.Health.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		deps.Identity.RegisterPublic(api)

		api.Group(func(client chi.Router) {
			client.Use(middleware.APIKeyAuth(deps.ClientResolver, deps.Logger))
			deps.Verification.RegisterClient(client)
		})

		api.Group(func(user chi.Router) {
			user.Use(middleware.BearerAuth(deps.TokenValidator, deps.Logger))
			deps.Identity.RegisterAuthed(user)
			deps.Documents.Register(user)
			deps.Proof.Register(user)
			deps.Verification.RegisterWidget(api, user)
		})
	})

	return r
}
