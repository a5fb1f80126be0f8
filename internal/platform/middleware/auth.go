package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "github.com/bamarler/flaZK/pkg/domain"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
	"github.com/bamarler/flaZK/pkg/platform/httputil"
)

// AuthenticatedClient carries the identity of a resolved API client through
// the request context. Defined here (not in internal/client) to keep the
// middleware free of domain imports.
type AuthenticatedClient struct {
	ID   id.ClientID
	Name string
}

// ClientResolver resolves an API key to a registered client.
// Implementations must return sentinel.ErrNotFound-wrapped or domain errors
// for unknown/invalid keys.
type ClientResolver interface {
	ResolveAPIKey(ctx context.Context, apiKey string) (*AuthenticatedClient, error)
}

// TokenValidator validates a bearer credential and yields the stable user it
// resolves to.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (id.UserID, error)
}

type clientKey struct{}
type userIDKey struct{}

// APIKeyAuth authenticates requests from registered clients via the X-API-Key
// header. The resolved client is placed on the request context.
func APIKeyAuth(resolver ClientResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing API key"))
				return
			}

			client, err := resolver.ResolveAPIKey(ctx, apiKey)
			if err != nil {
				logger.WarnContext(ctx, "api key rejected",
					"request_id", GetRequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid API key"))
				return
			}

			ctx = context.WithValue(ctx, clientKey{}, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerAuth authenticates verification-flow requests via an Authorization
// bearer token issued by the identity collaborator.
func BearerAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := bearerToken(r)
			if token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			userID, err := validator.ValidateToken(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "bearer token rejected",
					"request_id", GetRequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid bearer token"))
				return
			}

			ctx = context.WithValue(ctx, userIDKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// ContextWithClient returns a context carrying an authenticated client, as
// APIKeyAuth would produce. Used by tests and internal callers.
func ContextWithClient(ctx context.Context, client *AuthenticatedClient) context.Context {
	return context.WithValue(ctx, clientKey{}, client)
}

// ContextWithUserID returns a context carrying an authenticated user, as
// BearerAuth would produce.
func ContextWithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetClient retrieves the authenticated API client from the context.
func GetClient(ctx context.Context) *AuthenticatedClient {
	if c, ok := ctx.Value(clientKey{}).(*AuthenticatedClient); ok {
		return c
	}
	return nil
}

// GetUserID retrieves the authenticated user ID from the context.
// Returns the zero UserID when no bearer auth ran.
func GetUserID(ctx context.Context) id.UserID {
	if u, ok := ctx.Value(userIDKey{}).(id.UserID); ok {
		return u
	}
	return id.UserID{}
}
