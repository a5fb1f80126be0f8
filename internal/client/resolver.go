package client

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bamarler/flaZK/internal/platform/middleware"
	id "github.com/bamarler/flaZK/pkg/domain"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
	"github.com/bamarler/flaZK/pkg/secrets"
)

// Store is the persistence interface the resolver needs.
type Store interface {
	FindByID(ctx context.Context, clientID id.ClientID) (*Client, error)
	List(ctx context.Context) ([]*Client, error)
}

// cacheEntry holds a resolved client with expiration.
type cacheEntry struct {
	client    *middleware.AuthenticatedClient
	expiresAt time.Time
}

// Resolver resolves API keys to registered clients. bcrypt verification is
// deliberately slow, so successful resolutions are cached with a short TTL
// and concurrent misses for the same key collapse into a single bcrypt walk.
type Resolver struct {
	store Store

	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	flight  singleflight.Group
}

// NewResolver constructs a Resolver with the given cache TTL.
func NewResolver(store Store, cacheTTL time.Duration) *Resolver {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Resolver{
		store:   store,
		entries: make(map[string]*cacheEntry),
		ttl:     cacheTTL,
	}
}

// ResolveAPIKey finds the active client whose key hash matches the presented
// key. The roster is small, so a scan over registered clients is acceptable;
// the cache keeps repeated calls off the bcrypt path.
func (r *Resolver) ResolveAPIKey(ctx context.Context, apiKey string) (*middleware.AuthenticatedClient, error) {
	if apiKey == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing API key")
	}

	if cached, ok := r.cacheGet(apiKey); ok {
		return cached, nil
	}

	v, err, _ := r.flight.Do(apiKey, func() (any, error) {
		// A concurrent caller may have filled the cache while this one
		// queued behind the flight.
		if cached, ok := r.cacheGet(apiKey); ok {
			return cached, nil
		}
		return r.resolveUncached(ctx, apiKey)
	})
	if err != nil {
		return nil, err
	}
	return v.(*middleware.AuthenticatedClient), nil
}

func (r *Resolver) resolveUncached(ctx context.Context, apiKey string) (*middleware.AuthenticatedClient, error) {
	clients, err := r.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list clients")
	}

	for _, c := range clients {
		if !c.Active {
			continue
		}
		if err := secrets.Verify(apiKey, c.APIKeyHash); err != nil {
			continue
		}
		resolved := &middleware.AuthenticatedClient{ID: c.ID, Name: c.Name}
		r.cacheSet(apiKey, resolved)
		return resolved, nil
	}

	return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown API key")
}

func (r *Resolver) cacheGet(apiKey string) (*middleware.AuthenticatedClient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[apiKey]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		// Expired - treat as miss (cleanup happens lazily on cacheSet)
		return nil, false
	}
	return entry.client, true
}

func (r *Resolver) cacheSet(apiKey string, resolved *middleware.AuthenticatedClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[apiKey] = &cacheEntry{client: resolved, expiresAt: time.Now().Add(r.ttl)}
	r.cleanupExpiredLocked(10)
}

// cleanupExpiredLocked removes up to maxCleanup expired entries.
// Must be called with lock held.
func (r *Resolver) cleanupExpiredLocked(maxCleanup int) {
	now := time.Now()
	cleaned := 0
	for key, entry := range r.entries {
		if now.After(entry.expiresAt) {
			delete(r.entries, key)
			cleaned++
			if cleaned >= maxCleanup {
				break
			}
		}
	}
}

// Verify interface is satisfied.
var _ middleware.ClientResolver = (*Resolver)(nil)
