package client

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/bamarler/flaZK/pkg/domain"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
)

func seededResolver(t *testing.T, ttl time.Duration) (*Resolver, *InMemoryStore) {
	t.Helper()
	store := NewInMemoryStore()
	require.NoError(t, Seed(context.Background(), store, id.ClientID("acme-car-rental"), "ACME Car Rentals", "secret-key"))
	return NewResolver(store, ttl), store
}

func TestResolveAPIKey(t *testing.T) {
	resolver, _ := seededResolver(t, time.Minute)

	resolved, err := resolver.ResolveAPIKey(context.Background(), "secret-key")
	require.NoError(t, err)
	assert.Equal(t, id.ClientID("acme-car-rental"), resolved.ID)
	assert.Equal(t, "ACME Car Rentals", resolved.Name)
}

func TestResolveAPIKeyUnknown(t *testing.T) {
	resolver, _ := seededResolver(t, time.Minute)

	_, err := resolver.ResolveAPIKey(context.Background(), "wrong-key")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestResolveAPIKeyEmpty(t *testing.T) {
	resolver, _ := seededResolver(t, time.Minute)

	_, err := resolver.ResolveAPIKey(context.Background(), "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestResolveAPIKeySkipsInactiveClients(t *testing.T) {
	resolver, store := seededResolver(t, time.Minute)

	c, err := store.FindByID(context.Background(), id.ClientID("acme-car-rental"))
	require.NoError(t, err)
	c.Active = false
	require.NoError(t, store.Save(context.Background(), c))

	_, err = resolver.ResolveAPIKey(context.Background(), "secret-key")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

// countingStore counts List calls, one per bcrypt roster walk.
type countingStore struct {
	Store
	lists atomic.Int64
}

func (s *countingStore) List(ctx context.Context) ([]*Client, error) {
	s.lists.Add(1)
	return s.Store.List(ctx)
}

func TestResolveAPIKeyConcurrentMissesShareOneWalk(t *testing.T) {
	inner := NewInMemoryStore()
	require.NoError(t, Seed(context.Background(), inner, id.ClientID("acme-car-rental"), "ACME Car Rentals", "secret-key"))
	store := &countingStore{Store: inner}
	resolver := NewResolver(store, time.Minute)

	const callers = 8
	var wg sync.WaitGroup
	resolvedIDs := make([]id.ClientID, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resolved, err := resolver.ResolveAPIKey(context.Background(), "secret-key")
			errs[i] = err
			if err == nil {
				resolvedIDs[i] = resolved.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, id.ClientID("acme-car-rental"), resolvedIDs[i])
	}
	assert.Equal(t, int64(1), store.lists.Load())
}

func TestResolveAPIKeyCachesSuccess(t *testing.T) {
	resolver, store := seededResolver(t, time.Minute)

	_, err := resolver.ResolveAPIKey(context.Background(), "secret-key")
	require.NoError(t, err)

	// deactivating after a successful resolve does not evict the cache entry
	c, err := store.FindByID(context.Background(), id.ClientID("acme-car-rental"))
	require.NoError(t, err)
	c.Active = false
	require.NoError(t, store.Save(context.Background(), c))

	resolved, err := resolver.ResolveAPIKey(context.Background(), "secret-key")
	require.NoError(t, err)
	assert.Equal(t, id.ClientID("acme-car-rental"), resolved.ID)
}
