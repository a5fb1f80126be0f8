package client

import (
	"context"
	"fmt"
	"sync"

	id "github.com/bamarler/flaZK/pkg/domain"
	"github.com/bamarler/flaZK/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// InMemoryStore stores registered clients in memory. The client roster is
// small and provisioned at startup, so a durable variant is not required.
type InMemoryStore struct {
	mu      sync.RWMutex
	clients map[id.ClientID]*Client
}

// NewInMemoryStore constructs an empty in-memory client store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{clients: make(map[id.ClientID]*Client)}
}

func (s *InMemoryStore) Save(_ context.Context, c *Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyClient := *c
	s.clients[c.ID] = &copyClient
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, clientID id.ClientID) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client not found: %w", sentinel.ErrNotFound)
	}
	copyClient := *c
	return &copyClient, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		copyClient := *c
		clients = append(clients, &copyClient)
	}
	return clients, nil
}
