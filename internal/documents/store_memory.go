package documents

import (
	"context"
	"fmt"
	"sort"
	"sync"

	id "github.com/bamarler/flaZK/pkg/domain"
	"github.com/bamarler/flaZK/pkg/platform/sentinel"
)

// Store persists extracted documents per user.
// ListByUser returns documents in upload order; Extract's last-write-wins
// policy depends on that ordering.
type Store interface {
	Save(ctx context.Context, doc *Document) error
	ListByUser(ctx context.Context, userID id.UserID) ([]*Document, error)
}

// InMemoryStore stores documents in memory for tests/dev.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[id.UserID][]*Document
}

// NewInMemoryStore constructs an empty in-memory document store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[id.UserID][]*Document)}
}

func (s *InMemoryStore) Save(_ context.Context, doc *Document) error {
	if doc == nil {
		return fmt.Errorf("document is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.docs[doc.UserID] = append(s.docs[doc.UserID], &cp)
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.docs[userID]
	if !ok {
		return nil, fmt.Errorf("no documents for user: %w", sentinel.ErrNotFound)
	}

	docs := make([]*Document, len(stored))
	for i, doc := range stored {
		cp := *doc
		docs[i] = &cp
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].UploadedAt.Before(docs[j].UploadedAt)
	})
	return docs, nil
}
