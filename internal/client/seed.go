package client

import (
	"context"
	"time"

	id "github.com/bamarler/flaZK/pkg/domain"
	"github.com/bamarler/flaZK/pkg/secrets"
)

// Seed provisions a development client with the given plaintext API key.
// Intended for local setups only; production rosters are provisioned out of band.
func Seed(ctx context.Context, store *InMemoryStore, clientID id.ClientID, name, apiKey string) error {
	hash, err := secrets.Hash(apiKey)
	if err != nil {
		return err
	}
	c, err := NewClient(clientID, name, hash, time.Now())
	if err != nil {
		return err
	}
	return store.Save(ctx, c)
}
