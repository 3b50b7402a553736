package service

import (
	"context"
	"errors"

	"github.com/copperline/grantd/internal/oauth/domain"
	"github.com/copperline/grantd/internal/oauth/store"
	"github.com/copperline/grantd/pkg/cryptox"
)

// ClientService is the client registry: stateless lookups over the store, no
// caching, so a secret rotation is visible on the next request.
type ClientService struct {
	Store store.Store
}

// LookupByIdentifier fetches a client by its public identifier.
func (s *ClientService) LookupByIdentifier(ctx context.Context, identifier string) (domain.Client, error) {
	client, err := s.Store.Clients().GetClientByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Client{}, ErrInvalidClient
		}
		return domain.Client{}, err
	}
	return client, nil
}

// VerifySecret checks the presented secret against the stored value in
// constant time. The secret itself is never logged.
func (s *ClientService) VerifySecret(client domain.Client, presented string) bool {
	return cryptox.VerifySecret(presented, client.Secret) == nil
}

// IsRedirectURIRegistered reports whether uri exactly matches one of the
// client's registered redirect URIs.
func (s *ClientService) IsRedirectURIRegistered(client domain.Client, uri string) bool {
	return client.HasRedirectURI(uri)
}
