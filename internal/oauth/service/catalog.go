package service

import (
	"context"
	"fmt"

	"github.com/copperline/grantd/internal/oauth/domain"
	"github.com/copperline/grantd/internal/oauth/store"
)

// GrantCatalog is the static set of supported grant types, loaded once from
// the grant_types table at startup. It is immutable after load and therefore
// safe for concurrent reads without locking.
type GrantCatalog struct {
	byName map[string]int64
}

// knownGrantNames is the closed enumeration the engine understands. A
// grant_types row outside this set is a deployment error, caught at load.
var knownGrantNames = map[string]struct{}{
	domain.GrantAuthorizationCode: {},
	domain.GrantImplicit:          {},
	domain.GrantClientCredentials: {},
	domain.GrantPassword:          {},
	domain.GrantRefreshToken:      {},
}

// LoadGrantCatalog reads the grant_types reference rows and validates them
// against the closed enumeration.
func LoadGrantCatalog(ctx context.Context, st store.Store) (*GrantCatalog, error) {
	types, err := st.GrantTypes().ListGrantTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load grant types: %w", err)
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("grant_types table is empty; migrations not applied?")
	}

	byName := make(map[string]int64, len(types))
	for _, gt := range types {
		if _, ok := knownGrantNames[gt.Name]; !ok {
			return nil, fmt.Errorf("unknown grant type %q in catalog", gt.Name)
		}
		byName[gt.Name] = gt.ID
	}

	return &GrantCatalog{byName: byName}, nil
}

// Resolve maps a grant type name to its reference id. The second return is
// false for any name outside the catalog.
func (c *GrantCatalog) Resolve(name string) (int64, bool) {
	id, ok := c.byName[name]
	return id, ok
}
