package service

import (
	"context"
	"testing"

	"github.com/copperline/grantd/internal/oauth/domain"
	"github.com/stretchr/testify/require"
)

func TestLoadGrantCatalog(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	catalog, err := LoadGrantCatalog(ctx, st)
	require.NoError(t, err)

	for _, name := range []string{
		domain.GrantAuthorizationCode,
		domain.GrantImplicit,
		domain.GrantClientCredentials,
		domain.GrantPassword,
		domain.GrantRefreshToken,
	} {
		id, ok := catalog.Resolve(name)
		require.True(t, ok, "grant type %q missing from catalog", name)
		require.Positive(t, id)
	}

	_, ok := catalog.Resolve("bogus")
	require.False(t, ok)
}
