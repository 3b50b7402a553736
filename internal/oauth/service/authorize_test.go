package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAuthorizationCode(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	svc := &AuthorizeService{
		Store:         st,
		Clients:       &ClientService{Store: st},
		Authenticator: &staticAuthenticator{users: map[string]string{"alice": "hunter2"}},
	}

	t.Run("trusted user id", func(t *testing.T) {
		res, err := svc.IssueAuthorizationCode(ctx, AuthorizeRequest{
			ResponseType: "code",
			ClientID:     seedClientID,
			RedirectURI:  seedRedirectOne,
			Scopes:       []string{"profile:read"},
			UserID:       "user-alice",
		})
		require.NoError(t, err)
		require.NotEmpty(t, res.Code)
		require.Equal(t, seedRedirectOne, res.RedirectURI)
		require.True(t, res.ExpiresAt.After(time.Now()))
	})

	t.Run("credential login", func(t *testing.T) {
		res, err := svc.IssueAuthorizationCode(ctx, AuthorizeRequest{
			ResponseType: "code",
			ClientID:     seedClientID,
			RedirectURI:  seedRedirectTwo,
			Username:     "alice",
			Password:     "hunter2",
		})
		require.NoError(t, err)
		require.NotEmpty(t, res.Code)
	})

	t.Run("bad credentials", func(t *testing.T) {
		_, err := svc.IssueAuthorizationCode(ctx, AuthorizeRequest{
			ResponseType: "code",
			ClientID:     seedClientID,
			RedirectURI:  seedRedirectOne,
			Username:     "alice",
			Password:     "wrong",
		})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("wrong response type", func(t *testing.T) {
		_, err := svc.IssueAuthorizationCode(ctx, AuthorizeRequest{
			ResponseType: "token",
			ClientID:     seedClientID,
			RedirectURI:  seedRedirectOne,
			UserID:       "user-alice",
		})
		require.ErrorIs(t, err, ErrUnsupportedGrantType)
	})

	t.Run("unregistered redirect", func(t *testing.T) {
		_, err := svc.IssueAuthorizationCode(ctx, AuthorizeRequest{
			ResponseType: "code",
			ClientID:     seedClientID,
			RedirectURI:  "http://evil.example/callback",
			UserID:       "user-alice",
		})
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := svc.IssueAuthorizationCode(ctx, AuthorizeRequest{
			ResponseType: "code",
			ClientID:     "nobody",
			RedirectURI:  seedRedirectOne,
			UserID:       "user-alice",
		})
		require.ErrorIs(t, err, ErrInvalidClient)
	})
}

func TestIssuedCodeIsRedeemable(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	grants := newGrantService(t, st)

	code := issueCode(t, st, seedRedirectOne, []string{"tabs:write"})

	pair, err := grants.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    "authorization_code",
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		Code:         code,
		RedirectURI:  seedRedirectOne,
	})
	require.NoError(t, err)
	require.Equal(t, "tabs:write", pair.Scope)
}
