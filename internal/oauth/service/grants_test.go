package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/copperline/grantd/internal/oauth/domain"
	"github.com/copperline/grantd/internal/oauth/store"
	"github.com/copperline/grantd/internal/oauth/store/drivers/sqlite"
	"github.com/copperline/grantd/pkg/cryptox"
	"github.com/copperline/grantd/pkg/idx"
	"github.com/stretchr/testify/require"
)

// The migrations seed a fixture client "abcd1234" with the plaintext secret
// "abcd1234" and two registered redirect URIs; the tests lean on it.
const (
	seedClientID     = "abcd1234"
	seedClientSecret = "abcd1234"
	seedRedirectOne  = "http://localhost/testing/redirect_uri_one"
	seedRedirectTwo  = "http://localhost/testing/redirect_uri_two"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

type staticAuthenticator struct {
	users map[string]string // username -> password
}

func (a *staticAuthenticator) Authenticate(_ context.Context, username, password string) (string, error) {
	if stored, ok := a.users[username]; ok && stored == password {
		return "user-" + username, nil
	}
	return "", ErrInvalidCredentials
}

func newGrantService(t *testing.T, st store.Store) *GrantService {
	t.Helper()

	catalog, err := LoadGrantCatalog(context.Background(), st)
	require.NoError(t, err)

	return &GrantService{
		Store:   st,
		Clients: &ClientService{Store: st},
		Catalog: catalog,
		Authenticator: &staticAuthenticator{
			users: map[string]string{"alice": "hunter2"},
		},
		AccessTTL:           time.Hour,
		RefreshTTL:          24 * time.Hour,
		EnablePasswordGrant: true,
		EnableImplicitGrant: true,
	}
}

// issueCode mints an authorization code for the seeded client through the
// authorization endpoint's service, the same path production uses.
func issueCode(t *testing.T, st store.Store, redirectURI string, scopes []string) string {
	t.Helper()

	authz := &AuthorizeService{Store: st, Clients: &ClientService{Store: st}}
	res, err := authz.IssueAuthorizationCode(context.Background(), AuthorizeRequest{
		ResponseType: "code",
		ClientID:     seedClientID,
		RedirectURI:  redirectURI,
		Scopes:       scopes,
		UserID:       "user-alice",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Code)
	return res.Code
}

func TestScopeIsSubset(t *testing.T) {
	t.Parallel()

	granted := []string{"profile:read", "tabs:write"}

	require.True(t, scopeIsSubset(nil, granted))
	require.True(t, scopeIsSubset([]string{"profile:read"}, granted))
	require.True(t, scopeIsSubset(granted, granted))
	require.False(t, scopeIsSubset([]string{"profile:read", "admin"}, granted))
	require.False(t, scopeIsSubset([]string{"admin"}, nil))
}

func TestNarrowScopes(t *testing.T) {
	t.Parallel()

	granted := []string{"a", "b"}
	require.Equal(t, granted, narrowScopes(nil, granted))
	require.Equal(t, []string{"a"}, narrowScopes([]string{"a", "a"}, granted))
}

func TestClientCredentialsGrant(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newGrantService(t, st)

	pair, err := svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    domain.GrantClientCredentials,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
	})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.Empty(t, pair.RefreshToken, "client_credentials must not issue a refresh token")
	require.Greater(t, pair.ExpiresIn, time.Duration(0))

	// Stored row upholds the lifetime invariant and carries no user.
	row, err := st.AccessTokens().GetAccessTokenByHash(ctx, cryptox.FingerprintToken(pair.AccessToken))
	require.NoError(t, err)
	require.True(t, row.ExpiresAt.After(row.IssuedAt))
	require.Nil(t, row.UserID)
	require.False(t, row.HasRefresh())
}

func TestUnknownGrantTypeRejected(t *testing.T) {
	ctx := context.Background()
	svc := newGrantService(t, newTestStore(t))

	_, err := svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    "bogus",
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
	})
	require.ErrorIs(t, err, ErrUnsupportedGrantType)
}

func TestClientAuthenticationFailures(t *testing.T) {
	ctx := context.Background()
	svc := newGrantService(t, newTestStore(t))

	t.Run("wrong secret", func(t *testing.T) {
		_, err := svc.ProcessGrantRequest(ctx, GrantRequest{
			GrantType:    domain.GrantClientCredentials,
			ClientID:     seedClientID,
			ClientSecret: "not-the-secret",
		})
		require.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := svc.ProcessGrantRequest(ctx, GrantRequest{
			GrantType:    domain.GrantClientCredentials,
			ClientID:     "nobody",
			ClientSecret: "whatever",
		})
		require.ErrorIs(t, err, ErrInvalidClient)
	})
}

func TestAuthorizationCodeExchangeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newGrantService(t, st)

	code := issueCode(t, st, seedRedirectOne, []string{"profile:read"})

	req := GrantRequest{
		GrantType:    domain.GrantAuthorizationCode,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		Code:         code,
		RedirectURI:  seedRedirectOne,
	}

	pair, err := svc.ProcessGrantRequest(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "profile:read", pair.Scope)

	row, err := st.AccessTokens().GetAccessTokenByHash(ctx, cryptox.FingerprintToken(pair.AccessToken))
	require.NoError(t, err)
	require.NotNil(t, row.UserID)
	require.Equal(t, "user-alice", *row.UserID)
	require.NotNil(t, row.RefreshExpiresAt)
	require.False(t, row.RefreshExpiresAt.Before(row.ExpiresAt))

	// Second redemption of the same code must fail.
	_, err = svc.ProcessGrantRequest(ctx, req)
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestAuthorizationCodeRedirectMismatch(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newGrantService(t, st)

	code := issueCode(t, st, seedRedirectOne, nil)

	// Presenting the other registered URI is still a mismatch: the code is
	// bound to the exact URI it was minted for.
	_, err := svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    domain.GrantAuthorizationCode,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		Code:         code,
		RedirectURI:  seedRedirectTwo,
	})
	require.ErrorIs(t, err, ErrInvalidGrant)

	// The failed attempt must not have consumed the code.
	pair, err := svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    domain.GrantAuthorizationCode,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		Code:         code,
		RedirectURI:  seedRedirectOne,
	})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
}

func TestAuthorizationCodeScopeSupersetRejected(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newGrantService(t, st)

	code := issueCode(t, st, seedRedirectOne, []string{"profile:read"})

	_, err := svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    domain.GrantAuthorizationCode,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		Code:         code,
		RedirectURI:  seedRedirectOne,
		Scopes:       []string{"profile:read", "admin:write"},
	})
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestRefreshTokenRotation(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newGrantService(t, st)

	code := issueCode(t, st, seedRedirectOne, []string{"profile:read", "tabs:write"})
	first, err := svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    domain.GrantAuthorizationCode,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		Code:         code,
		RedirectURI:  seedRedirectOne,
	})
	require.NoError(t, err)

	second, err := svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    domain.GrantRefreshToken,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		RefreshToken: first.RefreshToken,
		Scopes:       []string{"profile:read"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, second.AccessToken)
	require.NotEmpty(t, second.RefreshToken)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, "profile:read", second.Scope)

	// Rotation revoked the prior pair: old access token is dead...
	tokens := &TokenService{Store: st}
	_, err = tokens.Validate(ctx, first.AccessToken)
	require.ErrorIs(t, err, ErrTokenInvalid)

	// ...and replaying the old refresh token fails.
	_, err = svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    domain.GrantRefreshToken,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		RefreshToken: first.RefreshToken,
	})
	require.ErrorIs(t, err, ErrInvalidGrant)

	// The rotated pair stays live.
	info, err := tokens.Validate(ctx, second.AccessToken)
	require.NoError(t, err)
	require.Equal(t, []string{"profile:read"}, info.Scopes)
}

func TestRefreshTokenScopeSupersetRejected(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newGrantService(t, st)

	code := issueCode(t, st, seedRedirectOne, []string{"profile:read"})
	first, err := svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    domain.GrantAuthorizationCode,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		Code:         code,
		RedirectURI:  seedRedirectOne,
	})
	require.NoError(t, err)

	_, err = svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    domain.GrantRefreshToken,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		RefreshToken: first.RefreshToken,
		Scopes:       []string{"profile:read", "admin:write"},
	})
	require.ErrorIs(t, err, ErrInvalidScope)

	// The rejected widening attempt must not burn the refresh token.
	_, err = svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    domain.GrantRefreshToken,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		RefreshToken: first.RefreshToken,
	})
	require.NoError(t, err)
}

func TestRefreshTokenClientMismatch(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newGrantService(t, st)

	code := issueCode(t, st, seedRedirectOne, nil)
	first, err := svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    domain.GrantAuthorizationCode,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		Code:         code,
		RedirectURI:  seedRedirectOne,
	})
	require.NoError(t, err)

	other := domain.Client{
		ID:         idx.New().String(),
		Identifier: "other-client",
		Secret:     "other-secret",
	}
	require.NoError(t, st.Clients().CreateClient(ctx, other))

	_, err = svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    domain.GrantRefreshToken,
		ClientID:     "other-client",
		ClientSecret: "other-secret",
		RefreshToken: first.RefreshToken,
	})
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestPasswordGrant(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newGrantService(t, st)

	t.Run("valid credentials", func(t *testing.T) {
		pair, err := svc.ProcessGrantRequest(ctx, GrantRequest{
			GrantType:    domain.GrantPassword,
			ClientID:     seedClientID,
			ClientSecret: seedClientSecret,
			Username:     "alice",
			Password:     "hunter2",
		})
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)

		row, err := st.AccessTokens().GetAccessTokenByHash(ctx, cryptox.FingerprintToken(pair.AccessToken))
		require.NoError(t, err)
		require.NotNil(t, row.UserID)
		require.Equal(t, "user-alice", *row.UserID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.ProcessGrantRequest(ctx, GrantRequest{
			GrantType:    domain.GrantPassword,
			ClientID:     seedClientID,
			ClientSecret: seedClientSecret,
			Username:     "alice",
			Password:     "wrong",
		})
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("disabled", func(t *testing.T) {
		disabled := *svc
		disabled.EnablePasswordGrant = false

		_, err := disabled.ProcessGrantRequest(ctx, GrantRequest{
			GrantType:    domain.GrantPassword,
			ClientID:     seedClientID,
			ClientSecret: seedClientSecret,
			Username:     "alice",
			Password:     "hunter2",
		})
		require.ErrorIs(t, err, ErrUnsupportedGrantType)
	})
}

func TestImplicitGrant(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newGrantService(t, st)

	spa := domain.Client{
		ID:           idx.New().String(),
		Identifier:   "spa-client",
		Secret:       "spa-secret",
		ResponseType: domain.GrantImplicit,
		RedirectURIs: []string{"http://localhost/spa/callback"},
	}
	require.NoError(t, st.Clients().CreateClient(ctx, spa))

	t.Run("issues access token without refresh", func(t *testing.T) {
		pair, err := svc.ProcessGrantRequest(ctx, GrantRequest{
			GrantType:    domain.GrantImplicit,
			ClientID:     "spa-client",
			ClientSecret: "spa-secret",
			RedirectURI:  "http://localhost/spa/callback",
		})
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.Empty(t, pair.RefreshToken)
	})

	t.Run("client response type must allow implicit", func(t *testing.T) {
		_, err := svc.ProcessGrantRequest(ctx, GrantRequest{
			GrantType:    domain.GrantImplicit,
			ClientID:     seedClientID, // registered with response_type=code
			ClientSecret: seedClientSecret,
			RedirectURI:  seedRedirectOne,
		})
		require.ErrorIs(t, err, ErrUnauthorizedClient)
	})

	t.Run("unregistered redirect rejected", func(t *testing.T) {
		_, err := svc.ProcessGrantRequest(ctx, GrantRequest{
			GrantType:    domain.GrantImplicit,
			ClientID:     "spa-client",
			ClientSecret: "spa-secret",
			RedirectURI:  "http://evil.example/callback",
		})
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("disabled", func(t *testing.T) {
		disabled := *svc
		disabled.EnableImplicitGrant = false

		_, err := disabled.ProcessGrantRequest(ctx, GrantRequest{
			GrantType:    domain.GrantImplicit,
			ClientID:     "spa-client",
			ClientSecret: "spa-secret",
			RedirectURI:  "http://localhost/spa/callback",
		})
		require.ErrorIs(t, err, ErrUnsupportedGrantType)
	})
}

// raceGrantRequests fires the same grant request from several goroutines at
// once and tallies the outcomes. Anything other than success or
// ErrInvalidGrant fails the test.
func raceGrantRequests(t *testing.T, svc *GrantService, req GrantRequest, workers int) (successes, invalid int) {
	t.Helper()

	ctx := context.Background()
	results := make(chan error, workers)

	var gate sync.WaitGroup
	gate.Add(1)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gate.Wait()
			_, err := svc.ProcessGrantRequest(ctx, req)
			results <- err
		}()
	}
	gate.Done()
	wg.Wait()
	close(results)

	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInvalidGrant):
			invalid++
		default:
			t.Fatalf("unexpected error under contention: %v", err)
		}
	}
	return successes, invalid
}

func TestAuthorizationCodeConcurrentRedemption(t *testing.T) {
	st := newTestStore(t)
	svc := newGrantService(t, st)

	code := issueCode(t, st, seedRedirectOne, []string{"profile:read"})

	const workers = 8
	successes, invalid := raceGrantRequests(t, svc, GrantRequest{
		GrantType:    domain.GrantAuthorizationCode,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		Code:         code,
		RedirectURI:  seedRedirectOne,
	}, workers)

	require.Equal(t, 1, successes, "exactly one redemption may win")
	require.Equal(t, workers-1, invalid)
}

func TestRefreshTokenConcurrentRotation(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newGrantService(t, st)

	code := issueCode(t, st, seedRedirectOne, nil)
	first, err := svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    domain.GrantAuthorizationCode,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		Code:         code,
		RedirectURI:  seedRedirectOne,
	})
	require.NoError(t, err)

	const workers = 8
	successes, invalid := raceGrantRequests(t, svc, GrantRequest{
		GrantType:    domain.GrantRefreshToken,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		RefreshToken: first.RefreshToken,
	}, workers)

	require.Equal(t, 1, successes, "exactly one rotation may win")
	require.Equal(t, workers-1, invalid)
}

// collidingTokenRepo fakes fingerprint collisions: the first `failures`
// inserts report store.ErrAlreadyExists, the rest succeed.
type collidingTokenRepo struct {
	store.AccessTokens

	failures int
	created  int
}

func (r *collidingTokenRepo) CreateAccessToken(_ context.Context, _ domain.AccessToken) error {
	if r.failures > 0 {
		r.failures--
		return store.ErrAlreadyExists
	}
	r.created++
	return nil
}

type collidingStore struct {
	store.Store

	tokens *collidingTokenRepo
}

func (s *collidingStore) AccessTokens() store.AccessTokens { return s.tokens }

func TestMintPairRetriesOnFingerprintCollision(t *testing.T) {
	ctx := context.Background()
	svc := &GrantService{AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour}

	t.Run("retries until the insert lands", func(t *testing.T) {
		repo := &collidingTokenRepo{failures: tokenIssueAttempts - 1}

		pair, err := svc.mintPair(ctx, &collidingStore{tokens: repo}, time.Now(), "client", 1, nil, nil, true)
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
		require.Equal(t, 1, repo.created)
		require.Zero(t, repo.failures)
	})

	t.Run("gives up after the bounded attempts", func(t *testing.T) {
		repo := &collidingTokenRepo{failures: tokenIssueAttempts}

		pair, err := svc.mintPair(ctx, &collidingStore{tokens: repo}, time.Now(), "client", 1, nil, nil, true)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
		require.Nil(t, pair)
		require.Zero(t, repo.created)
	})
}

func TestRefreshExpiryNeverPrecedesAccessExpiry(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newGrantService(t, st)

	// Misconfigured deployment: refresh TTL shorter than access TTL.
	svc.AccessTTL = 2 * time.Hour
	svc.RefreshTTL = time.Minute

	pair, err := svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    domain.GrantPassword,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		Username:     "alice",
		Password:     "hunter2",
	})
	require.NoError(t, err)

	row, err := st.AccessTokens().GetAccessTokenByHash(ctx, cryptox.FingerprintToken(pair.AccessToken))
	require.NoError(t, err)
	require.NotNil(t, row.RefreshExpiresAt)
	require.False(t, row.RefreshExpiresAt.Before(row.ExpiresAt))
}

func TestExpiredAuthorizationCodeRejected(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newGrantService(t, st)

	client, err := st.Clients().GetClientByIdentifier(ctx, seedClientID)
	require.NoError(t, err)

	code := cryptox.MustGenerateToken(cryptox.TokenSize128)
	require.NoError(t, st.AuthCodes().CreateAuthCode(ctx, domain.AuthCode{
		ID:          idx.New().String(),
		ClientID:    client.ID,
		CodeHash:    cryptox.FingerprintToken(code),
		RedirectURI: seedRedirectOne,
		ExpiresAt:   time.Now().Add(-time.Minute),
		CreatedAt:   time.Now().Add(-10 * time.Minute),
	}))

	_, err = svc.ProcessGrantRequest(ctx, GrantRequest{
		GrantType:    domain.GrantAuthorizationCode,
		ClientID:     seedClientID,
		ClientSecret: seedClientSecret,
		Code:         code,
		RedirectURI:  seedRedirectOne,
	})
	require.ErrorIs(t, err, ErrInvalidGrant)
}
