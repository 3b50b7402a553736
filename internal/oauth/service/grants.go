package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/copperline/grantd/internal/oauth/domain"
	"github.com/copperline/grantd/internal/oauth/store"
	"github.com/copperline/grantd/pkg/cryptox"
	"github.com/copperline/grantd/pkg/idx"
	"github.com/copperline/grantd/pkg/slogx"
)

// tokenIssueAttempts bounds the retry loop on token fingerprint collisions.
// A collision means two 256-bit random values hashed identically, so one
// retry should already be unreachable in practice.
const tokenIssueAttempts = 3

// UserAuthenticator verifies resource owner credentials for the password
// grant and the authorization endpoint. How identities are actually checked
// is outside the engine; it only consumes a pass/fail plus a user id.
type UserAuthenticator interface {
	// Authenticate returns the user's id on success and
	// ErrInvalidCredentials when the credentials are wrong.
	Authenticate(ctx context.Context, username, password string) (string, error)
}

// GrantRequest carries one token-endpoint request: the grant type name,
// client authentication, and the grant-specific fields. Unused fields stay
// empty.
type GrantRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string

	// authorization_code
	Code        string
	RedirectURI string

	// password
	Username string
	Password string

	// refresh_token
	RefreshToken string

	// Requested scope; must be a subset of what was originally granted.
	Scopes []string
}

// GrantService is the grant engine: it validates an incoming grant request
// against the client registry and grant catalog, executes the grant-specific
// protocol, and issues or rejects a token pair. It holds no state across
// requests; every decision is re-derived from the store.
type GrantService struct {
	Store         store.Store
	Clients       *ClientService
	Catalog       *GrantCatalog
	Authenticator UserAuthenticator // may be nil; password grant then unsupported

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// The password and implicit grants are deprecated by current OAuth2
	// guidance; each can be switched off independently.
	EnablePasswordGrant bool
	EnableImplicitGrant bool
}

// ProcessGrantRequest is the single entry point for the token endpoint. It
// either returns a token pair or one of the service sentinel errors.
func (s *GrantService) ProcessGrantRequest(ctx context.Context, req GrantRequest) (*domain.TokenPair, error) {
	grantName := strings.TrimSpace(req.GrantType)
	grantID, ok := s.Catalog.Resolve(grantName)
	if !ok {
		return nil, ErrUnsupportedGrantType
	}

	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		return nil, ErrInvalidRequest
	}

	client, err := s.Clients.LookupByIdentifier(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !s.Clients.VerifySecret(client, req.ClientSecret) {
		slogx.FromContext(ctx).Info("client authentication failed",
			slog.String("client_id", clientID),
			slog.String("grant_type", grantName),
		)
		return nil, ErrInvalidClient
	}

	switch grantName {
	case domain.GrantAuthorizationCode:
		return s.exchangeAuthorizationCode(ctx, client, grantID, req)
	case domain.GrantRefreshToken:
		return s.exchangeRefreshToken(ctx, client, grantID, req)
	case domain.GrantClientCredentials:
		return s.exchangeClientCredentials(ctx, client, grantID, req)
	case domain.GrantPassword:
		return s.exchangePassword(ctx, client, grantID, req)
	case domain.GrantImplicit:
		return s.exchangeImplicit(ctx, client, grantID, req)
	default:
		return nil, ErrUnsupportedGrantType
	}
}

// exchangeAuthorizationCode redeems a single-use authorization code. The
// redemption and the token insert share one transaction: a failure after the
// code is consumed rolls the consumption back, so a consumed code always has
// a token to show for it.
func (s *GrantService) exchangeAuthorizationCode(
	ctx context.Context,
	client domain.Client,
	grantID int64,
	req GrantRequest,
) (*domain.TokenPair, error) {
	now := time.Now()

	code := strings.TrimSpace(req.Code)
	redirectURI := strings.TrimSpace(req.RedirectURI)
	if code == "" || redirectURI == "" {
		return nil, ErrInvalidRequest
	}

	codeHash := cryptox.FingerprintToken(code)

	var pair *domain.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		authCode, err := tx.AuthCodes().ConsumeAuthCode(ctx, codeHash, client.ID, redirectURI, now)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		if len(req.Scopes) > 0 && !scopeIsSubset(req.Scopes, authCode.Scopes) {
			return ErrInvalidScope
		}
		effective := narrowScopes(req.Scopes, authCode.Scopes)

		pair, err = s.mintPair(ctx, tx, now, client.ID, grantID, authCode.UserID, effective, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// exchangeRefreshToken rotates a refresh token: the old pair is revoked and
// the new pair created in one transaction, making refresh tokens single-use.
// A replayed (stolen) refresh token loses the race and gets ErrInvalidGrant.
func (s *GrantService) exchangeRefreshToken(
	ctx context.Context,
	client domain.Client,
	grantID int64,
	req GrantRequest,
) (*domain.TokenPair, error) {
	now := time.Now()

	if req.RefreshToken == "" {
		return nil, ErrInvalidRequest
	}

	fp := cryptox.FingerprintToken(req.RefreshToken)
	prior, err := s.Store.AccessTokens().GetAccessTokenByRefreshHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	if prior.Revoked {
		return nil, ErrInvalidGrant
	}
	if prior.RefreshExpiresAt == nil || now.After(*prior.RefreshExpiresAt) {
		return nil, ErrInvalidGrant
	}
	if prior.ClientID != client.ID {
		return nil, ErrInvalidGrant
	}

	if len(req.Scopes) > 0 && !scopeIsSubset(req.Scopes, prior.Scopes) {
		return nil, ErrInvalidScope
	}
	effective := narrowScopes(req.Scopes, prior.Scopes)

	var pair *domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.AccessTokens().RevokeByRefreshHashOnce(ctx, fp); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		var err error
		pair, err = s.mintPair(ctx, tx, now, client.ID, grantID, prior.UserID, effective, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// exchangeClientCredentials issues a token for the client itself. There is no
// resource owner to re-consent, so no refresh token is ever issued.
func (s *GrantService) exchangeClientCredentials(
	ctx context.Context,
	client domain.Client,
	grantID int64,
	req GrantRequest,
) (*domain.TokenPair, error) {
	return s.mintPair(ctx, s.Store, time.Now(), client.ID, grantID, nil, dedupe(req.Scopes), false)
}

// exchangePassword authenticates the resource owner through the external
// collaborator and issues a full token pair.
func (s *GrantService) exchangePassword(
	ctx context.Context,
	client domain.Client,
	grantID int64,
	req GrantRequest,
) (*domain.TokenPair, error) {
	if !s.EnablePasswordGrant || s.Authenticator == nil {
		return nil, ErrUnsupportedGrantType
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, ErrInvalidRequest
	}

	userID, err := s.Authenticator.Authenticate(ctx, username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	return s.mintPair(ctx, s.Store, time.Now(), client.ID, grantID, &userID, dedupe(req.Scopes), true)
}

// exchangeImplicit issues an access-token-only response for clients whose
// declared response type permits implicit issuance. Browser-resident clients
// must not receive long-lived refresh credentials.
func (s *GrantService) exchangeImplicit(
	ctx context.Context,
	client domain.Client,
	grantID int64,
	req GrantRequest,
) (*domain.TokenPair, error) {
	if !s.EnableImplicitGrant {
		return nil, ErrUnsupportedGrantType
	}

	if client.ResponseType != domain.GrantImplicit {
		return nil, ErrUnauthorizedClient
	}

	redirectURI := strings.TrimSpace(req.RedirectURI)
	if redirectURI == "" {
		return nil, ErrInvalidRequest
	}
	if !s.Clients.IsRedirectURIRegistered(client, redirectURI) {
		return nil, ErrInvalidGrant
	}

	return s.mintPair(ctx, s.Store, time.Now(), client.ID, grantID, nil, dedupe(req.Scopes), false)
}

// mintPair generates the opaque token values, persists the pair, and returns
// the raw values. It retries on fingerprint collisions against the global
// uniqueness invariant; after the bounded attempts the store error surfaces
// as a server error.
func (s *GrantService) mintPair(
	ctx context.Context,
	st store.Store,
	now time.Time,
	clientID string,
	grantID int64,
	userID *string,
	scopes []string,
	withRefresh bool,
) (*domain.TokenPair, error) {
	var lastErr error

	for attempt := 0; attempt < tokenIssueAttempts; attempt++ {
		accessOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return nil, err
		}

		row := domain.AccessToken{
			ID:        idx.New().String(),
			ClientID:  clientID,
			GrantID:   grantID,
			UserID:    userID,
			TokenHash: cryptox.FingerprintToken(accessOpaque),
			Scopes:    scopes,
			IssuedAt:  now,
			ExpiresAt: now.Add(s.AccessTTL),
		}

		var refreshOpaque string
		if withRefresh {
			refreshOpaque, err = cryptox.GenerateToken(cryptox.TokenSize256)
			if err != nil {
				return nil, err
			}
			// A refresh token lives at least as long as the access token
			// it renews, whatever the configured TTLs say.
			refreshExpiry := now.Add(s.RefreshTTL)
			if refreshExpiry.Before(row.ExpiresAt) {
				refreshExpiry = row.ExpiresAt
			}
			row.RefreshTokenHash = cryptox.FingerprintToken(refreshOpaque)
			row.RefreshExpiresAt = &refreshExpiry
		}

		err = st.AccessTokens().CreateAccessToken(ctx, row)
		if err == nil {
			return &domain.TokenPair{
				AccessToken:  accessOpaque,
				RefreshToken: refreshOpaque,
				ExpiresIn:    s.AccessTTL,
				Scope:        strings.Join(scopes, " "),
			}, nil
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return nil, err
		}

		slogx.FromContext(ctx).Warn("token fingerprint collision, retrying",
			slog.Int("attempt", attempt+1),
		)
		lastErr = err
	}

	return nil, fmt.Errorf("token issuance exhausted %d attempts: %w", tokenIssueAttempts, lastErr)
}
