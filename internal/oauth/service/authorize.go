package service

import (
	"context"
	"strings"
	"time"

	"github.com/copperline/grantd/internal/oauth/domain"
	"github.com/copperline/grantd/internal/oauth/store"
	"github.com/copperline/grantd/pkg/cryptox"
	"github.com/copperline/grantd/pkg/idx"
)

// DefaultCodeTTL is how long an authorization code stays redeemable. RFC 6749
// recommends a maximum of ten minutes; five leaves headroom for clock skew.
const DefaultCodeTTL = 5 * time.Minute

// AuthorizeRequest carries one authorization-endpoint request. Either UserID
// is pre-resolved by a trusted front end, or Username/Password are checked
// against the Authenticator.
type AuthorizeRequest struct {
	ResponseType string
	ClientID     string
	RedirectURI  string
	Scopes       []string

	UserID   string
	Username string
	Password string
}

// AuthorizeResult is the successful outcome: the raw single-use code and the
// redirect URI it is bound to.
type AuthorizeResult struct {
	Code        string
	RedirectURI string
	ExpiresAt   time.Time
}

// AuthorizeService backs the authorization endpoint: it authenticates the
// resource owner, validates the client's redirect target, and mints the
// single-use authorization code that the token endpoint later redeems.
type AuthorizeService struct {
	Store         store.Store
	Clients       *ClientService
	Authenticator UserAuthenticator

	CodeTTL time.Duration
}

func (s *AuthorizeService) codeTTL() time.Duration {
	if s.CodeTTL > 0 {
		return s.CodeTTL
	}
	return DefaultCodeTTL
}

// IssueAuthorizationCode validates the request and persists a new code bound
// to the client, user, scope set, and the exact redirect URI presented. Only
// the code's fingerprint is stored.
func (s *AuthorizeService) IssueAuthorizationCode(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	if strings.TrimSpace(req.ResponseType) != "code" {
		return nil, ErrUnsupportedGrantType
	}

	client, err := s.Clients.LookupByIdentifier(ctx, strings.TrimSpace(req.ClientID))
	if err != nil {
		return nil, err
	}
	if client.ResponseType != "code" {
		return nil, ErrUnauthorizedClient
	}

	redirectURI := strings.TrimSpace(req.RedirectURI)
	if redirectURI == "" || !s.Clients.IsRedirectURIRegistered(client, redirectURI) {
		return nil, ErrInvalidRequest
	}

	userID, err := s.resolveUser(ctx, req)
	if err != nil {
		return nil, err
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt := now.Add(s.codeTTL())

	err = s.Store.AuthCodes().CreateAuthCode(ctx, domain.AuthCode{
		ID:          idx.New().String(),
		ClientID:    client.ID,
		UserID:      userID,
		CodeHash:    cryptox.FingerprintToken(code),
		RedirectURI: redirectURI,
		Scopes:      dedupe(req.Scopes),
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
	})
	if err != nil {
		return nil, err
	}

	return &AuthorizeResult{
		Code:        code,
		RedirectURI: redirectURI,
		ExpiresAt:   expiresAt,
	}, nil
}

// resolveUser returns the user the code is issued for. A pre-resolved UserID
// is trusted as-is; otherwise the credentials go through the Authenticator.
func (s *AuthorizeService) resolveUser(ctx context.Context, req AuthorizeRequest) (*string, error) {
	if req.UserID != "" {
		uid := req.UserID
		return &uid, nil
	}

	if s.Authenticator == nil || req.Username == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	uid, err := s.Authenticator.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return &uid, nil
}
