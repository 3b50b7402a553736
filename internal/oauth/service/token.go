package service

import (
	"context"
	"errors"
	"time"

	"github.com/copperline/grantd/internal/oauth/domain"
	"github.com/copperline/grantd/internal/oauth/store"
	"github.com/copperline/grantd/pkg/cryptox"
)

// TokenService answers questions about previously issued access tokens:
// resource servers call Validate to authorize a request, clients call Revoke
// to discard credentials early.
type TokenService struct {
	Store store.Store
}

// Validate resolves an opaque access token to its metadata. It returns
// ErrTokenInvalid for anything a caller must treat as unusable: unknown
// value, revoked, or past expiry. The distinction is not surfaced.
func (s *TokenService) Validate(ctx context.Context, tokenValue string) (*domain.TokenInfo, error) {
	if tokenValue == "" {
		return nil, ErrTokenInvalid
	}

	row, err := s.Store.AccessTokens().GetAccessTokenByHash(ctx, cryptox.FingerprintToken(tokenValue))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	now := time.Now()
	if row.Revoked || !now.Before(row.ExpiresAt) {
		return nil, ErrTokenInvalid
	}

	return &domain.TokenInfo{
		ClientID:     row.ClientID,
		UserID:       row.UserID,
		Scopes:       row.Scopes,
		ExpiresAt:    row.ExpiresAt,
		RemainingTTL: row.ExpiresAt.Sub(now),
	}, nil
}

// Revoke invalidates the token pair the presented value belongs to. The value
// may be either the access token or its refresh token; both sides of the pair
// die together. Revoking an unknown or already revoked value is a no-op, per
// RFC 7009.
func (s *TokenService) Revoke(ctx context.Context, tokenValue string) error {
	if tokenValue == "" {
		return nil
	}

	err := s.Store.AccessTokens().RevokeAccessToken(ctx, cryptox.FingerprintToken(tokenValue))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}
