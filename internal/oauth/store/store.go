package store

import (
	"context"
	"errors"
	"time"

	"github.com/copperline/grantd/internal/oauth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Clients() Clients
	GrantTypes() GrantTypes
	AuthCodes() AuthCodes
	AccessTokens() AccessTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. This is the
	// recommended way to run multi-step operations that must be atomic
	// (code redemption + token issuance, refresh rotation).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Clients interface {
	// GetClientByIdentifier fetches a client by its public identifier,
	// including its registered redirect URIs.
	GetClientByIdentifier(ctx context.Context, identifier string) (domain.Client, error)

	// CreateClient inserts a new client and its redirect URIs (id is ULID).
	CreateClient(ctx context.Context, c domain.Client) error
}

type GrantTypes interface {
	// ListGrantTypes returns the static grant type reference rows.
	ListGrantTypes(ctx context.Context) ([]domain.GrantType, error)
}

type AuthCodes interface {
	// CreateAuthCode stores a freshly minted authorization code.
	CreateAuthCode(ctx context.Context, code domain.AuthCode) error

	// ConsumeAuthCode atomically marks the code identified by codeHash as
	// consumed and returns it, but only if it is unconsumed, unexpired, owned
	// by clientID, and was minted for exactly redirectURI. Every failure mode
	// collapses to ErrNotFound so callers cannot distinguish expired from
	// consumed from mismatched. The check and the consume are a single
	// conditional update; concurrent redemptions of the same code yield
	// exactly one success.
	ConsumeAuthCode(ctx context.Context, codeHash, clientID, redirectURI string, now time.Time) (domain.AuthCode, error)

	// DeleteExpiredAuthCodes is housekeeping. It returns the number of rows
	// removed.
	DeleteExpiredAuthCodes(ctx context.Context, now time.Time) (int64, error)
}

type AccessTokens interface {
	// CreateAccessToken inserts a new token pair row. Returns
	// ErrAlreadyExists when a token or refresh token fingerprint collides
	// with an existing row; callers retry with fresh values.
	CreateAccessToken(ctx context.Context, t domain.AccessToken) error

	// GetAccessTokenByHash returns the row holding the given access token
	// fingerprint.
	GetAccessTokenByHash(ctx context.Context, hash string) (domain.AccessToken, error)

	// GetAccessTokenByRefreshHash returns the row holding the given refresh
	// token fingerprint.
	GetAccessTokenByRefreshHash(ctx context.Context, hash string) (domain.AccessToken, error)

	// RevokeAccessToken marks the row matching hash (as either token or
	// refresh token fingerprint) revoked. Idempotent; unknown hashes are not
	// an error.
	RevokeAccessToken(ctx context.Context, hash string) error

	// RevokeByRefreshHashOnce flips revoked on the row holding the given
	// refresh fingerprint, but only if it is not already revoked. Returns
	// ErrNotFound when no unrevoked row matched, which makes refresh
	// rotation single-use under concurrent replay.
	RevokeByRefreshHashOnce(ctx context.Context, refreshHash string) error

	// DeleteExpiredAccessTokens removes rows whose access and refresh
	// lifetimes have both passed (retention housekeeping). It returns the
	// number of rows removed.
	DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int64, error)
}
