package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/copperline/grantd/internal/oauth/domain"
	"github.com/copperline/grantd/internal/oauth/store"
)

type accessTokensRepo struct {
	db dbtx
}

func (r *accessTokensRepo) CreateAccessToken(ctx context.Context, t domain.AccessToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_tokens
			(id, client_id, grant_id, user_id, token_hash, refresh_token_hash, scope, issued_at, expires_at, refresh_expires_at, revoked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		t.ID,
		t.ClientID,
		t.GrantID,
		mapOptionalString(t.UserID),
		t.TokenHash,
		mapStringNull(t.RefreshTokenHash),
		joinScopes(t.Scopes),
		t.IssuedAt.UTC(),
		t.ExpiresAt.UTC(),
		mapOptionalTime(t.RefreshExpiresAt),
	)
	return mapConstraint(err)
}

func (r *accessTokensRepo) GetAccessTokenByHash(ctx context.Context, hash string) (domain.AccessToken, error) {
	return r.getBy(ctx, `token_hash`, hash)
}

func (r *accessTokensRepo) GetAccessTokenByRefreshHash(ctx context.Context, hash string) (domain.AccessToken, error) {
	return r.getBy(ctx, `refresh_token_hash`, hash)
}

func (r *accessTokensRepo) RevokeAccessToken(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE access_tokens
		SET revoked = 1
		WHERE token_hash = ? OR refresh_token_hash = ?`, hash, hash)
	return err
}

// RevokeByRefreshHashOnce guards on revoked = 0 and checks the row count, so
// two concurrent rotations of the same refresh token serialize to one winner.
func (r *accessTokensRepo) RevokeByRefreshHashOnce(ctx context.Context, refreshHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_tokens
		SET revoked = 1
		WHERE refresh_token_hash = ? AND revoked = 0`, refreshHash)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *accessTokensRepo) DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM access_tokens
		WHERE expires_at <= ?
		  AND (refresh_token_hash IS NULL OR refresh_expires_at <= ?)`,
		now.UTC(), now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *accessTokensRepo) getBy(ctx context.Context, column, value string) (domain.AccessToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, grant_id, user_id, token_hash, refresh_token_hash, scope, issued_at, expires_at, refresh_expires_at, revoked
		FROM access_tokens
		WHERE `+column+` = ?`, value)

	var (
		t                domain.AccessToken
		userID           sql.NullString
		refreshHash      sql.NullString
		scope            string
		refreshExpiresAt sql.NullTime
	)
	err := row.Scan(
		&t.ID,
		&t.ClientID,
		&t.GrantID,
		&userID,
		&t.TokenHash,
		&refreshHash,
		&scope,
		&t.IssuedAt,
		&t.ExpiresAt,
		&refreshExpiresAt,
		&t.Revoked,
	)
	if err != nil {
		return domain.AccessToken{}, mapNotFound(err)
	}

	t.UserID = mapNullStringPtr(userID)
	t.RefreshTokenHash = mapNullString(refreshHash)
	t.Scopes = splitScopes(scope)
	t.RefreshExpiresAt = mapNullTimePtr(refreshExpiresAt)
	return t, nil
}
