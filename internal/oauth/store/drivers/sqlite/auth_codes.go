package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/copperline/grantd/internal/oauth/domain"
	"github.com/copperline/grantd/internal/oauth/store"
)

type authCodesRepo struct {
	db dbtx
}

func (r *authCodesRepo) CreateAuthCode(ctx context.Context, code domain.AuthCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_codes (id, client_id, user_id, code_hash, redirect_uri, scope, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		code.ID,
		code.ClientID,
		mapOptionalString(code.UserID),
		code.CodeHash,
		code.RedirectURI,
		joinScopes(code.Scopes),
		code.ExpiresAt.UTC(),
		code.CreatedAt.UTC(),
	)
	return mapConstraint(err)
}

// ConsumeAuthCode is a single conditional UPDATE: the validity checks and the
// consumed marker are one atomic step, so concurrent redemptions of the same
// code produce exactly one winner. Zero rows affected means the code is
// missing, expired, already consumed, owned by another client, or was minted
// for a different redirect URI; all of those collapse to store.ErrNotFound.
func (r *authCodesRepo) ConsumeAuthCode(ctx context.Context, codeHash, clientID, redirectURI string, now time.Time) (domain.AuthCode, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE auth_codes
		SET consumed_at = ?
		WHERE code_hash = ?
		  AND consumed_at IS NULL
		  AND client_id = ?
		  AND redirect_uri = ?
		  AND expires_at > ?`,
		now.UTC(), codeHash, clientID, redirectURI, now.UTC())
	if err != nil {
		return domain.AuthCode{}, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.AuthCode{}, err
	}
	if affected == 0 {
		return domain.AuthCode{}, store.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, user_id, code_hash, redirect_uri, scope, expires_at, consumed_at, created_at
		FROM auth_codes
		WHERE code_hash = ?`, codeHash)

	return scanAuthCode(row)
}

func (r *authCodesRepo) DeleteExpiredAuthCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM auth_codes WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanAuthCode(row *sql.Row) (domain.AuthCode, error) {
	var (
		code       domain.AuthCode
		userID     sql.NullString
		scope      string
		consumedAt sql.NullTime
	)
	err := row.Scan(
		&code.ID,
		&code.ClientID,
		&userID,
		&code.CodeHash,
		&code.RedirectURI,
		&scope,
		&code.ExpiresAt,
		&consumedAt,
		&code.CreatedAt,
	)
	if err != nil {
		return domain.AuthCode{}, mapNotFound(err)
	}

	code.UserID = mapNullStringPtr(userID)
	code.Scopes = splitScopes(scope)
	code.ConsumedAt = mapNullTimePtr(consumedAt)
	return code, nil
}
