package sqlite

import (
	"context"

	"github.com/copperline/grantd/internal/oauth/domain"
	"github.com/copperline/grantd/pkg/idx"
)

type clientsRepo struct {
	db dbtx
}

func (r *clientsRepo) GetClientByIdentifier(ctx context.Context, identifier string) (domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, identifier, secret, response_type, created_at, updated_at
		FROM clients
		WHERE identifier = ?`, identifier)

	var c domain.Client
	if err := row.Scan(&c.ID, &c.Identifier, &c.Secret, &c.ResponseType, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Client{}, mapNotFound(err)
	}

	uris, err := r.redirectURIs(ctx, c.ID)
	if err != nil {
		return domain.Client{}, err
	}
	c.RedirectURIs = uris

	return c, nil
}

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (id, identifier, secret, response_type)
		VALUES (?, ?, ?, ?)`,
		c.ID, c.Identifier, c.Secret, c.ResponseType)
	if err != nil {
		return mapConstraint(err)
	}

	for _, uri := range c.RedirectURIs {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO client_redirect_uris (id, client_id, redirect_uri)
			VALUES (?, ?, ?)`,
			idx.New().String(), c.ID, uri)
		if err != nil {
			return mapConstraint(err)
		}
	}

	return nil
}

func (r *clientsRepo) redirectURIs(ctx context.Context, clientID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT redirect_uri
		FROM client_redirect_uris
		WHERE client_id = ?
		ORDER BY id`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, err
		}
		uris = append(uris, uri)
	}
	return uris, rows.Err()
}
