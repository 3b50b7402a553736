package sqlite

import (
	"context"

	"github.com/copperline/grantd/internal/oauth/domain"
)

type grantTypesRepo struct {
	db dbtx
}

func (r *grantTypesRepo) ListGrantTypes(ctx context.Context) ([]domain.GrantType, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM grant_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []domain.GrantType
	for rows.Next() {
		var gt domain.GrantType
		if err := rows.Scan(&gt.ID, &gt.Name); err != nil {
			return nil, err
		}
		types = append(types, gt)
	}
	return types, rows.Err()
}
