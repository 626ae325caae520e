package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okonomi/yoyaku-go/internal/domain"
)

// OwnershipRepo backs the resource-ownership collaborator: who may mutate
// reservations on a resource, and which resources an owner's combined
// calendar spans.
type OwnershipRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *OwnershipRepo) With(db DB) *OwnershipRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *OwnershipRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// GetResource retrieves a resource by id.
//
// Returns:
//   - *domain.Resource: the resource when found.
//   - error: repository.ErrNotFound if the id is unknown.
func (r *OwnershipRepo) GetResource(ctx context.Context, id int64) (*domain.Resource, error) {
	const op = "postgres.OwnershipRepo.GetResource"

	db := r.handle()

	var res domain.Resource
	err := db.QueryRow(ctx,
		`SELECT id, owner_id, type, name FROM resources WHERE id = $1`,
		id,
	).Scan(&res.ID, &res.OwnerID, &res.Type, &res.Name)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &res, nil
}

// ListOwned lists every resource the owner manages, for the combined calendar.
func (r *OwnershipRepo) ListOwned(ctx context.Context, ownerID int64) ([]domain.Resource, error) {
	const op = "postgres.OwnershipRepo.ListOwned"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, owner_id, type, name FROM resources WHERE owner_id = $1 ORDER BY id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Resource
	for rows.Next() {
		var res domain.Resource
		if err := rows.Scan(&res.ID, &res.OwnerID, &res.Type, &res.Name); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
