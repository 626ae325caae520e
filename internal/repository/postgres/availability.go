package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okonomi/yoyaku-go/internal/domain"
	"github.com/okonomi/yoyaku-go/internal/repository"
)

type AvailabilityRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *AvailabilityRepo) With(db DB) *AvailabilityRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *AvailabilityRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Upsert writes the (resource, date) calendar entry, last write wins. Every
// writer has already resolved conflicts through the reservation exclusivity
// check, so overwriting is safe here. A resale entry without a discount in
// [5, 50] fails with repository.ErrInvalidDiscount.
func (r *AvailabilityRepo) Upsert(
	ctx context.Context,
	resourceID int64,
	date time.Time,
	status domain.AvailabilityStatus,
	discountPercent int,
	notes string,
) error {
	const op = "postgres.AvailabilityRepo.Upsert"

	if status == domain.AvailabilityResale &&
		(discountPercent < domain.MinResaleDiscount || discountPercent > domain.MaxResaleDiscount) {
		return fmt.Errorf("%s:%w", op, repository.ErrInvalidDiscount)
	}

	db := r.handle()

	var discount *int
	if status == domain.AvailabilityResale {
		discount = &discountPercent
	}

	if _, err := db.Exec(ctx,
		`INSERT INTO availability (resource_id, date, status, resale_discount_percent, notes)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (resource_id, date) DO UPDATE
		 SET status = EXCLUDED.status,
		     resale_discount_percent = EXCLUDED.resale_discount_percent,
		     notes = EXCLUDED.notes,
		     updated_at = now()`,
		resourceID, domain.DateOf(date), status, discount, notes,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// Clear resets the slot to available by deleting the row. Readers treat a
// missing row and an explicit available row as the same thing.
func (r *AvailabilityRepo) Clear(ctx context.Context, resourceID int64, date time.Time) error {
	const op = "postgres.AvailabilityRepo.Clear"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`DELETE FROM availability WHERE resource_id = $1 AND date = $2`,
		resourceID, domain.DateOf(date),
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// Apply executes the availability side of a transition plan: clear for
// available, upsert otherwise.
func (r *AvailabilityRepo) Apply(
	ctx context.Context,
	resourceID int64,
	date time.Time,
	write domain.AvailabilityWrite,
) error {
	if write.Status == domain.AvailabilityAvailable {
		return r.Clear(ctx, resourceID, date)
	}
	return r.Upsert(ctx, resourceID, date, write.Status, write.DiscountPercent, write.Notes)
}

// Get retrieves the record for one slot.
//
// Returns:
//   - *domain.AvailabilityRecord: the record when present.
//   - error: repository.ErrNotFound when the slot has no record (available).
func (r *AvailabilityRepo) Get(ctx context.Context, resourceID int64, date time.Time) (*domain.AvailabilityRecord, error) {
	const op = "postgres.AvailabilityRepo.Get"

	db := r.handle()

	rec, err := scanAvailabilityRow(db.QueryRow(ctx,
		`SELECT resource_id, date, status, resale_discount_percent, notes, updated_at
		 FROM availability
		 WHERE resource_id = $1 AND date = $2`,
		resourceID, domain.DateOf(date),
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return rec, nil
}

// GetRange lists records for [dateStart, dateEnd) ordered by date.
func (r *AvailabilityRepo) GetRange(
	ctx context.Context,
	resourceID int64,
	dateStart, dateEnd time.Time,
) ([]domain.AvailabilityRecord, error) {
	const op = "postgres.AvailabilityRepo.GetRange"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT resource_id, date, status, resale_discount_percent, notes, updated_at
		 FROM availability
		 WHERE resource_id = $1 AND date >= $2 AND date < $3
		 ORDER BY date`,
		resourceID, domain.DateOf(dateStart), domain.DateOf(dateEnd),
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.AvailabilityRecord
	for rows.Next() {
		rec, err := scanAvailabilityRow(rows)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAvailabilityRow(row rowScanner) (*domain.AvailabilityRecord, error) {
	var (
		rec      domain.AvailabilityRecord
		discount *int
	)
	if err := row.Scan(
		&rec.ResourceID, &rec.Date, &rec.Status, &discount, &rec.Notes, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if discount != nil {
		rec.ResaleDiscountPercent = *discount
	}
	return &rec, nil
}
