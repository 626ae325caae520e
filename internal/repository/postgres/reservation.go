package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okonomi/yoyaku-go/internal/domain"
	"github.com/okonomi/yoyaku-go/internal/repository"
)

type ReservationRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ReservationRepo) With(db DB) *ReservationRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ReservationRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const reservationColumns = `id, resource_id, resource_type, customer_id, date, status,
	total_price, deposit_paid, guest_adults, guest_children, notes, origin,
	created_at, updated_at`

// Insert stores a new reservation. Timestamps are assigned by the database
// and written back into res.
func (r *ReservationRepo) Insert(ctx context.Context, res *domain.Reservation) error {
	const op = "postgres.ReservationRepo.Insert"

	db := r.handle()

	var adults, children *int
	if res.Guests != nil {
		adults = &res.Guests.Adults
		children = &res.Guests.Children
	}

	err := db.QueryRow(ctx,
		`INSERT INTO reservations
			(id, resource_id, resource_type, customer_id, date, status,
			 total_price, deposit_paid, guest_adults, guest_children, notes, origin)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at, updated_at`,
		res.ID, res.ResourceID, res.ResourceType, res.CustomerID,
		domain.DateOf(res.Date), res.Status, res.TotalPrice, res.DepositPaid,
		adults, children, res.Notes, res.Origin,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// Get retrieves a reservation by id.
//
// Returns:
//   - *domain.Reservation: the reservation when found.
//   - error: repository.ErrNotFound if the id is unknown.
func (r *ReservationRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	const op = "postgres.ReservationRepo.Get"

	res, err := r.get(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return res, nil
}

// GetForUpdate retrieves a reservation and row-locks it. Only meaningful
// inside a transaction handle obtained from Store.RunKeyed.
func (r *ReservationRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	const op = "postgres.ReservationRepo.GetForUpdate"

	res, err := r.get(ctx, id, true)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return res, nil
}

func (r *ReservationRepo) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Reservation, error) {
	db := r.handle()

	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}

	var (
		res              domain.Reservation
		adults, children *int
	)
	err := db.QueryRow(ctx, q, id).Scan(
		&res.ID, &res.ResourceID, &res.ResourceType, &res.CustomerID,
		&res.Date, &res.Status, &res.TotalPrice, &res.DepositPaid,
		&adults, &children, &res.Notes, &res.Origin,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if adults != nil || children != nil {
		res.Guests = &domain.GuestCounts{}
		if adults != nil {
			res.Guests.Adults = *adults
		}
		if children != nil {
			res.Guests.Children = *children
		}
	}

	return &res, nil
}

// UpdateStatus writes the new status and bumps updated_at.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, to domain.Status) error {
	const op = "postgres.ReservationRepo.UpdateStatus"

	db := r.handle()

	ct, err := db.Exec(ctx,
		`UPDATE reservations SET status = $2, updated_at = now() WHERE id = $1`,
		id, to,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// HasAccepted reports whether an accepted reservation other than excludeID
// occupies the (resource, date) slot. Called at commit time inside the keyed
// transaction; the partial unique index backs it up against anything that
// slips through.
func (r *ReservationRepo) HasAccepted(
	ctx context.Context,
	resourceID int64,
	date time.Time,
	excludeID uuid.UUID,
) (bool, error) {
	const op = "postgres.ReservationRepo.HasAccepted"

	db := r.handle()

	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM reservations
			WHERE resource_id = $1 AND date = $2 AND status = 'accepted' AND id <> $3
		 )`,
		resourceID, domain.DateOf(date), excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return exists, nil
}

// UpdateDetails applies the external-adapter edit path: date, price, deposit
// flag, guest counts and notes change without a status transition.
func (r *ReservationRepo) UpdateDetails(ctx context.Context, res *domain.Reservation) error {
	const op = "postgres.ReservationRepo.UpdateDetails"

	db := r.handle()

	var adults, children *int
	if res.Guests != nil {
		adults = &res.Guests.Adults
		children = &res.Guests.Children
	}

	err := db.QueryRow(ctx,
		`UPDATE reservations
		 SET date = $2, total_price = $3, deposit_paid = $4,
		     guest_adults = $5, guest_children = $6, notes = $7, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		res.ID, domain.DateOf(res.Date), res.TotalPrice, res.DepositPaid,
		adults, children, res.Notes,
	).Scan(&res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// SetDepositPaid flips the owner's manual reconciliation flag.
func (r *ReservationRepo) SetDepositPaid(ctx context.Context, id uuid.UUID, paid bool) error {
	const op = "postgres.ReservationRepo.SetDepositPaid"

	db := r.handle()

	ct, err := db.Exec(ctx,
		`UPDATE reservations SET deposit_paid = $2, updated_at = now() WHERE id = $1`,
		id, paid,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// Delete removes a reservation row. Status history rows cascade.
func (r *ReservationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.ReservationRepo.Delete"

	db := r.handle()

	ct, err := db.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// AddStatusChange appends a history row for a committed transition.
func (r *ReservationRepo) AddStatusChange(
	ctx context.Context,
	reservationID uuid.UUID,
	from, to domain.Status,
	actorID int64,
) error {
	const op = "postgres.ReservationRepo.AddStatusChange"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO reservation_events (reservation_id, from_status, to_status, actor_id)
		 VALUES ($1, $2, $3, $4)`,
		reservationID, from, to, actorID,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// History lists a reservation's status changes, oldest first.
func (r *ReservationRepo) History(ctx context.Context, reservationID uuid.UUID) ([]domain.StatusChange, error) {
	const op = "postgres.ReservationRepo.History"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT from_status, to_status, actor_id, created_at
		 FROM reservation_events
		 WHERE reservation_id = $1
		 ORDER BY created_at, id`,
		reservationID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.StatusChange
	for rows.Next() {
		var sc domain.StatusChange
		if err := rows.Scan(&sc.From, &sc.To, &sc.ActorID, &sc.At); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
