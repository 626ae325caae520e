package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okonomi/yoyaku-go/internal/domain"
)

// CalendarRepo serves the read-only projection queries. It never writes.
type CalendarRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CalendarRepo) With(db DB) *CalendarRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CalendarRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// ReservationsInRange lists every reservation of a resource with a date in
// [dateStart, dateEnd), regardless of status. The projector needs terminal
// ones too for the informational counts.
func (r *CalendarRepo) ReservationsInRange(
	ctx context.Context,
	resourceID int64,
	dateStart, dateEnd time.Time,
) ([]domain.Reservation, error) {
	const op = "postgres.CalendarRepo.ReservationsInRange"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE resource_id = $1 AND date >= $2 AND date < $3
		 ORDER BY date, created_at`,
		resourceID, domain.DateOf(dateStart), domain.DateOf(dateEnd),
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var (
			res              domain.Reservation
			adults, children *int
		)
		if err := rows.Scan(
			&res.ID, &res.ResourceID, &res.ResourceType, &res.CustomerID,
			&res.Date, &res.Status, &res.TotalPrice, &res.DepositPaid,
			&adults, &children, &res.Notes, &res.Origin,
			&res.CreatedAt, &res.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
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
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
