package postgres

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewStore(pool *pgxpool.Pool, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 500 * time.Millisecond
	}
	return &Store{pool: pool, lockTimeout: lockTimeout}
}

func (s *Store) RunTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// RunKeyed runs fn inside a transaction serialized on the given
// (resourceID, date) keys. Each key maps to an advisory xact lock, taken in
// sorted order, under a bounded lock_timeout so contention surfaces as
// repository.ErrBusy instead of blocking the caller indefinitely.
func (s *Store) RunKeyed(
	ctx context.Context,
	keys []DateKey,
	fn func(ctx context.Context, tx DB) error,
) error {
	const op = "postgres.Store.RunKeyed"

	locks := make([]int64, 0, len(keys))
	for _, k := range keys {
		locks = append(locks, k.lockID())
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i] < locks[j] })

	return s.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		if _, err := tx.Exec(ctx, fmt.Sprintf(
			"SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds(),
		)); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		for _, id := range locks {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, id); err != nil {
				return fmt.Errorf("%s:%w", op, translateDBErr(err))
			}
		}

		return fn(ctx, tx)
	})
}

// DateKey identifies one (resource, date) slot of the availability calendar.
type DateKey struct {
	ResourceID int64
	Date       time.Time
}

func (k DateKey) lockID() int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s", k.ResourceID, k.Date.UTC().Format("2006-01-02"))
	return int64(h.Sum64())
}

// CoversSlot reports whether keys include the (resourceID, date) slot.
// Lock keys are chosen from a read taken before the transaction starts, so
// callers must re-check the locked re-read against them: a row whose slot
// moved in between is not protected by the locks actually held.
func CoversSlot(keys []DateKey, resourceID int64, date time.Time) bool {
	day := date.UTC().Format("2006-01-02")
	for _, k := range keys {
		if k.ResourceID == resourceID && k.Date.UTC().Format("2006-01-02") == day {
			return true
		}
	}
	return false
}

func (s *Store) Reservations() *ReservationRepo { return &ReservationRepo{pool: s.pool} }
func (s *Store) Availability() *AvailabilityRepo {
	return &AvailabilityRepo{pool: s.pool}
}
func (s *Store) Calendar() *CalendarRepo   { return &CalendarRepo{pool: s.pool} }
func (s *Store) Ownership() *OwnershipRepo { return &OwnershipRepo{pool: s.pool} }
