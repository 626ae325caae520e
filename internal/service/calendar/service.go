package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okonomi/yoyaku-go/internal/domain"
	redisx "github.com/okonomi/yoyaku-go/internal/redis"
	"github.com/okonomi/yoyaku-go/internal/repository"
	postgresrepo "github.com/okonomi/yoyaku-go/internal/repository/postgres"
	redisrepo "github.com/okonomi/yoyaku-go/internal/repository/redis"
)

type Config struct {
	CacheTTL time.Duration
}

// Service is the read-only calendar projection. It never writes to either
// store; an inconsistent day is surfaced as needs-reconciliation, repairing
// it is a deliberate owner action elsewhere.
type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &Service{store: store, cache: cache, cfg: cfg}
}

// ResourceMonth projects one resource's month: one entry per day with the
// availability status, the occupying reservation and reconciliation flags.
func (s *Service) ResourceMonth(ctx context.Context, resourceID int64, year int, month time.Month) (*domain.ResourceCalendar, error) {
	const op = "service.calendar.ResourceMonth"

	if month < time.January || month > time.December || year < 2000 || year > 2200 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidMonth)
	}

	key := redisx.KeyResourceCalendar(resourceID, year, int(month))

	cal, err := redisrepo.GetOrSetJSON(ctx, s.cache, key, s.cfg.CacheTTL,
		func(ctx context.Context) (*domain.ResourceCalendar, error) {
			return s.loadResourceMonth(ctx, resourceID, year, month)
		})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrResourceNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return cal, nil
}

// OwnerMonth aggregates the per-day view across every resource the owner
// manages, for the combined operational calendar.
func (s *Service) OwnerMonth(ctx context.Context, ownerID int64, year int, month time.Month) ([]domain.ResourceCalendar, error) {
	const op = "service.calendar.OwnerMonth"

	if month < time.January || month > time.December || year < 2000 || year > 2200 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidMonth)
	}

	key := redisx.KeyOwnerCalendar(ownerID, year, int(month))

	cals, err := redisrepo.GetOrSetJSON(ctx, s.cache, key, s.cfg.CacheTTL,
		func(ctx context.Context) ([]domain.ResourceCalendar, error) {
			resources, err := s.store.Ownership().ListOwned(ctx, ownerID)
			if err != nil {
				return nil, err
			}

			out := make([]domain.ResourceCalendar, 0, len(resources))
			for _, resource := range resources {
				cal, err := s.buildMonth(ctx, resource, year, month)
				if err != nil {
					return nil, err
				}
				out = append(out, *cal)
			}
			return out, nil
		})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return cals, nil
}

func (s *Service) loadResourceMonth(ctx context.Context, resourceID int64, year int, month time.Month) (*domain.ResourceCalendar, error) {
	resource, err := s.store.Ownership().GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return s.buildMonth(ctx, *resource, year, month)
}

func (s *Service) buildMonth(ctx context.Context, resource domain.Resource, year int, month time.Month) (*domain.ResourceCalendar, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	records, err := s.store.Availability().GetRange(ctx, resource.ID, from, to)
	if err != nil {
		return nil, err
	}

	reservations, err := s.store.Calendar().ReservationsInRange(ctx, resource.ID, from, to)
	if err != nil {
		return nil, err
	}

	return &domain.ResourceCalendar{
		Resource: resource,
		Year:     year,
		Month:    month,
		Days:     domain.BuildMonth(resource.Type, year, month, records, reservations),
	}, nil
}
