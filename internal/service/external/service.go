package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/okonomi/yoyaku-go/internal/domain"
	redisx "github.com/okonomi/yoyaku-go/internal/redis"
	"github.com/okonomi/yoyaku-go/internal/repository"
	postgresrepo "github.com/okonomi/yoyaku-go/internal/repository/postgres"
	redisrepo "github.com/okonomi/yoyaku-go/internal/repository/redis"
	"github.com/okonomi/yoyaku-go/internal/uow"
)

// Service registers reservations that never went through the customer-facing
// request flow: phone bookings, walk-ins. Creation runs the same exclusivity
// check as the normal accept path and books the slot in the same atomic unit.
type Service struct {
	store   *postgresrepo.Store
	cache   *redisrepo.Cache
	pubsub  *redisx.CalendarPubSub
	limiter *redisrepo.SlidingWindowLimiter
	uow     *uow.UoW
	logger  *slog.Logger
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisx.CalendarPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:   store,
		cache:   cache,
		pubsub:  pubsub,
		limiter: limiter,
		uow:     uow.NewUoW(store),
		logger:  logger,
	}
}

// CreateInput is an owner-entered walk-in booking. Contact details travel
// encoded in the notes; the synthetic customer id is the owner acting as a
// proxy for the real customer.
type CreateInput struct {
	ResourceID  int64
	Date        time.Time
	TotalPrice  int64
	DepositPaid bool
	Guests      *domain.GuestCounts
	Contact     *domain.ExternalContact
	Memo        string
}

// Create inserts an externally registered reservation, already accepted, and
// books its slot atomically.
//
// Returns:
//   - *domain.Reservation: the stored reservation.
//   - error: ErrConflict if an accepted reservation already occupies the date.
//   - error: ErrRateLimited when the owner registers too fast.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (*domain.Reservation, error) {
	const op = "service.external.Create"

	if in.TotalPrice < 0 {
		return nil, fmt.Errorf("%s:%w", op, domain.ErrInvalidPrice)
	}

	if s.limiter != nil {
		ok, _, retry, err := s.limiter.Allow(ctx, fmt.Sprintf("owner:%d", actorID))
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s:%w: retry in %s", op, ErrRateLimited, retry)
		}
	}

	resource, err := s.authorizeResource(ctx, actorID, in.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	guests := in.Guests
	if resource.Type == domain.ResourceService {
		guests = nil
	}

	res := &domain.Reservation{
		ID:           uuid.New(),
		ResourceID:   resource.ID,
		ResourceType: resource.Type,
		CustomerID:   actorID, // owner-proxy identity
		Date:         domain.DateOf(in.Date),
		Status:       domain.StatusAccepted,
		TotalPrice:   in.TotalPrice,
		DepositPaid:  in.DepositPaid,
		Guests:       guests,
		Notes:        domain.EncodeNotes(in.Contact, in.Memo),
		Origin:       domain.OriginExternal,
	}

	keys := []postgresrepo.DateKey{{ResourceID: res.ResourceID, Date: res.Date}}

	err = s.uow.Do(ctx, keys, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		occupied, err := s.store.Reservations().With(tx).
			HasAccepted(ctx, res.ResourceID, res.Date, res.ID)
		if err != nil {
			return err
		}
		if occupied {
			return ErrConflict
		}

		if err := s.store.Reservations().With(tx).Insert(ctx, res); err != nil {
			return err
		}

		if err := s.store.Availability().With(tx).Upsert(
			ctx, res.ResourceID, res.Date, domain.AvailabilityBooked, 0, ""); err != nil {
			return err
		}

		after(func(ctx context.Context) {
			s.afterCalendarWrite(ctx, resource, res.Date)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateRepoErr(err))
	}

	return res, nil
}

// EditInput carries the fields the external edit path may change without a
// status transition. Nil pointers leave the current value in place.
type EditInput struct {
	Date        *time.Time
	TotalPrice  *int64
	DepositPaid *bool
	Guests      *domain.GuestCounts
	Contact     *domain.ExternalContact
	Memo        *string
}

// Edit updates an externally registered reservation. A date change re-runs
// the exclusivity check against the new date and re-points the availability
// record (old slot cleared, new slot booked) in one atomic unit spanning
// both slots.
func (s *Service) Edit(ctx context.Context, actorID int64, reservationID uuid.UUID, in EditInput) (*domain.Reservation, error) {
	const op = "service.external.Edit"

	current, resource, err := s.authorizeReservation(ctx, actorID, reservationID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	keys := []postgresrepo.DateKey{{ResourceID: current.ResourceID, Date: domain.DateOf(current.Date)}}
	if in.Date != nil {
		if d := domain.DateOf(*in.Date); !d.Equal(domain.DateOf(current.Date)) {
			keys = append(keys, postgresrepo.DateKey{ResourceID: current.ResourceID, Date: d})
		}
	}

	var updated *domain.Reservation

	err = s.uow.Do(ctx, keys, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		res, err := s.store.Reservations().With(tx).GetForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Origin != domain.OriginExternal {
			return ErrNotExternal
		}

		// The lock keys came from the pre-lock read. If a concurrent edit
		// moved the reservation in between, the slot it sits on now is not
		// locked; back off and let the caller retry.
		oldDate := domain.DateOf(res.Date)
		if !postgresrepo.CoversSlot(keys, res.ResourceID, oldDate) {
			return ErrBusy
		}

		applyEdit(res, in)
		newDate := domain.DateOf(res.Date)
		dateChanged := !newDate.Equal(oldDate)

		if dateChanged && res.Status == domain.StatusAccepted {
			occupied, err := s.store.Reservations().With(tx).
				HasAccepted(ctx, res.ResourceID, newDate, res.ID)
			if err != nil {
				return err
			}
			if occupied {
				return ErrConflict
			}
		}

		if err := s.store.Reservations().With(tx).UpdateDetails(ctx, res); err != nil {
			return err
		}

		if dateChanged && res.Status == domain.StatusAccepted {
			if err := s.store.Availability().With(tx).Clear(ctx, res.ResourceID, oldDate); err != nil {
				return err
			}
			if err := s.store.Availability().With(tx).Upsert(
				ctx, res.ResourceID, newDate, domain.AvailabilityBooked, 0, ""); err != nil {
				return err
			}
		}

		updated = res

		after(func(ctx context.Context) {
			s.afterCalendarWrite(ctx, resource, oldDate)
			if dateChanged {
				s.afterCalendarWrite(ctx, resource, newDate)
			}
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateRepoErr(err))
	}

	return updated, nil
}

// Delete removes an externally registered reservation together with its
// availability record, atomically.
func (s *Service) Delete(ctx context.Context, actorID int64, reservationID uuid.UUID) error {
	const op = "service.external.Delete"

	current, resource, err := s.authorizeReservation(ctx, actorID, reservationID)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	keys := []postgresrepo.DateKey{{ResourceID: current.ResourceID, Date: current.Date}}

	err = s.uow.Do(ctx, keys, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		res, err := s.store.Reservations().With(tx).GetForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Origin != domain.OriginExternal {
			return ErrNotExternal
		}

		if !postgresrepo.CoversSlot(keys, res.ResourceID, res.Date) {
			return ErrBusy
		}

		if err := s.store.Reservations().With(tx).Delete(ctx, res.ID); err != nil {
			return err
		}

		if err := s.store.Availability().With(tx).Clear(ctx, res.ResourceID, res.Date); err != nil {
			return err
		}

		after(func(ctx context.Context) {
			s.afterCalendarWrite(ctx, resource, res.Date)
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateRepoErr(err))
	}

	return nil
}

// applyEdit merges the edit into the locked row. Fields left nil keep their
// current value; in particular a nil Date never touches the row's date.
func applyEdit(res *domain.Reservation, in EditInput) {
	if in.Date != nil {
		res.Date = domain.DateOf(*in.Date)
	}
	if in.TotalPrice != nil {
		res.TotalPrice = *in.TotalPrice
	}
	if in.DepositPaid != nil {
		res.DepositPaid = *in.DepositPaid
	}
	if in.Guests != nil && res.ResourceType == domain.ResourceVenue {
		res.Guests = in.Guests
	}
	if in.Contact != nil || in.Memo != nil {
		contact, memo := domain.DecodeNotes(res.Notes)
		if in.Contact != nil {
			contact = in.Contact
		}
		if in.Memo != nil {
			memo = *in.Memo
		}
		res.Notes = domain.EncodeNotes(contact, memo)
	}
}

func (s *Service) authorizeResource(ctx context.Context, actorID, resourceID int64) (*domain.Resource, error) {
	resource, err := s.store.Ownership().GetResource(ctx, resourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	if resource.OwnerID != actorID {
		return nil, ErrForbidden
	}
	return resource, nil
}

func (s *Service) authorizeReservation(
	ctx context.Context,
	actorID int64,
	reservationID uuid.UUID,
) (*domain.Reservation, *domain.Resource, error) {
	res, err := s.store.Reservations().Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrReservationNotFound
		}
		return nil, nil, err
	}
	if res.Origin != domain.OriginExternal {
		return nil, nil, ErrNotExternal
	}

	resource, err := s.authorizeResource(ctx, actorID, res.ResourceID)
	if err != nil {
		return nil, nil, err
	}

	return res, resource, nil
}

func (s *Service) afterCalendarWrite(ctx context.Context, resource *domain.Resource, date time.Time) {
	_ = s.cache.InvalidateCalendar(ctx, resource.ID, resource.OwnerID, date)
	_ = s.pubsub.PublishCalendarChanged(ctx, resource.ID, date)
}

func translateRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrReservationNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrConflict
	case errors.Is(err, repository.ErrBusy):
		return ErrBusy
	}
	return err
}
