package lifecycle

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
	"github.com/okonomi/yoyaku-go/internal/sideeffect"
	"github.com/okonomi/yoyaku-go/internal/uow"
)

// Service is the reservation state machine. Every transition runs as one
// atomic unit keyed on the reservation's (resource, date) slot: the status
// write, the history row and the paired availability write commit together or
// not at all. Side effects are queued after commit and can only surface as
// warnings.
type Service struct {
	store      *postgresrepo.Store
	cache      *redisrepo.Cache
	pubsub     *redisx.CalendarPubSub
	dispatcher *sideeffect.Dispatcher
	uow        *uow.UoW
	logger     *slog.Logger
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisx.CalendarPubSub,
	dispatcher *sideeffect.Dispatcher,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:      store,
		cache:      cache,
		pubsub:     pubsub,
		dispatcher: dispatcher,
		uow:        uow.NewUoW(store),
		logger:     logger,
	}
}

// Result is the post-transition pair every mutating call returns, plus any
// side-effect dispatch warnings. A nil Availability means the slot is plainly
// available.
type Result struct {
	Reservation  *domain.Reservation
	Availability *domain.AvailabilityRecord
	History      []domain.StatusChange
	Warnings     []string
}

// Transition validates and applies one edge of the state machine.
//
// Returns:
//   - *Result: the post-transition reservation/availability pair.
//   - error: domain.ErrInvalidTransition if the edge does not exist.
//   - error: ErrConflict if another reservation occupies the date at commit time.
//   - error: ErrBusy if the calendar slot lock could not be acquired in time.
func (s *Service) Transition(
	ctx context.Context,
	actorID int64,
	reservationID uuid.UUID,
	target domain.Status,
	resale *domain.ResaleOption,
) (*Result, error) {
	const op = "service.lifecycle.Transition"

	current, resource, err := s.authorize(ctx, actorID, reservationID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var result Result

	keys := []postgresrepo.DateKey{{ResourceID: current.ResourceID, Date: current.Date}}

	err = s.uow.Do(ctx, keys, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		// Re-read under the slot lock; the pre-check copy may be stale.
		res, err := s.store.Reservations().With(tx).GetForUpdate(ctx, reservationID)
		if err != nil {
			return translateRepoErr(err)
		}

		// A concurrent external edit may have moved the reservation after
		// the lock key was chosen; its current slot is then unlocked.
		if !postgresrepo.CoversSlot(keys, res.ResourceID, res.Date) {
			return ErrBusy
		}

		plan, err := domain.PlanTransition(*res, target, resale)
		if err != nil {
			return err
		}

		if plan.RequireFree {
			occupied, err := s.store.Reservations().With(tx).
				HasAccepted(ctx, res.ResourceID, res.Date, res.ID)
			if err != nil {
				return translateRepoErr(err)
			}
			if occupied {
				return ErrConflict
			}
		}

		if err := s.store.Reservations().With(tx).UpdateStatus(ctx, res.ID, target); err != nil {
			return translateRepoErr(err)
		}

		if err := s.store.Reservations().With(tx).
			AddStatusChange(ctx, res.ID, plan.From, target, actorID); err != nil {
			return translateRepoErr(err)
		}

		if plan.Availability != nil {
			if err := s.store.Availability().With(tx).
				Apply(ctx, res.ResourceID, res.Date, *plan.Availability); err != nil {
				return translateRepoErr(err)
			}
		}

		updated, err := s.store.Reservations().With(tx).Get(ctx, res.ID)
		if err != nil {
			return translateRepoErr(err)
		}
		result.Reservation = updated
		result.Availability = availabilityAfter(updated, plan)

		after(func(ctx context.Context) {
			result.Warnings = append(result.Warnings, s.queueEffects(*updated, plan)...)
			s.afterCalendarWrite(ctx, resource, updated.Date)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateRepoErr(err))
	}

	history, err := s.store.Reservations().History(ctx, reservationID)
	if err == nil {
		result.History = history
	}

	return &result, nil
}

// Resale converts an accepted reservation into a discounted re-listing
// instead of a plain cancellation. It is the cancel edge plus the resale
// availability write in the same atomic unit, so the slot never shows
// available in between.
func (s *Service) Resale(
	ctx context.Context,
	actorID int64,
	reservationID uuid.UUID,
	discountPercent int,
	notes string,
) (*Result, error) {
	const op = "service.lifecycle.Resale"

	if notes == "" {
		notes = "relisted after cancellation"
	}

	result, err := s.Transition(ctx, actorID, reservationID, domain.StatusCancelled,
		&domain.ResaleOption{DiscountPercent: discountPercent, Notes: notes})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return result, nil
}

// SetDepositPaid flips the manual deposit reconciliation flag. It is not a
// state machine input, so no slot lock is needed.
func (s *Service) SetDepositPaid(
	ctx context.Context,
	actorID int64,
	reservationID uuid.UUID,
	paid bool,
) (*domain.Reservation, error) {
	const op = "service.lifecycle.SetDepositPaid"

	if _, _, err := s.authorize(ctx, actorID, reservationID); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := s.store.Reservations().SetDepositPaid(ctx, reservationID, paid); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateRepoErr(err))
	}

	res, err := s.store.Reservations().Get(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateRepoErr(err))
	}

	return res, nil
}

// Get returns a reservation with its status history and the availability
// record of its slot.
func (s *Service) Get(ctx context.Context, reservationID uuid.UUID) (*Result, error) {
	const op = "service.lifecycle.Get"

	res, err := s.store.Reservations().Get(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateRepoErr(err))
	}

	history, err := s.store.Reservations().History(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateRepoErr(err))
	}

	rec, err := s.store.Availability().Get(ctx, res.ResourceID, res.Date)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s:%w", op, translateRepoErr(err))
	}

	return &Result{Reservation: res, Availability: rec, History: history}, nil
}

// authorize loads the reservation and its resource and verifies the actor
// owns the resource. Every mutating operation goes through it.
func (s *Service) authorize(
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

	resource, err := s.store.Ownership().GetResource(ctx, res.ResourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrResourceNotFound
		}
		return nil, nil, err
	}

	if resource.OwnerID != actorID {
		return nil, nil, ErrForbidden
	}

	return res, resource, nil
}

// queueEffects enqueues the plan's side effects and returns warnings for any
// job the dispatcher could not take. The transition is committed by now.
func (s *Service) queueEffects(res domain.Reservation, plan domain.TransitionPlan) []string {
	var warnings []string

	if plan.NeedsRefund() {
		err := s.dispatcher.Enqueue(sideeffect.Job{
			Kind:          domain.EffectRefund,
			ReservationID: res.ID,
			ResourceType:  res.ResourceType,
			CustomerID:    res.CustomerID,
		})
		if err != nil {
			s.logger.Warn("refund dispatch failed", "reservation_id", res.ID, "error", err)
			warnings = append(warnings, "side_effect_failed: refund not queued, needs manual review")
		}
	}

	if plan.NeedsNotify() {
		err := s.dispatcher.Enqueue(sideeffect.Job{
			Kind:          domain.EffectNotify,
			ReservationID: res.ID,
			ResourceType:  res.ResourceType,
			CustomerID:    res.CustomerID,
			Notification:  plan.Notification,
			Payload: map[string]any{
				"reservation_id": res.ID.String(),
				"date":           res.Date.Format("2006-01-02"),
				"status":         res.Status.Label(res.ResourceType),
			},
		})
		if err != nil {
			s.logger.Warn("notify dispatch failed", "reservation_id", res.ID, "error", err)
			warnings = append(warnings, "side_effect_failed: customer notification not queued")
		}
	}

	return warnings
}

// afterCalendarWrite invalidates the cached month views and broadcasts the
// change. Best effort, post-commit.
func (s *Service) afterCalendarWrite(ctx context.Context, resource *domain.Resource, date time.Time) {
	_ = s.cache.InvalidateCalendar(ctx, resource.ID, resource.OwnerID, date)
	_ = s.pubsub.PublishCalendarChanged(ctx, resource.ID, date)
}

// availabilityAfter reconstructs the post-transition availability record
// without another read: the plan says exactly what the slot holds now.
func availabilityAfter(res *domain.Reservation, plan domain.TransitionPlan) *domain.AvailabilityRecord {
	if plan.Availability == nil || plan.Availability.Status == domain.AvailabilityAvailable {
		return nil
	}
	return &domain.AvailabilityRecord{
		ResourceID:            res.ResourceID,
		Date:                  domain.DateOf(res.Date),
		Status:                plan.Availability.Status,
		ResaleDiscountPercent: plan.Availability.DiscountPercent,
		Notes:                 plan.Availability.Notes,
		UpdatedAt:             res.UpdatedAt,
	}
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
	case errors.Is(err, repository.ErrInvalidDiscount):
		return domain.ErrInvalidDiscount
	}
	return err
}
