package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidDiscount   = errors.New("resale discount out of range")
	ErrInvalidPrice      = errors.New("total price must be non-negative")
)

const (
	MinResaleDiscount = 5
	MaxResaleDiscount = 50
)

// ResaleOption asks for the freed date to be re-listed at a discount instead
// of going back to plain available.
type ResaleOption struct {
	DiscountPercent int
	Notes           string
}

func (o ResaleOption) Validate() error {
	if o.DiscountPercent < MinResaleDiscount || o.DiscountPercent > MaxResaleDiscount {
		return fmt.Errorf("%w: %d not in [%d, %d]",
			ErrInvalidDiscount, o.DiscountPercent, MinResaleDiscount, MaxResaleDiscount)
	}
	return nil
}

type EffectKind string

const (
	EffectRefund EffectKind = "refund"
	EffectNotify EffectKind = "notify"
)

// NotificationKind is the template key handed to the notification collaborator.
type NotificationKind string

const (
	NotifyRejected  NotificationKind = "reservation_rejected"
	NotifyCancelled NotificationKind = "reservation_cancelled"
)

// AvailabilityWrite is the calendar entry a transition must leave behind.
// Status available means the record is cleared.
type AvailabilityWrite struct {
	Status          AvailabilityStatus
	DiscountPercent int
	Notes           string
}

// TransitionPlan is the full outcome of validating one status change: the
// paired availability write, whether the exclusivity invariant must be
// re-checked at commit time, and the side effects to queue after commit.
type TransitionPlan struct {
	From         Status
	To           Status
	Availability *AvailabilityWrite // nil leaves the calendar untouched
	RequireFree  bool               // no other accepted reservation may hold the date
	Effects      []EffectKind
	Notification NotificationKind
}

// PlanTransition validates the requested edge of the reservation state
// machine and returns the plan to execute. The edge table is parameterized by
// resource type: venues treat accepted as terminal-positive and have no
// completed state. Resale is only meaningful when cancelling an accepted
// reservation; the discount is validated here so an out-of-range value never
// reaches the stores.
func PlanTransition(r Reservation, target Status, resale *ResaleOption) (TransitionPlan, error) {
	plan := TransitionPlan{From: r.Status, To: target}

	if resale != nil && !(r.Status == StatusAccepted && target == StatusCancelled) {
		return TransitionPlan{}, fmt.Errorf(
			"%w: resale applies only when cancelling an accepted reservation",
			ErrInvalidTransition)
	}

	switch {
	case r.Status == StatusPending && target == StatusAccepted:
		if r.TotalPrice < 0 {
			return TransitionPlan{}, ErrInvalidPrice
		}
		plan.Availability = &AvailabilityWrite{Status: AvailabilityBooked}
		plan.RequireFree = true

	case r.Status == StatusPending && target == StatusRejected:
		plan.Effects = []EffectKind{EffectRefund, EffectNotify}
		plan.Notification = NotifyRejected

	case r.Status == StatusAccepted && target == StatusCompleted:
		if r.ResourceType != ResourceService {
			return TransitionPlan{}, fmt.Errorf(
				"%w: %s has no completed state", ErrInvalidTransition, r.ResourceType)
		}

	case r.Status == StatusAccepted && target == StatusCancelled:
		write := &AvailabilityWrite{Status: AvailabilityAvailable}
		if resale != nil {
			if err := resale.Validate(); err != nil {
				return TransitionPlan{}, err
			}
			write = &AvailabilityWrite{
				Status:          AvailabilityResale,
				DiscountPercent: resale.DiscountPercent,
				Notes:           resale.Notes,
			}
		}
		plan.Availability = write
		plan.Effects = []EffectKind{EffectRefund, EffectNotify}
		plan.Notification = NotifyCancelled

	case r.Status == StatusAccepted && target == StatusPending:
		// Revert-for-review: the owner takes the booking back off the calendar.
		plan.Availability = &AvailabilityWrite{Status: AvailabilityAvailable}

	case r.Status == StatusCancelled && target == StatusPending:
		// Reinstate: restores the booked entry, so the date must still be free.
		plan.Availability = &AvailabilityWrite{Status: AvailabilityBooked}
		plan.RequireFree = true

	default:
		return TransitionPlan{}, fmt.Errorf("%w: %s -> %s",
			ErrInvalidTransition, r.Status, target)
	}

	return plan, nil
}

// NeedsRefund reports whether the plan queues a refund attempt.
func (p TransitionPlan) NeedsRefund() bool {
	for _, e := range p.Effects {
		if e == EffectRefund {
			return true
		}
	}
	return false
}

// NeedsNotify reports whether the plan queues a customer notification.
func (p TransitionPlan) NeedsNotify() bool {
	for _, e := range p.Effects {
		if e == EffectNotify {
			return true
		}
	}
	return false
}
