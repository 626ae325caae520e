package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okonomi/yoyaku-go/internal/domain"
)

func venueReservation(status domain.Status) domain.Reservation {
	return domain.Reservation{
		ID:           uuid.New(),
		ResourceID:   1,
		ResourceType: domain.ResourceVenue,
		CustomerID:   42,
		Date:         time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Status:       status,
		TotalPrice:   5000,
		Origin:       domain.OriginCustomer,
	}
}

func serviceReservation(status domain.Status) domain.Reservation {
	r := venueReservation(status)
	r.ResourceType = domain.ResourceService
	return r
}

func TestPlanTransition_AcceptBooksDate(t *testing.T) {
	plan, err := domain.PlanTransition(venueReservation(domain.StatusPending), domain.StatusAccepted, nil)

	require.NoError(t, err)
	require.NotNil(t, plan.Availability)
	assert.Equal(t, domain.AvailabilityBooked, plan.Availability.Status)
	assert.True(t, plan.RequireFree, "accept must re-check exclusivity at commit time")
	assert.Empty(t, plan.Effects)
}

func TestPlanTransition_RejectTriggersRefundAndNotify(t *testing.T) {
	plan, err := domain.PlanTransition(venueReservation(domain.StatusPending), domain.StatusRejected, nil)

	require.NoError(t, err)
	assert.Nil(t, plan.Availability, "pending reservations hold no calendar entry")
	assert.True(t, plan.NeedsRefund())
	assert.True(t, plan.NeedsNotify())
	assert.Equal(t, domain.NotifyRejected, plan.Notification)
}

func TestPlanTransition_CancelResetsAvailability(t *testing.T) {
	plan, err := domain.PlanTransition(venueReservation(domain.StatusAccepted), domain.StatusCancelled, nil)

	require.NoError(t, err)
	require.NotNil(t, plan.Availability)
	assert.Equal(t, domain.AvailabilityAvailable, plan.Availability.Status)
	assert.True(t, plan.NeedsRefund())
	assert.Equal(t, domain.NotifyCancelled, plan.Notification)
}

func TestPlanTransition_CancelWithResale(t *testing.T) {
	resale := &domain.ResaleOption{DiscountPercent: 20, Notes: "relisted after cancellation"}

	plan, err := domain.PlanTransition(venueReservation(domain.StatusAccepted), domain.StatusCancelled, resale)

	require.NoError(t, err)
	require.NotNil(t, plan.Availability)
	assert.Equal(t, domain.AvailabilityResale, plan.Availability.Status)
	assert.Equal(t, 20, plan.Availability.DiscountPercent)
	assert.Equal(t, "relisted after cancellation", plan.Availability.Notes)
	assert.True(t, plan.NeedsRefund())
}

func TestPlanTransition_ResaleDiscountOutOfRange(t *testing.T) {
	for _, pct := range []int{0, 4, 51, 100, -10} {
		resale := &domain.ResaleOption{DiscountPercent: pct}

		_, err := domain.PlanTransition(venueReservation(domain.StatusAccepted), domain.StatusCancelled, resale)

		assert.ErrorIs(t, err, domain.ErrInvalidDiscount, "discount %d", pct)
	}
}

func TestPlanTransition_ResaleOnWrongEdge(t *testing.T) {
	resale := &domain.ResaleOption{DiscountPercent: 20}

	_, err := domain.PlanTransition(venueReservation(domain.StatusPending), domain.StatusRejected, resale)

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPlanTransition_CompleteServiceOnly(t *testing.T) {
	plan, err := domain.PlanTransition(serviceReservation(domain.StatusAccepted), domain.StatusCompleted, nil)
	require.NoError(t, err)
	assert.Nil(t, plan.Availability)
	assert.Empty(t, plan.Effects)

	_, err = domain.PlanTransition(venueReservation(domain.StatusAccepted), domain.StatusCompleted, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "venues have no completed state")
}

func TestPlanTransition_RevertForReview(t *testing.T) {
	plan, err := domain.PlanTransition(venueReservation(domain.StatusAccepted), domain.StatusPending, nil)

	require.NoError(t, err)
	require.NotNil(t, plan.Availability)
	assert.Equal(t, domain.AvailabilityAvailable, plan.Availability.Status)
	assert.False(t, plan.RequireFree)
	assert.Empty(t, plan.Effects)
}

func TestPlanTransition_ReinstateChecksExclusivity(t *testing.T) {
	plan, err := domain.PlanTransition(venueReservation(domain.StatusCancelled), domain.StatusPending, nil)

	require.NoError(t, err)
	require.NotNil(t, plan.Availability)
	assert.Equal(t, domain.AvailabilityBooked, plan.Availability.Status)
	assert.True(t, plan.RequireFree, "reinstating must fail if another reservation took the date")
}

func TestPlanTransition_InvalidEdges(t *testing.T) {
	cases := []struct {
		from, to domain.Status
	}{
		{domain.StatusCompleted, domain.StatusPending},
		{domain.StatusRejected, domain.StatusAccepted},
		{domain.StatusRejected, domain.StatusPending},
		{domain.StatusCancelled, domain.StatusAccepted},
		{domain.StatusPending, domain.StatusCompleted},
		{domain.StatusPending, domain.StatusCancelled},
		{domain.StatusAccepted, domain.StatusRejected},
		{domain.StatusCompleted, domain.StatusCancelled},
	}

	for _, tc := range cases {
		_, err := domain.PlanTransition(venueReservation(tc.from), tc.to, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "%s -> %s", tc.from, tc.to)
	}
}

func TestParseStatus_ConfirmedAlias(t *testing.T) {
	got, ok := domain.ParseStatus("confirmed")
	require.True(t, ok)
	assert.Equal(t, domain.StatusAccepted, got)

	got, ok = domain.ParseStatus(" Accepted ")
	require.True(t, ok)
	assert.Equal(t, domain.StatusAccepted, got)

	_, ok = domain.ParseStatus("held")
	assert.False(t, ok)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "confirmed", domain.StatusAccepted.Label(domain.ResourceService))
	assert.Equal(t, "accepted", domain.StatusAccepted.Label(domain.ResourceVenue))
	assert.Equal(t, "cancelled", domain.StatusCancelled.Label(domain.ResourceService))
}

func TestNotesRoundTrip(t *testing.T) {
	contact := &domain.ExternalContact{Name: "Kim Minji", Phone: "010-1234-5678"}

	notes := domain.EncodeNotes(contact, "walk-in, paid cash")
	gotContact, memo := domain.DecodeNotes(notes)

	require.NotNil(t, gotContact)
	assert.Equal(t, "Kim Minji", gotContact.Name)
	assert.Equal(t, "010-1234-5678", gotContact.Phone)
	assert.Equal(t, "walk-in, paid cash", memo)

	// plain notes pass through untouched
	gotContact, memo = domain.DecodeNotes("prefers window table")
	assert.Nil(t, gotContact)
	assert.Equal(t, "prefers window table", memo)
}
