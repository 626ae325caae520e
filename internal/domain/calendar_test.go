package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okonomi/yoyaku-go/internal/domain"
)

func day(t *testing.T, days []domain.CalendarDay, date string) domain.CalendarDay {
	t.Helper()
	for _, d := range days {
		if d.Date == date {
			return d
		}
	}
	t.Fatalf("day %s not in projection", date)
	return domain.CalendarDay{}
}

func TestBuildMonth_OneEntryPerDay(t *testing.T) {
	days := domain.BuildMonth(domain.ResourceVenue, 2025, time.June, nil, nil)

	require.Len(t, days, 30)
	assert.Equal(t, "2025-06-01", days[0].Date)
	assert.Equal(t, "2025-06-30", days[29].Date)
	for _, d := range days {
		assert.Equal(t, domain.AvailabilityAvailable, d.Status)
		assert.Nil(t, d.Reservation)
		assert.False(t, d.NeedsReconciliation)
	}
}

func TestBuildMonth_BookedDayCarriesReservation(t *testing.T) {
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []domain.AvailabilityRecord{
		{ResourceID: 1, Date: date, Status: domain.AvailabilityBooked},
	}
	reservations := []domain.Reservation{{
		ID:           uuid.New(),
		ResourceID:   1,
		ResourceType: domain.ResourceVenue,
		CustomerID:   42,
		Date:         date,
		Status:       domain.StatusAccepted,
		TotalPrice:   5000,
		DepositPaid:  true,
		Guests:       &domain.GuestCounts{Adults: 80, Children: 10},
	}}

	days := domain.BuildMonth(domain.ResourceVenue, 2025, time.June, records, reservations)

	d := day(t, days, "2025-06-01")
	assert.Equal(t, domain.AvailabilityBooked, d.Status)
	require.NotNil(t, d.Reservation)
	assert.Equal(t, "accepted", d.Reservation.Status)
	assert.EqualValues(t, 5000, d.Reservation.TotalPrice)
	assert.True(t, d.Reservation.DepositPaid)
	require.NotNil(t, d.Reservation.Guests)
	assert.Equal(t, 80, d.Reservation.Guests.Adults)
	assert.False(t, d.NeedsReconciliation)
}

func TestBuildMonth_ResaleDay(t *testing.T) {
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []domain.AvailabilityRecord{{
		ResourceID:            1,
		Date:                  date,
		Status:                domain.AvailabilityResale,
		ResaleDiscountPercent: 20,
		Notes:                 "relisted after cancellation",
	}}
	reservations := []domain.Reservation{{
		ID:     uuid.New(),
		Date:   date,
		Status: domain.StatusCancelled,
	}}

	days := domain.BuildMonth(domain.ResourceVenue, 2025, time.June, records, reservations)

	d := day(t, days, "2025-06-01")
	assert.Equal(t, domain.AvailabilityResale, d.Status)
	assert.Equal(t, 20, d.DiscountPercent)
	assert.Nil(t, d.Reservation)
	assert.Equal(t, 1, d.InactiveCount)
	assert.False(t, d.NeedsReconciliation)
}

func TestBuildMonth_AcceptedWinsOverPending(t *testing.T) {
	date := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	accepted := uuid.New()
	records := []domain.AvailabilityRecord{
		{ResourceID: 1, Date: date, Status: domain.AvailabilityBooked},
	}
	reservations := []domain.Reservation{
		{ID: uuid.New(), Date: date, Status: domain.StatusPending, CreatedAt: date.Add(1 * time.Hour)},
		{ID: accepted, Date: date, Status: domain.StatusAccepted, CreatedAt: date},
	}

	days := domain.BuildMonth(domain.ResourceVenue, 2025, time.June, records, reservations)

	d := day(t, days, "2025-06-14")
	require.NotNil(t, d.Reservation)
	assert.Equal(t, accepted, d.Reservation.ID)
}

func TestBuildMonth_ServiceStatusLabel(t *testing.T) {
	date := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	records := []domain.AvailabilityRecord{
		{ResourceID: 1, Date: date, Status: domain.AvailabilityBooked},
	}
	reservations := []domain.Reservation{
		{ID: uuid.New(), Date: date, Status: domain.StatusAccepted, ResourceType: domain.ResourceService},
	}

	days := domain.BuildMonth(domain.ResourceService, 2025, time.June, records, reservations)

	d := day(t, days, "2025-06-05")
	require.NotNil(t, d.Reservation)
	assert.Equal(t, "confirmed", d.Reservation.Status)
}

func TestBuildMonth_ExternalContactName(t *testing.T) {
	date := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	notes := domain.EncodeNotes(&domain.ExternalContact{Name: "Park Jisoo", Phone: "010-9876-5432"}, "")
	records := []domain.AvailabilityRecord{
		{ResourceID: 1, Date: date, Status: domain.AvailabilityBooked},
	}
	reservations := []domain.Reservation{{
		ID:     uuid.New(),
		Date:   date,
		Status: domain.StatusAccepted,
		Origin: domain.OriginExternal,
		Notes:  notes,
	}}

	days := domain.BuildMonth(domain.ResourceVenue, 2025, time.July, records, reservations)

	d := day(t, days, "2025-07-10")
	require.NotNil(t, d.Reservation)
	assert.Equal(t, "Park Jisoo", d.Reservation.CustomerName)
}

func TestBuildMonth_NeedsReconciliation(t *testing.T) {
	bookedNoReservation := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	acceptedNoRecord := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	records := []domain.AvailabilityRecord{
		{ResourceID: 1, Date: bookedNoReservation, Status: domain.AvailabilityBooked},
	}
	reservations := []domain.Reservation{
		{ID: uuid.New(), Date: acceptedNoRecord, Status: domain.StatusAccepted},
	}

	days := domain.BuildMonth(domain.ResourceVenue, 2025, time.June, records, reservations)

	assert.True(t, day(t, days, "2025-06-02").NeedsReconciliation,
		"booked entry without an accepted reservation")
	assert.True(t, day(t, days, "2025-06-03").NeedsReconciliation,
		"accepted reservation without a booked entry")
	assert.False(t, day(t, days, "2025-06-04").NeedsReconciliation)
}

func TestBuildMonth_TerminalNegativeCount(t *testing.T) {
	date := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	reservations := []domain.Reservation{
		{ID: uuid.New(), Date: date, Status: domain.StatusCancelled},
		{ID: uuid.New(), Date: date, Status: domain.StatusRejected},
		{ID: uuid.New(), Date: date, Status: domain.StatusPending},
	}

	days := domain.BuildMonth(domain.ResourceVenue, 2025, time.June, nil, reservations)

	d := day(t, days, "2025-06-20")
	assert.Equal(t, 2, d.InactiveCount)
	require.NotNil(t, d.Reservation)
	assert.Equal(t, "pending", d.Reservation.Status)
}
