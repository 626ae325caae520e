package httpgin

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okonomi/yoyaku-go/internal/domain"
)

func externalReservation(status domain.Status) domain.Reservation {
	return domain.Reservation{
		ID:           uuid.New(),
		ResourceID:   3,
		ResourceType: domain.ResourceVenue,
		CustomerID:   9,
		Date:         time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC),
		Status:       status,
		TotalPrice:   15000,
		Notes:        domain.EncodeNotes(&domain.ExternalContact{Name: "Tanaka", Phone: "080"}, "phone booking"),
		Origin:       domain.OriginExternal,
	}
}

func TestToExternalResponse_AcceptedPairsBookedRecord(t *testing.T) {
	resp := toExternalResponse(externalReservation(domain.StatusAccepted))

	require.NotNil(t, resp.Availability)
	assert.Equal(t, int64(3), resp.Availability.ResourceID)
	assert.Equal(t, "2025-08-20", resp.Availability.Date)
	assert.Equal(t, "booked", resp.Availability.Status)
}

func TestToExternalResponse_NonAcceptedHasNoRecord(t *testing.T) {
	resp := toExternalResponse(externalReservation(domain.StatusCancelled))

	assert.Nil(t, resp.Availability)
}

func TestToReservationResponse_DecodesContactAndLabel(t *testing.T) {
	r := externalReservation(domain.StatusAccepted)
	r.ResourceType = domain.ResourceService

	resp := toReservationResponse(r)

	assert.Equal(t, "confirmed", resp.Status)
	assert.Equal(t, "Tanaka", resp.CustomerName)
	assert.Equal(t, "080", resp.CustomerPhone)
	assert.Equal(t, "phone booking", resp.Memo)
}
