package external

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/okonomi/yoyaku-go/internal/domain"
)

func lockedReservation(date time.Time) *domain.Reservation {
	return &domain.Reservation{
		ResourceID:   1,
		ResourceType: domain.ResourceVenue,
		Date:         date,
		Status:       domain.StatusAccepted,
		TotalPrice:   12000,
		Notes:        domain.EncodeNotes(&domain.ExternalContact{Name: "Sato", Phone: "090"}, "walk-in"),
		Origin:       domain.OriginExternal,
	}
}

// A price-only edit must leave the row on the date the locked re-read found
// it at, even when the caller's pre-lock snapshot saw a different date.
func TestApplyEdit_PriceOnlyKeepsLockedDate(t *testing.T) {
	lockedDate := time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)
	res := lockedReservation(lockedDate)

	price := int64(9000)
	applyEdit(res, EditInput{TotalPrice: &price})

	assert.True(t, res.Date.Equal(lockedDate), "date must not move on a price-only edit")
	assert.Equal(t, int64(9000), res.TotalPrice)
}

func TestApplyEdit_DateChangeNormalizesToDay(t *testing.T) {
	res := lockedReservation(time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC))

	moved := time.Date(2025, 7, 5, 14, 30, 0, 0, time.UTC)
	applyEdit(res, EditInput{Date: &moved})

	assert.True(t, res.Date.Equal(time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)))
}

func TestApplyEdit_GuestsIgnoredForServiceResources(t *testing.T) {
	res := lockedReservation(time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC))
	res.ResourceType = domain.ResourceService

	applyEdit(res, EditInput{Guests: &domain.GuestCounts{Adults: 2}})

	assert.Nil(t, res.Guests)
}

func TestApplyEdit_NotesMergeKeepsUntouchedParts(t *testing.T) {
	res := lockedReservation(time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC))

	memo := "paid in cash"
	applyEdit(res, EditInput{Memo: &memo})

	contact, gotMemo := domain.DecodeNotes(res.Notes)
	assert.Equal(t, "paid in cash", gotMemo)
	if assert.NotNil(t, contact) {
		assert.Equal(t, "Sato", contact.Name)
		assert.Equal(t, "090", contact.Phone)
	}
}
