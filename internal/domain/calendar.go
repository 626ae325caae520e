package domain

import (
	"time"

	"github.com/google/uuid"
)

// DayReservation is the slice of a reservation a calendar cell needs to
// render. CustomerName is decoded from the notes for externally registered
// reservations and empty otherwise (customer profiles live outside this core).
type DayReservation struct {
	ID           uuid.UUID    `json:"id"`
	CustomerID   int64        `json:"customer_id"`
	CustomerName string       `json:"customer_name,omitempty"`
	Status       string       `json:"status"`
	TotalPrice   int64        `json:"total_price"`
	DepositPaid  bool         `json:"deposit_paid"`
	Guests       *GuestCounts `json:"guests,omitempty"`
	Origin       Origin       `json:"origin"`
}

// CalendarDay merges the availability record and the reservations of one
// date. NeedsReconciliation flags a booked entry without an accepted
// reservation or the reverse; the projector never repairs that itself.
type CalendarDay struct {
	Date                string             `json:"date"`
	Status              AvailabilityStatus `json:"status"`
	DiscountPercent     int                `json:"discount_percent,omitempty"`
	Notes               string             `json:"notes,omitempty"`
	Reservation         *DayReservation    `json:"reservation,omitempty"`
	InactiveCount       int                `json:"inactive_count,omitempty"`
	NeedsReconciliation bool               `json:"needs_reconciliation,omitempty"`
}

// ResourceCalendar is one resource's month; OwnerCalendar aggregates them
// across everything the owner manages.
type ResourceCalendar struct {
	Resource Resource      `json:"resource"`
	Year     int           `json:"year"`
	Month    time.Month    `json:"month"`
	Days     []CalendarDay `json:"days"`
}

const dateLayout = "2006-01-02"

// BuildMonth projects one resource's month from its availability records and
// reservations. It is a pure merge: one entry per day, the occupying
// reservation if any, a count of terminal-negative leftovers, and an
// inconsistency flag instead of a silent repair.
func BuildMonth(rt ResourceType, year int, month time.Month, records []AvailabilityRecord, reservations []Reservation) []CalendarDay {
	recByDay := make(map[string]AvailabilityRecord, len(records))
	for _, rec := range records {
		recByDay[DateOf(rec.Date).Format(dateLayout)] = rec
	}

	resByDay := make(map[string][]Reservation, len(reservations))
	for _, r := range reservations {
		key := DateOf(r.Date).Format(dateLayout)
		resByDay[key] = append(resByDay[key], r)
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()

	out := make([]CalendarDay, 0, daysInMonth)
	for i := 0; i < daysInMonth; i++ {
		date := first.AddDate(0, 0, i)
		key := date.Format(dateLayout)
		out = append(out, buildDay(rt, key, recByDay, resByDay))
	}

	return out
}

func buildDay(rt ResourceType, key string, recByDay map[string]AvailabilityRecord, resByDay map[string][]Reservation) CalendarDay {
	day := CalendarDay{Date: key, Status: AvailabilityAvailable}

	if rec, ok := recByDay[key]; ok && rec.Status != AvailabilityAvailable {
		day.Status = rec.Status
		day.DiscountPercent = rec.ResaleDiscountPercent
		day.Notes = rec.Notes
	}

	occupying := pickOccupying(resByDay[key])
	if occupying != nil {
		day.Reservation = dayReservation(rt, *occupying)
	}

	for _, r := range resByDay[key] {
		if r.Status.TerminalNegative() {
			day.InactiveCount++
		}
	}

	hasAccepted := occupying != nil && occupying.Status == StatusAccepted
	booked := day.Status == AvailabilityBooked
	if booked != hasAccepted {
		day.NeedsReconciliation = true
	}

	return day
}

// pickOccupying chooses the reservation a calendar cell shows: the accepted
// one when present, otherwise the newest pending request.
func pickOccupying(reservations []Reservation) *Reservation {
	var pending *Reservation
	for i := range reservations {
		r := &reservations[i]
		switch r.Status {
		case StatusAccepted:
			return r
		case StatusPending:
			if pending == nil || r.CreatedAt.After(pending.CreatedAt) {
				pending = r
			}
		}
	}
	return pending
}

func dayReservation(rt ResourceType, r Reservation) *DayReservation {
	dr := &DayReservation{
		ID:          r.ID,
		CustomerID:  r.CustomerID,
		Status:      r.Status.Label(rt),
		TotalPrice:  r.TotalPrice,
		DepositPaid: r.DepositPaid,
		Guests:      r.Guests,
		Origin:      r.Origin,
	}
	if r.Origin == OriginExternal {
		if contact, _ := DecodeNotes(r.Notes); contact != nil {
			dr.CustomerName = contact.Name
		}
	}
	return dr
}
