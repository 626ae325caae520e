package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ResourceType string

const (
	ResourceVenue   ResourceType = "venue"
	ResourceService ResourceType = "service"
)

func (t ResourceType) Valid() bool {
	return t == ResourceVenue || t == ResourceService
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Active reports whether the reservation is still live from the customer's
// point of view: a pending request or an accepted booking.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusAccepted
}

func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// TerminalNegative reports whether the status frees the date for new
// reservations without the date having passed contractually.
func (s Status) TerminalNegative() bool {
	return s == StatusRejected || s == StatusCancelled
}

// Label renders the status for a resource type. Service resources call an
// accepted reservation "confirmed"; everything else is spelled the same.
func (s Status) Label(rt ResourceType) string {
	if s == StatusAccepted && rt == ResourceService {
		return "confirmed"
	}
	return string(s)
}

// ParseStatus normalizes an input status string. "confirmed" is accepted as
// an alias of "accepted" so service-type callers can use either spelling.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, true
	case "accepted", "confirmed":
		return StatusAccepted, true
	case "rejected":
		return StatusRejected, true
	case "cancelled":
		return StatusCancelled, true
	case "completed":
		return StatusCompleted, true
	}
	return "", false
}

type Origin string

const (
	OriginCustomer Origin = "customer"
	OriginExternal Origin = "external"
)

type GuestCounts struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
}

type Reservation struct {
	ID           uuid.UUID
	ResourceID   int64
	ResourceType ResourceType
	CustomerID   int64
	Date         time.Time
	Status       Status
	TotalPrice   int64
	DepositPaid  bool
	Guests       *GuestCounts // venue bookings only
	Notes        string
	Origin       Origin
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AvailabilityStatus string

const (
	AvailabilityAvailable AvailabilityStatus = "available"
	AvailabilityBooked    AvailabilityStatus = "booked"
	AvailabilityResale    AvailabilityStatus = "resale"
)

// AvailabilityRecord is the per-resource, per-date calendar entry. A missing
// record and an explicit "available" record are equivalent to every reader.
type AvailabilityRecord struct {
	ResourceID            int64
	Date                  time.Time
	Status                AvailabilityStatus
	ResaleDiscountPercent int // set only when Status is resale
	Notes                 string
	UpdatedAt             time.Time
}

// StatusChange is one entry of a reservation's status history, written in the
// same transaction as the transition it records.
type StatusChange struct {
	From    Status
	To      Status
	ActorID int64
	At      time.Time
}

type Resource struct {
	ID      int64
	OwnerID int64
	Type    ResourceType
	Name    string
}

// ExternalContact is the customer name/phone an owner captures for a walk-in
// booking. It travels encoded inside the reservation notes so externally
// registered reservations keep the same row shape as customer ones.
type ExternalContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type encodedNotes struct {
	Contact *ExternalContact `json:"contact,omitempty"`
	Memo    string           `json:"memo,omitempty"`
}

func EncodeNotes(contact *ExternalContact, memo string) string {
	if contact == nil {
		return memo
	}
	b, err := json.Marshal(encodedNotes{Contact: contact, Memo: memo})
	if err != nil {
		return memo
	}
	return string(b)
}

func DecodeNotes(notes string) (*ExternalContact, string) {
	if !strings.HasPrefix(notes, "{") {
		return nil, notes
	}
	var enc encodedNotes
	if err := json.Unmarshal([]byte(notes), &enc); err != nil {
		return nil, notes
	}
	return enc.Contact, enc.Memo
}

// DateOf truncates t to a calendar date in UTC. Reservations and availability
// records are keyed by date, never by time of day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
