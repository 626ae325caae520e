package httpgin

import (
	"time"

	"github.com/okonomi/yoyaku-go/internal/domain"
	"github.com/okonomi/yoyaku-go/internal/service/lifecycle"
)

type TransitionRequest struct {
	Target string         `json:"target" binding:"required"`
	Resale *ResaleRequest `json:"resale,omitempty"`
}

type ResaleRequest struct {
	DiscountPercent int    `json:"discount_percent" binding:"required"`
	Notes           string `json:"notes"`
}

type DepositRequest struct {
	Paid *bool `json:"paid" binding:"required"`
}

type GuestsInput struct {
	Adults   int `json:"adults" binding:"gte=0"`
	Children int `json:"children" binding:"gte=0"`
}

type ExternalCreateRequest struct {
	ResourceID    int64        `json:"resource_id" binding:"required"`
	Date          string       `json:"date" binding:"required"`
	TotalPrice    int64        `json:"total_price" binding:"gte=0"`
	DepositPaid   bool         `json:"deposit_paid"`
	Guests        *GuestsInput `json:"guests,omitempty"`
	CustomerName  string       `json:"customer_name" binding:"required"`
	CustomerPhone string       `json:"customer_phone"`
	Memo          string       `json:"memo"`
}

type ExternalEditRequest struct {
	Date          *string      `json:"date,omitempty"`
	TotalPrice    *int64       `json:"total_price,omitempty"`
	DepositPaid   *bool        `json:"deposit_paid,omitempty"`
	Guests        *GuestsInput `json:"guests,omitempty"`
	CustomerName  *string      `json:"customer_name,omitempty"`
	CustomerPhone *string      `json:"customer_phone,omitempty"`
	Memo          *string      `json:"memo,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ReservationResponse struct {
	ID            string              `json:"id"`
	ResourceID    int64               `json:"resource_id"`
	ResourceType  string              `json:"resource_type"`
	CustomerID    int64               `json:"customer_id"`
	Date          string              `json:"date"`
	Status        string              `json:"status"`
	TotalPrice    int64               `json:"total_price"`
	DepositPaid   bool                `json:"deposit_paid"`
	Guests        *domain.GuestCounts `json:"guests,omitempty"`
	CustomerName  string              `json:"customer_name,omitempty"`
	CustomerPhone string              `json:"customer_phone,omitempty"`
	Memo          string              `json:"memo,omitempty"`
	Origin        string              `json:"origin"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type AvailabilityResponse struct {
	ResourceID      int64  `json:"resource_id"`
	Date            string `json:"date"`
	Status          string `json:"status"`
	DiscountPercent int    `json:"discount_percent,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type HistoryEntry struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	ActorID int64     `json:"actor_id"`
	At      time.Time `json:"at"`
}

type TransitionResponse struct {
	Reservation  ReservationResponse   `json:"reservation"`
	Availability *AvailabilityResponse `json:"availability,omitempty"`
	History      []HistoryEntry        `json:"history,omitempty"`
	Warnings     []string              `json:"warnings,omitempty"`
}

const dateLayout = "2006-01-02"

func toReservationResponse(r domain.Reservation) ReservationResponse {
	contact, memo := domain.DecodeNotes(r.Notes)

	resp := ReservationResponse{
		ID:           r.ID.String(),
		ResourceID:   r.ResourceID,
		ResourceType: string(r.ResourceType),
		CustomerID:   r.CustomerID,
		Date:         r.Date.Format(dateLayout),
		Status:       r.Status.Label(r.ResourceType),
		TotalPrice:   r.TotalPrice,
		DepositPaid:  r.DepositPaid,
		Guests:       r.Guests,
		Memo:         memo,
		Origin:       string(r.Origin),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if contact != nil {
		resp.CustomerName = contact.Name
		resp.CustomerPhone = contact.Phone
	}
	return resp
}

func toAvailabilityResponse(rec *domain.AvailabilityRecord) *AvailabilityResponse {
	if rec == nil {
		return nil
	}
	return &AvailabilityResponse{
		ResourceID:      rec.ResourceID,
		Date:            rec.Date.Format(dateLayout),
		Status:          string(rec.Status),
		DiscountPercent: rec.ResaleDiscountPercent,
		Notes:           rec.Notes,
	}
}

// toExternalResponse pairs an externally registered reservation with its
// availability record. The pair is deterministic: an accepted reservation
// books its own date, anything else leaves the slot without a record here.
func toExternalResponse(r domain.Reservation) TransitionResponse {
	resp := TransitionResponse{Reservation: toReservationResponse(r)}
	if r.Status == domain.StatusAccepted {
		resp.Availability = &AvailabilityResponse{
			ResourceID: r.ResourceID,
			Date:       r.Date.Format(dateLayout),
			Status:     string(domain.AvailabilityBooked),
		}
	}
	return resp
}

func toTransitionResponse(res *lifecycle.Result) TransitionResponse {
	resp := TransitionResponse{
		Reservation:  toReservationResponse(*res.Reservation),
		Availability: toAvailabilityResponse(res.Availability),
		Warnings:     res.Warnings,
	}
	rt := res.Reservation.ResourceType
	for _, h := range res.History {
		resp.History = append(resp.History, HistoryEntry{
			From:    h.From.Label(rt),
			To:      h.To.Label(rt),
			ActorID: h.ActorID,
			At:      h.At,
		})
	}
	return resp
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
