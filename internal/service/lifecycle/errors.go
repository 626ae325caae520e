package lifecycle

import "errors"

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrResourceNotFound    = errors.New("resource not found")
	ErrForbidden           = errors.New("requester does not own the resource")
	ErrConflict            = errors.New("another reservation occupies the date")
	ErrBusy                = errors.New("calendar slot is busy, retry")
)
