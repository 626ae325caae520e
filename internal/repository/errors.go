package repository

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrBusy            = errors.New("busy, retry later")
	ErrInvalidDiscount = errors.New("resale discount out of range")
)
