package calendar

import "errors"

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrInvalidMonth     = errors.New("invalid month")
)
