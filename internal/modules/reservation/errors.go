package reservation

import "errors"

var (
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("property is unavailable for the selected dates")
	ErrNotFound       = errors.New("reservation not found")
	ErrForbidden      = errors.New("not allowed for this user")
	ErrNotBooked      = errors.New("property is not currently booked")
	ErrNotPending     = errors.New("reservation already left the pending state")
	ErrCheckoutFailed = errors.New("checkout session could not be created")
)
