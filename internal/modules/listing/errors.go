package listing

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("property not found")
	ErrForbidden  = errors.New("not the owner of the property")
)
