package domain

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrVehicleNotFound   = errors.New("vehicle not found")
	ErrServiceNotFound   = errors.New("service request not found")
	ErrDuplicateVIN      = errors.New("vehicle with this VIN already exists")
	ErrForbidden         = errors.New("access forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownField      = errors.New("field is not editable")
	ErrStaleFlow         = errors.New("conversation state lost")
)
