package models

import "errors"

// Error kinds surfaced by the dispatch core. Operations wrap these with
// context; match them with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrInvalidZone      = errors.New("invalid zone")
	ErrInvalidOTP       = errors.New("invalid otp")
	ErrNoDriverAssigned = errors.New("no driver assigned")
	ErrInvalidInput     = errors.New("invalid input")
)

// ErrorCode maps err to a stable code for API responses. Unknown errors map
// to "internal".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInvalidZone):
		return "invalid_zone"
	case errors.Is(err, ErrInvalidOTP):
		return "invalid_otp"
	case errors.Is(err, ErrNoDriverAssigned):
		return "no_driver_assigned"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
