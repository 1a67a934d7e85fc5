package booking

import (
	"errors"

	"roombooking/internal/access"
)

var (
	// ErrInvalidWindow is returned when a window fails the time rules.
	ErrInvalidWindow = errors.New("booking: invalid time window")
	// ErrConflict is returned when the room is already booked in the window.
	ErrConflict = errors.New("booking: room already booked")
	// ErrNotFound is returned for unknown rooms, groups or reservations.
	ErrNotFound = errors.New("booking: not found")
	// ErrPersistence is returned when the repository fails a read or write.
	ErrPersistence = errors.New("booking: persistence failure")
	// ErrInvalidRequest is returned for malformed input other than the window.
	ErrInvalidRequest = errors.New("booking: invalid request")
	// ErrForbidden is returned when the caller may not perform the change.
	ErrForbidden = errors.New("booking: forbidden")
)

// ErrorKind maps engine errors to a stable label for logs, metrics and
// transport status codes.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden), access.IsAccessDenied(err):
		return "forbidden"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	}
	return "unexpected"
}
