package errs

import (
	"errors"
	"net/http"
)

var (
	ErrEmailRequired      = errors.New("E0001: email is required")
	ErrInvalidBody        = errors.New("E0002: request body must be a JSON object")
	ErrDatabase           = errors.New("E0004: database error")
	ErrEmailAddressFormat = errors.New("E0008: email address format incorrect")
	ErrAlreadyExists      = errors.New("E0010: user already exists")
	ErrNotFound           = errors.New("E0014: not found")
	ErrInvalidID          = errors.New("E0015: invalid ID")
	ErrInvalidRole        = errors.New("E0016: invalid role")
	ErrNothingToUpdate    = errors.New("E0017: nothing to update")
	ErrQueue              = errors.New("E0020: queue error")
	ErrInternal           = errors.New("E0021: internal server error")
	ErrMethodNotAllowed   = errors.New("E0022: method not allowed")
)

// HTTPStatus maps a handler error onto the status code it is reported with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidBody),
		errors.Is(err, ErrEmailRequired),
		errors.Is(err, ErrEmailAddressFormat),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrNothingToUpdate):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the message that is safe to hand to a client. Anything that
// is not one of the coded errors above collapses into ErrDatabase.
func Public(err error) error {
	for _, known := range []error{
		ErrEmailRequired, ErrInvalidBody, ErrDatabase, ErrEmailAddressFormat,
		ErrAlreadyExists, ErrNotFound, ErrInvalidID, ErrInvalidRole,
		ErrNothingToUpdate, ErrQueue, ErrInternal, ErrMethodNotAllowed,
	} {
		if errors.Is(err, known) {
			return known
		}
	}
	return ErrDatabase
}
