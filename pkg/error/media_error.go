package error

import (
	"errors"
	"net/http"

	"github.com/AzielCF/az-wrap/domains/media"
)

// MediaError carries a pipeline failure to a REST client.
type MediaError struct {
	Err    error
	Code   string
	Status int
}

func (err MediaError) Error() string {
	return err.Err.Error()
}

func (err MediaError) Unwrap() error {
	return err.Err
}

func (err MediaError) ErrCode() string {
	return err.Code
}

func (err MediaError) StatusCode() int {
	return err.Status
}

// FromMediaError maps the media error taxonomy to a GenericError.
func FromMediaError(err error) GenericError {
	var g GenericError
	if errors.As(err, &g) {
		return g
	}
	switch {
	case errors.Is(err, media.ErrInvariantViolation):
		return MediaError{Err: err, Code: "INVARIANT_VIOLATION", Status: http.StatusUnprocessableEntity}
	case errors.Is(err, media.ErrCancelled):
		return MediaError{Err: err, Code: "CANCELLED", Status: http.StatusConflict}
	case errors.Is(err, media.ErrDecodeFailure):
		return MediaError{Err: err, Code: "DECODE_FAILURE", Status: http.StatusUnprocessableEntity}
	case errors.Is(err, media.ErrTransportFailure):
		return MediaError{Err: err, Code: "TRANSPORT_FAILURE", Status: http.StatusBadGateway}
	case errors.Is(err, media.ErrNoLocator):
		return NotFoundError(err.Error())
	default:
		return InternalServerError(err.Error())
	}
}
