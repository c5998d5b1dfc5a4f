// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/lostfound/lostfound/internal/shared"
)

// Transport-level sentinel errors.
var (
	ErrValidation   = shared.ErrValidation
	ErrUnauthorized = shared.ErrUnauthenticated
	ErrBadID        = errors.New("invalid id")
)

// StatusOf maps an error to the HTTP status the transport reports for it.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, shared.ErrInternal):
		return http.StatusInternalServerError
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrInvalidState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrValidation), errors.Is(err, ErrBadID):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrUnauthenticated), errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Internal failures never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		Problem(w, status, "Internal Error", "")
		return
	}
	writeProblem(w, ProblemDetail{
		Type:   shared.ReasonOf(err),
		Title:  http.StatusText(status),
		Status: status,
		Detail: err.Error(),
	})
}
