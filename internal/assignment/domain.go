package assignment

import (
	"errors"

	"github.com/lostfound/lostfound/internal/interests"
	"github.com/lostfound/lostfound/internal/items"
	"github.com/lostfound/lostfound/internal/shared"
)

// Result is the committed outcome of an assignment.
type Result struct {
	Item     items.Item         `json:"item"`
	Interest interests.Interest `json:"interest"`
}

// Outcome labels reported to metrics.
const (
	OutcomeAssigned     = "assigned"
	OutcomeNotFound     = "not_found"
	OutcomeInvalidState = "invalid_state"
	OutcomeForbidden    = "forbidden"
	OutcomeConflict     = "conflict"
	OutcomeError        = "error"
)

// OutcomeOf classifies the error returned by AssignReceiver.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeAssigned
	case errors.Is(err, shared.ErrInternal):
		return OutcomeError
	case errors.Is(err, shared.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, shared.ErrInvalidState):
		return OutcomeInvalidState
	case errors.Is(err, shared.ErrForbidden):
		return OutcomeForbidden
	case errors.Is(err, shared.ErrConflict):
		return OutcomeConflict
	default:
		return OutcomeError
	}
}
