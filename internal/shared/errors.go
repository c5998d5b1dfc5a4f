package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a referenced entity is absent.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates an authorization or ownership violation.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a uniqueness or exclusivity violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState indicates the operation is illegal for the current status or kind.
	ErrInvalidState = errors.New("invalid state")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrInternal indicates an unexpected failure.
	ErrInternal = errors.New("internal error")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates a request without a usable principal.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Reason codes carried by *Error.
const (
	ReasonItem        = "item"
	ReasonReceiver    = "receiver"
	ReasonInterest    = "interest"
	ReasonRole        = "role"
	ReasonUser        = "user"
	ReasonPermission  = "permission"
	ReasonRequest     = "request"
	ReasonImplication = "implication"
	ReasonChatMessage = "chat_message"

	ReasonItemNotActive     = "item_not_active"
	ReasonWrongKind         = "wrong_kind"
	ReasonItemWithoutOwner  = "item_without_owner"
	ReasonIllegalTransition = "illegal_transition"

	ReasonRoleDenied     = "role_denied"
	ReasonInactive       = "inactive_principal"
	ReasonSelfAssignment = "self_assignment"
	ReasonSelfInterest   = "self_interest"
	ReasonSelfRequest    = "self_request"
	ReasonNotOwner       = "not_owner"
	ReasonMissingProof   = "missing_proof"
	ReasonProtectedRole  = "protected_role"

	ReasonAlreadyAssigned   = "already_assigned"
	ReasonDuplicateInterest = "duplicate_interest"
	ReasonDuplicateRole     = "duplicate_role"
	ReasonDuplicateRequest  = "duplicate_request"
	ReasonDuplicateName     = "duplicate_name"
	ReasonRoleInUse         = "role_in_use"
	ReasonCycle             = "implication_cycle"
	ReasonSerialization     = "concurrent_update"
)

// Error is a typed domain error. Kind is one of the sentinel errors above.
type Error struct {
	Kind    error
	Reason  string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return e.Kind.Error()
}

// Unwrap exposes the sentinel kind to errors.Is.
func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, reason, format string, args ...any) *Error {
	msg := ""
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Reason: reason, Message: msg}
}

// NotFound builds an ErrNotFound error.
func NotFound(reason, format string, args ...any) error {
	return newError(ErrNotFound, reason, format, args...)
}

// Forbidden builds an ErrForbidden error.
func Forbidden(reason, format string, args ...any) error {
	return newError(ErrForbidden, reason, format, args...)
}

// Conflict builds an ErrConflict error.
func Conflict(reason, format string, args ...any) error {
	return newError(ErrConflict, reason, format, args...)
}

// InvalidState builds an ErrInvalidState error.
func InvalidState(reason, format string, args ...any) error {
	return newError(ErrInvalidState, reason, format, args...)
}

// Validation builds an ErrValidation error.
func Validation(format string, args ...any) error {
	return newError(ErrValidation, "", format, args...)
}

// Internal wraps an unexpected failure so callers can still unwrap the cause.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}

// ReasonOf returns the reason code of the first *Error in the chain.
func ReasonOf(err error) string {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Reason
	}
	return ""
}

// IsDomain reports whether err belongs to the user-facing taxonomy.
func IsDomain(err error) bool {
	switch {
	case errors.Is(err, ErrInternal):
		return false
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden), errors.Is(err, ErrConflict),
		errors.Is(err, ErrInvalidState), errors.Is(err, ErrValidation):
		return true
	default:
		return false
	}
}
