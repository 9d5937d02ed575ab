package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation marks malformed input. The caller should fix the request and retry.
	ErrValidation = errors.New("validation error")
	// ErrAuthorization marks a caller lacking the required role or verification.
	ErrAuthorization = errors.New("authorization error")
	// ErrNotFound marks an unknown holder or campaign.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState marks an operation that is illegal in the current lifecycle state.
	ErrInvalidState = errors.New("invalid state")
	// ErrAlreadyVerified marks a resubmission for an identity that is already verified.
	ErrAlreadyVerified = errors.New("already verified")
)

// Error carries a taxonomy kind together with enough detail to render a message.
type Error struct {
	Kind    error
	Op      string
	Field   string
	Message string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Kind }

// Validation builds an ErrValidation error for the named field.
func Validation(op, field, message string) error {
	return &Error{Kind: ErrValidation, Op: op, Field: field, Message: message}
}

// Authorization builds an ErrAuthorization error.
func Authorization(op, message string) error {
	return &Error{Kind: ErrAuthorization, Op: op, Message: message}
}

// NotFound builds an ErrNotFound error.
func NotFound(op, message string) error {
	return &Error{Kind: ErrNotFound, Op: op, Message: message}
}

// InvalidState builds an ErrInvalidState error.
func InvalidState(op, message string) error {
	return &Error{Kind: ErrInvalidState, Op: op, Message: message}
}

// AlreadyVerified builds an ErrAlreadyVerified error.
func AlreadyVerified(op, message string) error {
	return &Error{Kind: ErrAlreadyVerified, Op: op, Message: message}
}

// Code returns the machine readable code for err, or "internal_error" when err
// does not belong to the taxonomy.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrAuthorization):
		return "authorization_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrAlreadyVerified):
		return "already_verified"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps err onto the response status the API returns for it.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrAlreadyVerified):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
