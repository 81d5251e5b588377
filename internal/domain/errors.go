package domain

import "errors"

// ValidationError is a user-input failure recovered at the boundary. Field
// names the offending input when it is known (e.g. a uniqueness conflict).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Conflict messages match the storage uniqueness constraints one-to-one.
const (
	MsgEmailTaken    = "Email address is already registered"
	MsgCampusIDTaken = "Campus ID is already registered"
	MsgPhoneTaken    = "Phone number is already registered"
)

var (
	// ErrNotFound covers both a missing record and, for authentication, a
	// wrong password. The caller cannot tell the two apart.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCode is returned for a verification code that does not match
	// the outstanding challenge.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrEmailNotVerified gates login while an email challenge is outstanding.
	ErrEmailNotVerified = errors.New("email not verified")

	// ErrForbidden is returned when a caller touches a record it does not own.
	ErrForbidden = errors.New("forbidden")
)

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
