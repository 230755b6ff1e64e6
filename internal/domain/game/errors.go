package game

import "github.com/cockroachdb/errors"

// Error categories. Concrete errors are marked with one of these so callers
// can match them with errors.Is regardless of the message.
var (
	ErrValidation               = errors.New("validation error")
	ErrState                    = errors.New("operation not allowed in current phase")
	ErrCapacity                 = errors.New("session is full")
	ErrNotFound                 = errors.New("not found")
	ErrConcurrency              = errors.New("session is busy")
	ErrAutomationDisabled       = errors.New("automation disabled")
	ErrInsufficientParticipants = errors.New("insufficient participants")
	ErrAlreadyAssigned          = errors.New("roles already assigned")
	ErrInvalidTransition        = errors.New("invalid transition")
	ErrRejected                 = errors.New("rejected")
)

// Validationf returns a validation error with a formatted message.
func Validationf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

// NotFoundf returns a not-found error with a formatted message.
func NotFoundf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

// Statef returns a state error with a formatted message.
func Statef(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrState)
}

// InvalidTransition returns an error describing a rejected edge.
func InvalidTransition(from, to Status) error {
	return errors.Mark(errors.Newf("cannot move from %s to %s", from, to), ErrInvalidTransition)
}
