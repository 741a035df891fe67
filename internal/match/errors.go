package match

import "errors"

// Errors returned by the engine and the stores. Callers match them with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("match not found")
	ErrNotAuthorized    = errors.New("only the lobby creator can cancel it")
	ErrAlreadyResolved  = errors.New("match already resolved")
	ErrAlreadyCancelled = errors.New("match already cancelled")
	ErrStoreUnavailable = errors.New("match store unavailable")

	// ErrClaimConflict means a conditional update lost against a concurrent writer.
	// The engine absorbs it; it never reaches SubmitScore callers.
	ErrClaimConflict = errors.New("match changed concurrently")
)

// ValidationError represents a rejected submission field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match validation failures.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// stateError maps a terminal state to its conflict error.
func stateError(s State) error {
	switch s {
	case StateCompleted:
		return ErrAlreadyResolved
	case StateCancelled:
		return ErrAlreadyCancelled
	default:
		return nil
	}
}
