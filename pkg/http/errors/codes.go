package errors

// Error codes for standardized error responses
const (
	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"
	ErrCodeInvalidMatchID   = "invalid_match_id"

	// Resource errors
	ErrCodeNotFound = "not_found"

	// Match state errors
	ErrCodeNotAuthorized    = "not_authorized"
	ErrCodeAlreadyResolved  = "already_resolved"
	ErrCodeAlreadyCancelled = "already_cancelled"

	// Bot errors
	ErrCodeCommandFailed = "command_failed"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
)
