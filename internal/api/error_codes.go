// internal/api/error_codes.go
package api

// API error codes not derived from an AppError type.
const (
	ErrorBadRequest         = "BAD_REQUEST"
	ErrorNotFound           = "NOT_FOUND"
	ErrorInternalError      = "INTERNAL_ERROR"
	ErrorConflict           = "CONFLICT"
	ErrorForbidden          = "FORBIDDEN"
	ErrorUnauthorized       = "UNAUTHORIZED"
	ErrorAuthRequired       = "AUTH_REQUIRED"
	ErrorInvalidJSON        = "INVALID_JSON"
	ErrorRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrorPaymentRequired    = "INSUFFICIENT_CREDITS"
	ErrorServiceUnavailable = "AI_SERVICE_ERROR"

	ErrorTaskNotFound       = "TASK_NOT_FOUND"
	ErrorStoryNotReady      = "STORY_NOT_READY"
	ErrorCollectionNotFound = "COLLECTION_NOT_FOUND"
)
