// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType classifies an AppError.
type ErrorType string

const (
	ErrorTypeValidation          ErrorType = "validation_error"
	ErrorTypeNotFound            ErrorType = "not_found"
	ErrorTypeError               ErrorType = "processing_error"
	ErrorTypeUnauthorized        ErrorType = "unauthorized"
	ErrorTypeForbidden           ErrorType = "forbidden"
	ErrorTypeConflict            ErrorType = "conflict"
	ErrorTypeTimeout             ErrorType = "timeout"
	ErrorTypeInsufficientCredits ErrorType = "insufficient_credits"
	ErrorTypeAIUnavailable       ErrorType = "ai_unavailable"
	ErrorTypeExternalService     ErrorType = "external_service"
)

// AppError carries a type, a user facing message and an error code.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string
	Details interface{}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithCode overrides the generated code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails attaches a payload rendered in the error body.
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

func NewUnauthorizedError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeUnauthorized, message, originalError)
}

func NewForbiddenError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeForbidden, message, originalError)
}

func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

func NewExternalServiceError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeExternalService, message, originalError)
}

func isType(err error, t ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == t
	}
	return false
}

func IsValidationError(err error) bool   { return isType(err, ErrorTypeValidation) }
func IsNotFoundError(err error) bool     { return isType(err, ErrorTypeNotFound) }
func IsUnauthorizedError(err error) bool { return isType(err, ErrorTypeUnauthorized) }
func IsForbiddenError(err error) bool    { return isType(err, ErrorTypeForbidden) }
func IsConflictError(err error) bool     { return isType(err, ErrorTypeConflict) }

func IsInsufficientCreditsError(err error) bool {
	return isType(err, ErrorTypeInsufficientCredits)
}

func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeUnauthorized:
		return "UNAUTHORIZED"
	case ErrorTypeForbidden:
		return "FORBIDDEN"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeInsufficientCredits:
		return "INSUFFICIENT_CREDITS"
	case ErrorTypeAIUnavailable:
		return "AI_SERVICE_ERROR"
	case ErrorTypeExternalService:
		return "EXTERNAL_SERVICE_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError wraps err, keeping the type of an existing AppError.
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
			Details: appError.Details,
		}
	}

	return NewAppError(errType, message, err)
}

// ClassifyAIError turns a raw LLM failure into a typed error.
// Provider errors surface as text, so the match is on the message.
func ClassifyAIError(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		return appError
	}

	text := err.Error()
	switch {
	case strings.Contains(text, "402") || strings.Contains(strings.ToLower(text), "insufficient credits"):
		return NewAppError(ErrorTypeInsufficientCredits,
			"Insufficient AI credits. Please add more credits to your account to continue using AI features.", err)
	case strings.Contains(text, "Failed to generate"):
		return NewAppError(ErrorTypeAIUnavailable,
			"AI generation failed. Please try again in a moment.", err).WithCode("AI_GENERATION_ERROR")
	case strings.Contains(text, "OpenRouter"):
		return NewAppError(ErrorTypeAIUnavailable,
			"AI service is temporarily unavailable. Please try again later.", err)
	default:
		return NewProcessingError(message, err)
	}
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	var appError *AppError
	if !errors.As(err, &appError) {
		return http.StatusInternalServerError
	}

	switch appError.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeInsufficientCredits:
		return http.StatusPaymentRequired
	case ErrorTypeAIUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
