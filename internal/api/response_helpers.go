// internal/api/response_helpers.go
package api

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/utils"
)

// APIResponse is the envelope every JSON route answers with.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError is the error part of the envelope.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type ResponseHelper struct{}

func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

func (rh *ResponseHelper) write(c *gin.Context, status int, data interface{}, message []string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(status, response)
}

func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	rh.write(c, http.StatusOK, data, message)
}

func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	if len(message) == 0 {
		message = []string{"Resource created"}
	}
	rh.write(c, http.StatusCreated, data, message)
}

// sanitizeErrorMessage hides messages that mention credentials.
func sanitizeErrorMessage(message string) string {
	lower := strings.ToLower(message)
	for _, pattern := range []string{"api_key", "apikey", "secret", "password", "bearer "} {
		if strings.Contains(lower, pattern) {
			return "An internal error occurred"
		}
	}
	return message
}

func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...interface{}) {
	apiError := &APIError{
		Code:    errorCode,
		Message: sanitizeErrorMessage(message),
	}
	if len(details) > 0 {
		apiError.Details = details[0]
	}

	c.JSON(statusCode, &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	})
}

func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...interface{}) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

func (rh *ResponseHelper) NotFound(c *gin.Context, message string, details ...interface{}) {
	rh.Error(c, http.StatusNotFound, ErrorNotFound, message, details...)
}

func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...interface{}) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

func (rh *ResponseHelper) Conflict(c *gin.Context, message string, details ...interface{}) {
	rh.Error(c, http.StatusConflict, ErrorConflict, message, details...)
}

func (rh *ResponseHelper) PaymentRequired(c *gin.Context, message string, details ...interface{}) {
	rh.Error(c, http.StatusPaymentRequired, ErrorPaymentRequired, message, details...)
}

func (rh *ResponseHelper) ServiceUnavailable(c *gin.Context, message string, details ...interface{}) {
	rh.Error(c, http.StatusServiceUnavailable, ErrorServiceUnavailable, message, details...)
}

// PaginatedSuccess writes a service page as the data payload.
func (rh *ResponseHelper) PaginatedSuccess(c *gin.Context, page interface{}, message ...string) {
	rh.write(c, http.StatusOK, page, message)
}

// FromError maps err to its status and code. Unknown errors become a
// generic 500 and are logged.
func (rh *ResponseHelper) FromError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !stderrors.As(err, &appErr) {
		utils.GetLogger().Named("api").Error("unhandled error", map[string]interface{}{
			"path":       c.FullPath(),
			"request_id": rh.getRequestID(c),
			"error":      err.Error(),
		})
		rh.InternalError(c, "Internal server error")
		return
	}

	status := apperrors.HTTPStatus(appErr)
	if status >= http.StatusInternalServerError {
		utils.GetLogger().Named("api").Warn("request failed", map[string]interface{}{
			"path":       c.FullPath(),
			"request_id": rh.getRequestID(c),
			"error":      appErr.Error(),
		})
	}

	if appErr.Details != nil {
		rh.Error(c, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	rh.Error(c, status, appErr.Code, appErr.Message)
}

func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
