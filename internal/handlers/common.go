package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/proctoring-service/internal/utils"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Stable error codes returned to clients
const (
	CodeMissingFields        = "MISSING_FIELDS"
	CodeDatabaseUnavailable  = "DATABASE_UNAVAILABLE"
	CodeTestAlreadySubmitted = "TEST_ALREADY_SUBMITTED"
	CodeTestNotStarted       = "TEST_NOT_STARTED"
	CodeTestEnded            = "TEST_ENDED"
	CodeTestNotFound         = "TEST_NOT_FOUND"
	CodeAttemptNotFound      = "ATTEMPT_NOT_FOUND"
	CodeEventNotFound        = "EVENT_NOT_FOUND"
	CodeAttemptConflict      = "ATTEMPT_CONFLICT"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeInternal             = "INTERNAL_ERROR"
)

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging functionality for all handlers
type BaseHandler struct {
	logger utils.Logger
}

// NewBaseHandler creates a new base handler with logging capability
func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

// requestLogger prefers the request-scoped logger set by utils.ContextLogger.
func (h *BaseHandler) requestLogger(c *gin.Context) utils.Logger {
	if l, exists := c.Get("logger"); exists {
		if typed, ok := l.(utils.Logger); ok {
			return typed
		}
	}
	return h.logger.With("request_id", utils.RequestID(c), "method", c.Request.Method, "path", c.Request.URL.Path)
}

// LogRequest logs incoming HTTP requests with context information
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"remote_addr", c.ClientIP(),
		"user_id", h.extractUserID(c),
	}
	fields = append(fields, additionalFields...)

	h.requestLogger(c).Info(message, fields...)
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	fields := append([]interface{}{"user_id", h.extractUserID(c)}, additionalFields...)
	h.requestLogger(c).LogError(err, message, fields...)
}

// LogWarn logs warning messages with context
func (h *BaseHandler) LogWarn(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := append([]interface{}{"user_id", h.extractUserID(c)}, additionalFields...)
	h.requestLogger(c).Warn(message, fields...)
}

// Helper method to extract user ID from context
func (h *BaseHandler) extractUserID(c *gin.Context) interface{} {
	if identity := IdentityFromContext(c); identity != nil {
		return identity.Subject()
	}
	return nil
}

// RespondWithError sends a consistent error response and logs it
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, code, message string, err error, details ...interface{}) {
	errorResp := ErrorResponse{
		Message: message,
		Code:    code,
	}

	if len(details) > 0 {
		errorResp.Details = details[0]
	}

	if err != nil && statusCode >= 500 {
		h.LogError(c, err, message, "status_code", statusCode, "code", code)
	} else {
		h.LogWarn(c, message, "status_code", statusCode, "code", code)
	}

	c.AbortWithStatusJSON(statusCode, errorResp)
}
