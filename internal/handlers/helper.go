package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/services"
)

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := c.Param(param)
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Code:    CodeMissingFields,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

func ParseUintParam(c *gin.Context, param string) uint {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		details := "ID must be a positive integer"
		if err != nil {
			details = err.Error()
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Code:    CodeMissingFields,
			Details: details,
		})
		return 0
	}
	return uint(id)
}

// handleServiceError maps service errors onto status codes and stable codes.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, CodeMissingFields, "Validation failed", err, validationErrors)
		return
	}

	var mismatch *services.IdentityMismatchError
	if errors.As(err, &mismatch) {
		h.RespondWithError(c, http.StatusForbidden, CodeForbidden, "Cannot act for another student", err)
		return
	}

	switch {
	case services.IsUnavailable(err):
		h.RespondWithError(c, http.StatusServiceUnavailable, CodeDatabaseUnavailable, "Database unavailable", err)
	case errors.Is(err, services.ErrAttemptAlreadySubmitted):
		h.RespondWithError(c, http.StatusConflict, CodeTestAlreadySubmitted, "Test already submitted", err)
	case errors.Is(err, services.ErrTestNotStarted):
		h.RespondWithError(c, http.StatusForbidden, CodeTestNotStarted, "Test has not started yet", err)
	case errors.Is(err, services.ErrTestEnded):
		h.RespondWithError(c, http.StatusForbidden, CodeTestEnded, "Test has ended", err)
	case errors.Is(err, services.ErrTestNotFound):
		h.RespondWithError(c, http.StatusNotFound, CodeTestNotFound, "Test not found", err)
	case errors.Is(err, services.ErrAttemptNotFound):
		h.RespondWithError(c, http.StatusNotFound, CodeAttemptNotFound, "Attempt not found", err)
	case errors.Is(err, services.ErrEventNotFound):
		h.RespondWithError(c, http.StatusNotFound, CodeEventNotFound, "Proctoring event not found", err)
	case errors.Is(err, services.ErrForbidden):
		h.RespondWithError(c, http.StatusForbidden, CodeForbidden, "Access denied", err)
	case errors.Is(err, services.ErrAttemptConflict):
		h.RespondWithError(c, http.StatusInternalServerError, CodeAttemptConflict, "Attempt could not be created", err)
	case errors.Is(err, models.ErrInvalidTransition):
		h.RespondWithError(c, http.StatusConflict, CodeInvalidTransition, "Invalid attempt state", err)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, CodeInternal, "Internal server error", err)
	}
}

// bindJSON decodes the body; a malformed body is answered like missing fields.
func (h *BaseHandler) bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeMissingFields, "Invalid request payload", err, err.Error())
		return false
	}
	return true
}
