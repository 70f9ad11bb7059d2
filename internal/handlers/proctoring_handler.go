package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/services"
	"github.com/SAP-F-2025/proctoring-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ProctoringHandler struct {
	BaseHandler
	chunks      services.ChunkIntake
	submissions services.SubmissionService
	attempts    services.AttemptService
	tests       services.TestAccessService
	reviews     services.ReviewService
	reports     services.ReportService
}

func NewProctoringHandler(serviceManager services.ServiceManager, logger utils.Logger) *ProctoringHandler {
	return &ProctoringHandler{
		BaseHandler: NewBaseHandler(logger),
		chunks:      serviceManager.Chunk(),
		submissions: serviceManager.Submission(),
		attempts:    serviceManager.Attempt(),
		tests:       serviceManager.TestAccess(),
		reviews:     serviceManager.Review(),
		reports:     serviceManager.Report(),
	}
}

// ProctorChunk classifies one evidence segment
// @Router /proctor-chunk [post]
func (h *ProctoringHandler) ProctorChunk(c *gin.Context) {
	var req models.ProctorChunkRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := authorizeStudent(c, req.StudentID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	result, err := h.chunks.Ingest(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// StartTest opens the caller's attempt
// @Router /start-test [post]
func (h *ProctoringHandler) StartTest(c *gin.Context) {
	var req models.StartTestRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := authorizeStudent(c, req.StudentID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Starting test", "test_id", req.TestID, "student_id", req.StudentID)

	attempt, err := h.attempts.Start(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SubmitTest grades and freezes the caller's attempt
// @Router /submit-test [post]
func (h *ProctoringHandler) SubmitTest(c *gin.Context) {
	var req models.SubmitTestRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := authorizeStudent(c, req.StudentID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Submitting test", "test_id", req.TestID, "student_id", req.StudentID)

	result, err := h.submissions.Submit(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTest returns the question list without answer keys
// @Router /test/{testId} [get]
func (h *ProctoringHandler) GetTest(c *gin.Context) {
	testID := ParseStringIDParam(c, "testId")
	if testID == "" {
		return
	}

	studentID := strings.TrimSpace(c.Query("studentId"))
	email := strings.TrimSpace(c.Query("email"))
	if identity := IdentityFromContext(c); identity != nil {
		if studentID == "" && email == "" {
			studentID, email = identity.Subject(), identity.Email
		} else if !identity.Matches(studentID) && !identity.Matches(email) {
			requested := studentID
			if requested == "" {
				requested = email
			}
			h.handleServiceError(c, &services.IdentityMismatchError{Authenticated: identity.Subject(), Requested: requested})
			return
		}
	}

	view, err := h.tests.GetTestView(c.Request.Context(), testID, studentID, email)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetAttempt returns an attempt and its proctoring events
// @Router /attempts/{testId}/{studentId} [get]
func (h *ProctoringHandler) GetAttempt(c *gin.Context) {
	testID, studentID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	detail, err := h.attempts.GetDetail(c.Request.Context(), testID, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// GetAttemptReport downloads the attempt's proctoring report as xlsx
// @Router /attempts/{testId}/{studentId}/report [get]
func (h *ProctoringHandler) GetAttemptReport(c *gin.Context) {
	testID, studentID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	data, err := h.reports.AttemptReport(c.Request.Context(), testID, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("proctoring-%s-%s.xlsx", testID, studentID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ReviewEvent records a reviewer's verdict on a proctoring event
// @Router /proctoring-events/{id}/review [patch]
func (h *ProctoringHandler) ReviewEvent(c *gin.Context) {
	eventID := ParseUintParam(c, "id")
	if eventID == 0 {
		return
	}

	var req models.ReviewEventRequest
	if !h.bindJSON(c, &req) {
		return
	}
	// An authenticated reviewer is recorded as themselves.
	if identity := IdentityFromContext(c); identity != nil {
		req.Reviewer = identity.Subject()
	}

	h.LogRequest(c, "Reviewing proctoring event", "event_id", eventID, "verdict", req.Verdict)

	event, err := h.reviews.Review(c.Request.Context(), eventID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (h *ProctoringHandler) attemptParams(c *gin.Context) (string, string, bool) {
	testID := ParseStringIDParam(c, "testId")
	if testID == "" {
		return "", "", false
	}
	studentID := ParseStringIDParam(c, "studentId")
	if studentID == "" {
		return "", "", false
	}
	if err := authorizeStudent(c, studentID); err != nil {
		h.handleServiceError(c, err)
		return "", "", false
	}
	return testID, studentID, true
}
