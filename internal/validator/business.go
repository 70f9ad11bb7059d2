package validator

import (
	"strings"

	"github.com/SAP-F-2025/proctoring-service/internal/errors"
	"github.com/SAP-F-2025/proctoring-service/internal/models"
)

// BusinessValidator checks cross-field rules that struct tags cannot express.
type BusinessValidator struct{}

func NewBusinessValidator() *BusinessValidator {
	return &BusinessValidator{}
}

// Validate dispatches on the request type. Unknown types pass.
func (b *BusinessValidator) Validate(s interface{}) ValidationErrors {
	switch req := s.(type) {
	case *models.SubmitTestRequest:
		return b.ValidateSubmission(req)
	default:
		return nil
	}
}

// ValidateSubmission requires a non-negative session and answer keys that name a question.
func (b *BusinessValidator) ValidateSubmission(req *models.SubmitTestRequest) ValidationErrors {
	var errs ValidationErrors

	if req.StartTime != nil && req.EndTime != nil && req.EndTime.Before(req.StartTime.Time) {
		errs = append(errs, *errors.NewValidationErrorWithRule("endTime", "must not be before startTime", "session_range", req.EndTime.Time))
	}

	for questionID := range req.Answers {
		if strings.TrimSpace(questionID) == "" {
			errs = append(errs, *errors.NewValidationErrorWithRule("answers", "question id must not be blank", "not_blank", questionID))
			break
		}
	}

	return errs
}
