package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/SAP-F-2025/proctoring-service/internal/events"
	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
	"github.com/SAP-F-2025/proctoring-service/internal/validator"
)

type reviewService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	validator *validator.Validator
	logger    *ServiceLogger
	clock     func() time.Time
}

func NewReviewService(repo repositories.Repository, publisher events.EventPublisher, validator *validator.Validator, logger *ServiceLogger) ReviewService {
	return &reviewService{
		repo:      repo,
		publisher: publisher,
		validator: validator,
		logger:    logger,
		clock:     now,
	}
}

// Review attaches a reviewer's verdict to a ledger event. It is allowed on
// submitted attempts and never changes any score.
func (s *reviewService) Review(ctx context.Context, eventID uint, req *models.ReviewEventRequest) (event *models.ProctoringEvent, err error) {
	op := s.logger.WithOperation(ctx, "review_event", "", req.Reviewer)
	defer func() {
		var attemptID uint
		if event != nil {
			attemptID = event.AttemptID
		}
		op.LogResult(attemptID, err)
	}()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	review := models.Review{
		Verdict:  req.Verdict,
		Reviewer: strings.TrimSpace(req.Reviewer),
		Notes:    req.Notes,
		At:       s.clock(),
	}
	event, err = s.repo.Ledger().Annotate(ctx, eventID, review)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrEventNotFound
		}
		return nil, storeError("annotate proctoring event", err)
	}

	publish(ctx, s.publisher, s.logger, events.NewDomainEvent(events.EventViolationReviewed, "attempt:"+strconv.FormatUint(uint64(event.AttemptID), 10), events.ViolationReviewedEvent{
		EventID:   event.ID,
		AttemptID: event.AttemptID,
		Verdict:   review.Verdict,
		Reviewer:  review.Reviewer,
	}))
	return event, nil
}
