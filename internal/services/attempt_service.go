package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/proctoring-service/internal/events"
	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
	"github.com/SAP-F-2025/proctoring-service/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	registry  AttemptRegistry
	access    TestAccessService
	publisher events.EventPublisher
	validator *validator.Validator
	logger    *ServiceLogger
	clock     func() time.Time
}

func NewAttemptService(
	repo repositories.Repository,
	registry AttemptRegistry,
	access TestAccessService,
	publisher events.EventPublisher,
	validator *validator.Validator,
	logger *ServiceLogger,
) AttemptService {
	return &attemptService{
		repo:      repo,
		registry:  registry,
		access:    access,
		publisher: publisher,
		validator: validator,
		logger:    logger,
		clock:     now,
	}
}

// Start opens the attempt for the pair. Starting an attempt that is already
// in progress returns it unchanged.
func (s *attemptService) Start(ctx context.Context, req *models.StartTestRequest) (attempt *models.ExamAttempt, err error) {
	req.Normalize()
	op := s.logger.WithOperation(ctx, "start_test", req.TestID, req.StudentID)
	var attemptID uint
	defer func() { op.LogResult(attemptID, err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.repo.Ping(ctx); err != nil {
		return nil, storeError("ping store", err)
	}

	startedAt := s.clock()
	test, err := s.access.Resolve(ctx, req.TestID, req.StudentID)
	if err != nil {
		return nil, err
	}
	if err := checkWindow(test, startedAt); err != nil {
		return nil, err
	}

	current, _, err := s.registry.GetOrCreate(ctx, req.TestID, req.StudentID)
	if err != nil {
		return nil, err
	}
	attemptID = current.ID
	if current.IsSubmitted() {
		return nil, ErrAttemptAlreadySubmitted
	}

	var started bool
	attempt, err = s.registry.Mutate(ctx, current.ID, func(a *models.ExamAttempt) error {
		started = a.Status != models.AttemptInProgress
		return a.Begin(startedAt)
	})
	if err != nil {
		return nil, err
	}

	if started {
		publish(ctx, s.publisher, s.logger, events.NewDomainEvent(events.EventAttemptStarted, events.AttemptKey(req.TestID, req.StudentID), events.AttemptStartedEvent{
			AttemptID: attempt.ID,
			TestID:    attempt.TestID,
			StudentID: attempt.StudentID,
			StartedAt: startedAt,
		}))
	}
	return attempt, nil
}

func (s *attemptService) GetDetail(ctx context.Context, testID, studentID string) (*models.AttemptDetail, error) {
	attempt, err := s.registry.Get(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}

	ledger, err := s.repo.Ledger().ListByAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, storeError("list proctoring events", err)
	}
	detail := &models.AttemptDetail{
		Attempt: attempt,
		Events:  make([]models.ProctoringEvent, 0, len(ledger)),
	}
	for _, e := range ledger {
		detail.Events = append(detail.Events, *e)
	}
	return detail, nil
}
