package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/proctoring-service/internal/events"
	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
	"github.com/SAP-F-2025/proctoring-service/internal/scoring"
	"github.com/SAP-F-2025/proctoring-service/internal/validator"
)

// submissionGrace is how far past the test's end time a session may end.
const submissionGrace = 5 * time.Minute

type submissionService struct {
	repo      repositories.Repository
	registry  AttemptRegistry
	access    TestAccessService
	tests     repositories.TestRegistry
	publisher events.EventPublisher
	validator *validator.Validator
	logger    *ServiceLogger
}

func NewSubmissionService(
	repo repositories.Repository,
	registry AttemptRegistry,
	access TestAccessService,
	tests repositories.TestRegistry,
	publisher events.EventPublisher,
	validator *validator.Validator,
	logger *ServiceLogger,
) SubmissionService {
	return &submissionService{
		repo:      repo,
		registry:  registry,
		access:    access,
		tests:     tests,
		publisher: publisher,
		validator: validator,
		logger:    logger,
	}
}

// Submit grades the answers and freezes the attempt. The trust score earned
// from chunks is kept; without chunk evidence it falls back to the number
// of violations the client reported.
func (s *submissionService) Submit(ctx context.Context, req *models.SubmitTestRequest) (result *models.SubmissionResult, err error) {
	req.Normalize()
	op := s.logger.WithOperation(ctx, "submit_test", req.TestID, req.StudentID)
	var attemptID uint
	defer func() { op.LogResult(attemptID, err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	log := s.logger.Logger().With("test_id", req.TestID, "student_id", req.StudentID)

	if err := s.repo.Ping(ctx); err != nil {
		return nil, storeError("ping store", err)
	}

	startedAt, endedAt := req.StartTime.Time, req.EndTime.Time
	test, err := s.access.Resolve(ctx, req.TestID, req.StudentID)
	if err != nil {
		return nil, err
	}
	if err := checkWindow(test, startedAt); err != nil {
		return nil, err
	}
	if !test.EndTime.IsZero() && endedAt.After(test.EndTime.Add(submissionGrace)) {
		log.WarnContext(ctx, "Rejecting submission ending after the test window",
			"end_time", endedAt, "test_end_time", test.EndTime)
		return nil, ErrTestEnded
	}

	attempt, _, err := s.registry.GetOrCreate(ctx, req.TestID, req.StudentID)
	if err != nil {
		return nil, err
	}
	attemptID = attempt.ID
	if attempt.IsSubmitted() {
		return nil, ErrAttemptAlreadySubmitted
	}

	keys, err := s.tests.GetAnswerKeys(ctx, test.QuestionIDs)
	if err != nil {
		return nil, storeError("get answer keys", err)
	}
	graded := gradeAnswers(test.QuestionIDs, keys, req.Answers)
	if len(graded.Ignored) > 0 {
		log.WarnContext(ctx, "Ignoring answers for questions outside the test", "question_ids", graded.Ignored)
	}

	var appended int
	updated, err := s.registry.MutateWithTx(ctx, attempt.ID, func(tx repositories.Repository, a *models.ExamAttempt) error {
		if err := a.Begin(startedAt); err != nil {
			return err
		}

		ledger, err := tx.Ledger().ListByAttempt(ctx, a.ID)
		if err != nil {
			return err
		}
		chunkEvents := 0
		for _, e := range ledger {
			if e.Source == models.SourceChunk || e.Source == "" {
				chunkEvents++
			}
		}

		for _, event := range unmatchedReports(a.ID, ledger, req.Violations, endedAt) {
			if _, err := tx.Ledger().Append(ctx, event); err != nil {
				return err
			}
			appended++
		}
		total, err := tx.Ledger().CountByAttempt(ctx, a.ID)
		if err != nil {
			return err
		}

		if chunkEvents == 0 {
			a.TrustScore = min(a.TrustScore, scoring.FallbackFromCount(len(req.Violations)))
		}
		a.TotalViolations = total
		a.Answers = graded.Answers
		a.TotalScore = graded.TotalScore
		a.QuestionsAttempted = graded.QuestionsAttempted
		return a.Finish(startedAt, endedAt)
	})
	if err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "Attempt submitted",
		"attempt_id", updated.ID,
		"total_score", updated.TotalScore,
		"trust_score", updated.TrustScore,
		"total_violations", updated.TotalViolations,
		"reported_violations_added", appended)

	publish(ctx, s.publisher, s.logger, events.NewDomainEvent(events.EventAttemptSubmitted, events.AttemptKey(req.TestID, req.StudentID), events.AttemptSubmittedEvent{
		AttemptID:          updated.ID,
		TestID:             updated.TestID,
		StudentID:          updated.StudentID,
		TotalScore:         updated.TotalScore,
		TrustScore:         updated.TrustScore,
		TotalViolations:    updated.TotalViolations,
		QuestionsAttempted: updated.QuestionsAttempted,
		Duration:           updated.Duration,
		SubmittedAt:        endedAt,
	}))

	return &models.SubmissionResult{
		ActualScore:    updated.TotalScore,
		TrustScore:     updated.TrustScore,
		ViolationCount: updated.TotalViolations,
	}, nil
}

// unmatchedReports returns ledger rows for reported violations that the
// ledger does not already hold. Each ledger event absorbs at most one report:
// a timestamped report matches on label and second, an untimed one on label.
func unmatchedReports(attemptID uint, ledger []*models.ProctoringEvent, reported []models.ReportedViolation, fallback time.Time) []*models.ProctoringEvent {
	used := make([]bool, len(ledger))
	match := func(label models.ViolationLabel, at *models.Timestamp) bool {
		for i, e := range ledger {
			if used[i] || e.Label != label {
				continue
			}
			if at != nil && !at.IsZero() && e.Timestamp.Unix() != at.Unix() {
				continue
			}
			used[i] = true
			return true
		}
		return false
	}

	var out []*models.ProctoringEvent
	for _, r := range reported {
		label := NormalizeLabel(r.Type)
		if match(label, r.Timestamp) {
			continue
		}
		out = append(out, &models.ProctoringEvent{
			AttemptID:     attemptID,
			Timestamp:     r.Timestamp.TimeOr(fallback),
			Label:         label,
			Severity:      NormalizeSeverity(r.Severity),
			Source:        models.SourceSubmission,
			DetectorLabel: r.Type,
		})
	}
	return out
}
