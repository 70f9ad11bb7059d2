package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
)

type testAccessService struct {
	tests  repositories.TestRegistry
	logger *slog.Logger
	clock  func() time.Time
}

func NewTestAccessService(tests repositories.TestRegistry, logger *slog.Logger) TestAccessService {
	return &testAccessService{
		tests:  tests,
		logger: logger,
		clock:  now,
	}
}

// Resolve hides tests the caller may not see behind ErrTestNotFound.
func (s *testAccessService) Resolve(ctx context.Context, testID string, identities ...string) (*models.Test, error) {
	test, err := s.tests.GetTest(ctx, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, storeError("get test", err)
	}
	if !test.Allows(identities...) {
		s.logger.Warn("Identity not on test allow-list", "test_id", testID)
		return nil, ErrTestNotFound
	}
	return test, nil
}

// checkWindow maps the test window state at t to an access error.
func checkWindow(test *models.Test, at time.Time) error {
	switch test.WindowStatus(at) {
	case models.WindowNotStarted:
		return ErrTestNotStarted
	case models.WindowEnded:
		return ErrTestEnded
	default:
		return nil
	}
}

func (s *testAccessService) GetTestView(ctx context.Context, testID, studentID, email string) (*models.TestView, error) {
	test, err := s.Resolve(ctx, testID, studentID, email)
	if err != nil {
		return nil, err
	}
	if err := checkWindow(test, s.clock()); err != nil {
		return nil, err
	}

	questions, err := s.tests.GetQuestions(ctx, test.QuestionIDs)
	if err != nil {
		return nil, storeError("get questions", err)
	}
	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	view := &models.TestView{
		TestID:    test.ID,
		Title:     test.Title,
		StartTime: test.StartTime,
		EndTime:   test.EndTime,
		Duration:  test.Duration,
		Questions: make([]models.Question, 0, len(test.QuestionIDs)),
	}
	for _, id := range test.QuestionIDs {
		q, ok := byID[id]
		if !ok {
			s.logger.Warn("Test references unknown question", "test_id", testID, "question_id", id)
			continue
		}
		view.Questions = append(view.Questions, q.Public())
	}
	return view, nil
}
