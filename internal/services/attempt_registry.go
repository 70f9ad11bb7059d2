package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/SAP-F-2025/proctoring-service/internal/lock"
	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
	"github.com/SAP-F-2025/proctoring-service/internal/scoring"
)

type attemptRegistry struct {
	repo   repositories.Repository
	locker lock.Locker
	logger *slog.Logger
}

func NewAttemptRegistry(repo repositories.Repository, locker lock.Locker, logger *slog.Logger) AttemptRegistry {
	return &attemptRegistry{
		repo:   repo,
		locker: locker,
		logger: logger,
	}
}

func (r *attemptRegistry) Get(ctx context.Context, testID, studentID string) (*models.ExamAttempt, error) {
	attempt, err := r.repo.Attempts().GetByKey(ctx, testID, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, storeError("get attempt", err)
	}
	return attempt, nil
}

// GetOrCreate resolves a lost creation race by re-reading the winner's row.
func (r *attemptRegistry) GetOrCreate(ctx context.Context, testID, studentID string) (*models.ExamAttempt, bool, error) {
	attempt, err := r.Get(ctx, testID, studentID)
	if err == nil {
		return attempt, false, nil
	}
	if !errors.Is(err, ErrAttemptNotFound) {
		return nil, false, err
	}

	attempt = models.NewExamAttempt(testID, studentID)
	err = r.repo.Attempts().Create(ctx, attempt)
	if err == nil {
		r.logger.Info("Created exam attempt",
			"attempt_id", attempt.ID,
			"test_id", testID,
			"student_id", studentID)
		return attempt, true, nil
	}
	if !repositories.IsDuplicateKeyError(err) {
		return nil, false, storeError("create attempt", err)
	}

	winner, err := r.repo.Attempts().GetByKey(ctx, testID, studentID)
	if err != nil {
		r.logger.Error("Attempt creation conflict could not be resolved",
			"test_id", testID,
			"student_id", studentID,
			"error", err)
		if errors.Is(err, repositories.ErrUnavailable) {
			return nil, false, storeError("reread attempt", err)
		}
		return nil, false, ErrAttemptConflict
	}
	r.logger.Debug("Lost attempt creation race, using existing attempt",
		"attempt_id", winner.ID,
		"test_id", testID,
		"student_id", studentID)
	return winner, false, nil
}

func (r *attemptRegistry) Mutate(ctx context.Context, attemptID uint, fn func(*models.ExamAttempt) error) (*models.ExamAttempt, error) {
	return r.MutateWithTx(ctx, attemptID, func(_ repositories.Repository, attempt *models.ExamAttempt) error {
		return fn(attempt)
	})
}

// MutateWithTx runs fn under the per-attempt lock inside one transaction that
// holds the attempt row. Submitted attempts are never handed to fn. The
// result must keep status moving forward and the trust score from rising.
func (r *attemptRegistry) MutateWithTx(ctx context.Context, attemptID uint, fn func(tx repositories.Repository, attempt *models.ExamAttempt) error) (*models.ExamAttempt, error) {
	release, err := r.locker.Lock(ctx, "attempt:"+strconv.FormatUint(uint64(attemptID), 10))
	if err != nil {
		return nil, fmt.Errorf("failed to lock attempt %d: %w", attemptID, err)
	}
	defer release()

	var result *models.ExamAttempt
	err = r.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		attempt, err := tx.Attempts().GetByIDForUpdate(ctx, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return err
		}
		if attempt.IsSubmitted() {
			return ErrAttemptAlreadySubmitted
		}

		before := *attempt
		if err := fn(tx, attempt); err != nil {
			return err
		}
		if err := checkTransition(&before, attempt); err != nil {
			return err
		}

		if err := tx.Attempts().Update(ctx, attempt); err != nil {
			return err
		}
		result = attempt
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAttemptAlreadySubmitted) || errors.Is(err, ErrAttemptNotFound) || errors.Is(err, models.ErrInvalidTransition) {
			return nil, err
		}
		return nil, storeError("mutate attempt", err)
	}
	return result, nil
}

func checkTransition(before, after *models.ExamAttempt) error {
	if after.ID != before.ID || after.TestID != before.TestID || after.StudentID != before.StudentID {
		return fmt.Errorf("%w: attempt identity changed", models.ErrInvalidTransition)
	}
	if statusRank(after.Status) < statusRank(before.Status) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, before.Status, after.Status)
	}
	if after.TrustScore > before.TrustScore {
		return fmt.Errorf("%w: trust score cannot increase", models.ErrInvalidTransition)
	}
	after.TrustScore = scoring.Clamp(after.TrustScore)
	return nil
}

func statusRank(s models.AttemptStatus) int {
	switch s {
	case models.AttemptInProgress:
		return 1
	case models.AttemptSubmitted:
		return 2
	default:
		return 0
	}
}

// storeError marks unreachable-store failures so handlers can answer 503.
func storeError(op string, err error) error {
	if errors.Is(err, repositories.ErrUnavailable) || isConnectionError(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrDatabaseUnavailable, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isConnectionError(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded)
}

func now() time.Time {
	return time.Now().UTC()
}
