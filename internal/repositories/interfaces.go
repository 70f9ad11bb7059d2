package repositories

import (
	"context"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
)

// AttemptRepository stores one ExamAttempt per (test, student) pair.
type AttemptRepository interface {
	// Create returns ErrDuplicateKey when an attempt already exists for the pair.
	Create(ctx context.Context, attempt *models.ExamAttempt) error
	GetByID(ctx context.Context, id uint) (*models.ExamAttempt, error)
	GetByKey(ctx context.Context, testID, studentID string) (*models.ExamAttempt, error)

	// GetByIDForUpdate reads the attempt and holds a row lock until the
	// surrounding transaction ends. Outside a transaction it behaves like GetByID.
	GetByIDForUpdate(ctx context.Context, id uint) (*models.ExamAttempt, error)
	Update(ctx context.Context, attempt *models.ExamAttempt) error
}

// LedgerRepository is the append-only violation ledger. Only review
// metadata may change after an event is appended.
type LedgerRepository interface {
	Append(ctx context.Context, event *models.ProctoringEvent) (uint, error)
	GetByID(ctx context.Context, id uint) (*models.ProctoringEvent, error)
	ListByAttempt(ctx context.Context, attemptID uint) ([]*models.ProctoringEvent, error)
	CountByAttempt(ctx context.Context, attemptID uint) (int, error)
	Annotate(ctx context.Context, id uint, review models.Review) (*models.ProctoringEvent, error)
}

// TestRegistry is a read-only view of tests and questions owned by the authoring side.
type TestRegistry interface {
	GetTest(ctx context.Context, testID string) (*models.Test, error)
	// GetQuestions returns the full question rows in no particular order.
	GetQuestions(ctx context.Context, ids []string) ([]models.Question, error)
	// GetAnswerKeys returns only the columns needed for grading.
	GetAnswerKeys(ctx context.Context, ids []string) ([]models.Question, error)
}

// Repository groups the stores. The Repository passed to a WithTransaction
// callback is bound to that transaction.
type Repository interface {
	Attempts() AttemptRepository
	Ledger() LedgerRepository
	Tests() TestRegistry

	WithTransaction(ctx context.Context, fn func(Repository) error) error
	Ping(ctx context.Context) error
	Close() error
}
