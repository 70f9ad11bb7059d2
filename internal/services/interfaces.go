package services

import (
	"context"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
)

// AttemptRegistry owns the ExamAttempt state machine. All writes to an
// attempt go through Mutate or MutateWithTx.
type AttemptRegistry interface {
	// GetOrCreate returns the single attempt for the pair, creating it on first
	// touch. created reports whether this call created it.
	GetOrCreate(ctx context.Context, testID, studentID string) (attempt *models.ExamAttempt, created bool, err error)
	Get(ctx context.Context, testID, studentID string) (*models.ExamAttempt, error)
	Mutate(ctx context.Context, attemptID uint, fn func(*models.ExamAttempt) error) (*models.ExamAttempt, error)
	MutateWithTx(ctx context.Context, attemptID uint, fn func(tx repositories.Repository, attempt *models.ExamAttempt) error) (*models.ExamAttempt, error)
}

type TestAccessService interface {
	// Resolve returns the test if any identity is admitted by its allow-list.
	Resolve(ctx context.Context, testID string, identities ...string) (*models.Test, error)
	GetTestView(ctx context.Context, testID, studentID, email string) (*models.TestView, error)
}

type ChunkIntake interface {
	Ingest(ctx context.Context, req *models.ProctorChunkRequest) (*models.ChunkResult, error)
}

type SubmissionService interface {
	Submit(ctx context.Context, req *models.SubmitTestRequest) (*models.SubmissionResult, error)
}

type AttemptService interface {
	Start(ctx context.Context, req *models.StartTestRequest) (*models.ExamAttempt, error)
	GetDetail(ctx context.Context, testID, studentID string) (*models.AttemptDetail, error)
}

type ReviewService interface {
	Review(ctx context.Context, eventID uint, req *models.ReviewEventRequest) (*models.ProctoringEvent, error)
}

type ReportService interface {
	// AttemptReport renders the attempt and its ledger as an xlsx workbook.
	AttemptReport(ctx context.Context, testID, studentID string) ([]byte, error)
}
