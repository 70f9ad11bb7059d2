package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "not_started"
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

const (
	InitialTrustScore = 100
	MinTrustScore     = 0
)

// ExamAttempt is one student's session against one test. The pair
// (TestID, StudentID) is unique.
type ExamAttempt struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	TestID    string        `json:"test_id" gorm:"not null;size:64;uniqueIndex:idx_attempt_test_student"`
	StudentID string        `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_attempt_test_student"`
	Status    AttemptStatus `json:"status" gorm:"not null;default:not_started;index"`

	// Timing
	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	Duration  int        `json:"duration"` // seconds

	// Scoring
	Answers            datatypes.JSONSlice[Answer] `json:"answers" gorm:"type:jsonb"`
	TotalScore         float64                     `json:"total_score"`
	TrustScore         int                         `json:"trust_score" gorm:"not null;default:100"`
	TotalViolations    int                         `json:"total_violations" gorm:"not null;default:0"`
	QuestionsAttempted int                         `json:"questions_attempted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

// NewExamAttempt returns a fresh not-started attempt with a full trust score.
func NewExamAttempt(testID, studentID string) *ExamAttempt {
	return &ExamAttempt{
		TestID:     testID,
		StudentID:  studentID,
		Status:     AttemptNotStarted,
		TrustScore: InitialTrustScore,
		Answers:    datatypes.JSONSlice[Answer]{},
	}
}

func (a *ExamAttempt) IsSubmitted() bool {
	return a.Status == AttemptSubmitted
}

// Begin moves a not-started attempt into progress. Calling it on an attempt
// that is already in progress is a no-op.
func (a *ExamAttempt) Begin(at time.Time) error {
	switch a.Status {
	case AttemptNotStarted, "":
		a.Status = AttemptInProgress
		if a.StartedAt == nil {
			a.StartedAt = &at
		}
		return nil
	case AttemptInProgress:
		return nil
	default:
		return ErrInvalidTransition
	}
}

// Finish freezes the attempt. Only an in-progress attempt can be finished.
func (a *ExamAttempt) Finish(startedAt, endedAt time.Time) error {
	if a.Status != AttemptInProgress {
		return ErrInvalidTransition
	}
	a.Status = AttemptSubmitted
	a.StartedAt = &startedAt
	a.EndedAt = &endedAt
	a.Duration = int(endedAt.Sub(startedAt).Seconds())
	return nil
}

// Answer is one graded (or ungraded) response inside an attempt.
type Answer struct {
	QuestionID    string         `json:"question_id"`
	Value         datatypes.JSON `json:"value"`
	IsCorrect     *bool          `json:"is_correct"`     // null for manual grading
	MarksObtained *float64       `json:"marks_obtained"` // null when ungraded
	QuestionType  QuestionType   `json:"question_type,omitempty"`
}
