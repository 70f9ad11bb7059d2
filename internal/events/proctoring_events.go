package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
)

// EventType represents the kinds of domain events this service emits
type EventType string

const (
	EventAttemptStarted    EventType = "attempt.started"
	EventAttemptSubmitted  EventType = "attempt.submitted"
	EventViolationRecorded EventType = "proctoring.violation_recorded"
	EventViolationReviewed EventType = "proctoring.violation_reviewed"
)

const (
	eventSource  = "proctoring-service"
	eventVersion = "1.0"
)

// DomainEvent is the envelope published for every event
type DomainEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Key       string                 `json:"key"` // attempt natural key, used for partitioning
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewDomainEvent wraps a payload in an envelope with a fresh id.
func NewDomainEvent(eventType EventType, key string, data interface{}) *DomainEvent {
	return &DomainEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Key:       key,
		Data:      data,
	}
}

// AttemptKey is the natural key of an attempt, "<testId>/<studentId>".
func AttemptKey(testID, studentID string) string {
	return testID + "/" + studentID
}

type AttemptStartedEvent struct {
	AttemptID uint      `json:"attempt_id"`
	TestID    string    `json:"test_id"`
	StudentID string    `json:"student_id"`
	StartedAt time.Time `json:"started_at"`
}

type ViolationRecordedEvent struct {
	EventID     uint                  `json:"event_id"`
	AttemptID   uint                  `json:"attempt_id"`
	TestID      string                `json:"test_id"`
	StudentID   string                `json:"student_id"`
	Label       models.ViolationLabel `json:"label"`
	Severity    models.Severity       `json:"severity"`
	TrustScore  int                   `json:"trust_score"`
	EvidenceRef *string               `json:"evidence_ref,omitempty"`
	OccurredAt  time.Time             `json:"occurred_at"`
}

type ViolationReviewedEvent struct {
	EventID   uint                 `json:"event_id"`
	AttemptID uint                 `json:"attempt_id"`
	Verdict   models.ReviewVerdict `json:"verdict"`
	Reviewer  string               `json:"reviewer"`
}

type AttemptSubmittedEvent struct {
	AttemptID          uint      `json:"attempt_id"`
	TestID             string    `json:"test_id"`
	StudentID          string    `json:"student_id"`
	TotalScore         float64   `json:"total_score"`
	TrustScore         int       `json:"trust_score"`
	TotalViolations    int       `json:"total_violations"`
	QuestionsAttempted int       `json:"questions_attempted"`
	Duration           int       `json:"duration"`
	SubmittedAt        time.Time `json:"submitted_at"`
}
