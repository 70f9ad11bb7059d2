package models

import (
	"time"
)

type ViolationLabel string

const (
	LabelPhoneDetected   ViolationLabel = "phone_detected"
	LabelMultipleFaces   ViolationLabel = "multiple_faces"
	LabelNoPersonVisible ViolationLabel = "no_person_visible"
	LabelAudioDetected   ViolationLabel = "audio_detected"
	LabelLookingAway     ViolationLabel = "looking_away"
)

var ViolationLabels = []ViolationLabel{
	LabelPhoneDetected,
	LabelMultipleFaces,
	LabelNoPersonVisible,
	LabelAudioDetected,
	LabelLookingAway,
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// Rank orders severities low < medium < high; unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

type EventSource string

const (
	SourceChunk      EventSource = "chunk"
	SourceSubmission EventSource = "submission"
)

type ReviewVerdict string

const (
	VerdictConfirmed ReviewVerdict = "confirmed"
	VerdictDismissed ReviewVerdict = "dismissed"
)

// ProctoringEvent is a single detector-confirmed violation. Only the review
// fields change after creation.
type ProctoringEvent struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	AttemptID uint           `json:"attempt_id" gorm:"not null;index"`
	Timestamp time.Time      `json:"timestamp" gorm:"not null;index"`
	Label     ViolationLabel `json:"label" gorm:"not null;size:32;index"`
	Severity  Severity       `json:"severity" gorm:"not null;size:16"`
	Source    EventSource    `json:"source" gorm:"not null;size:16;default:chunk"`

	// Detector context
	DetectorLabel string   `json:"detector_label" gorm:"size:255"`
	Confidence    *float64 `json:"confidence"`
	Details       string   `json:"details" gorm:"type:text"`

	// Evidence
	EvidenceRef *string `json:"evidence_ref" gorm:"size:512"`

	// Review status
	Reviewed   bool           `json:"reviewed" gorm:"default:false"`
	Verdict    *ReviewVerdict `json:"verdict" gorm:"size:32"`
	Reviewer   *string        `json:"reviewer" gorm:"size:255"`
	ReviewedAt *time.Time     `json:"reviewed_at"`
	Notes      *string        `json:"notes" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Attempt *ExamAttempt `json:"-" gorm:"foreignKey:AttemptID;constraint:OnDelete:RESTRICT"`
}

func (ProctoringEvent) TableName() string {
	return "proctoring_events"
}

// Review carries the annotation a human reviewer attaches to an event.
type Review struct {
	Verdict  ReviewVerdict
	Reviewer string
	Notes    *string
	At       time.Time
}
