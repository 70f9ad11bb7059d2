package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProctorChunkRequest is one evidence segment captured during an attempt.
type ProctorChunkRequest struct {
	StudentID     string     `json:"studentId" validate:"required,not_blank,max=255"`
	TestID        string     `json:"testId" validate:"required,not_blank,max=64"`
	EvidenceChunk string     `json:"evidenceChunk" validate:"required"`
	Timestamp     *Timestamp `json:"timestamp"`
}

// Normalize trims the attempt identifiers so " A" and "A" name one attempt.
func (r *ProctorChunkRequest) Normalize() {
	r.StudentID, r.TestID = strings.TrimSpace(r.StudentID), strings.TrimSpace(r.TestID)
}

type StartTestRequest struct {
	StudentID string `json:"studentId" validate:"required,not_blank,max=255"`
	TestID    string `json:"testId" validate:"required,not_blank,max=64"`
}

func (r *StartTestRequest) Normalize() {
	r.StudentID, r.TestID = strings.TrimSpace(r.StudentID), strings.TrimSpace(r.TestID)
}

type SubmitTestRequest struct {
	StudentID  string                     `json:"studentId" validate:"required,not_blank,max=255"`
	TestID     string                     `json:"testId" validate:"required,not_blank,max=64"`
	Answers    map[string]json.RawMessage `json:"answers" validate:"required"`
	StartTime  *Timestamp                 `json:"startTime" validate:"required"`
	EndTime    *Timestamp                 `json:"endTime" validate:"required"`
	Violations []ReportedViolation        `json:"violations" validate:"omitempty,max=500,dive"`
}

func (r *SubmitTestRequest) Normalize() {
	r.StudentID, r.TestID = strings.TrimSpace(r.StudentID), strings.TrimSpace(r.TestID)
}

// ReportedViolation is a violation the client observed itself and includes
// with the submission. A bare string is accepted as the type.
type ReportedViolation struct {
	Type      string     `json:"type" validate:"required,not_blank"`
	Severity  string     `json:"severity"`
	Timestamp *Timestamp `json:"timestamp"`
}

func (r *ReportedViolation) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.Type)
	}
	type plain ReportedViolation
	return json.Unmarshal(data, (*plain)(r))
}

type ReviewEventRequest struct {
	Verdict  ReviewVerdict `json:"verdict" validate:"required,review_verdict"`
	Reviewer string        `json:"reviewer" validate:"required,not_blank,max=255"`
	Notes    *string       `json:"notes" validate:"omitempty,max=2000"`
}

// Timestamp accepts either an RFC 3339 string or Unix milliseconds.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t}
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time)
}

// TimeOr returns the wrapped time, or fallback when t is nil or zero.
func (t *Timestamp) TimeOr(fallback time.Time) time.Time {
	if t == nil || t.IsZero() {
		return fallback
	}
	return t.Time
}

// Response payloads

type ChunkResult struct {
	ViolationDetected bool           `json:"violationDetected"`
	ViolationType     ViolationLabel `json:"violationType,omitempty"`
	Severity          Severity       `json:"severity,omitempty"`
}

type SubmissionResult struct {
	ActualScore    float64 `json:"actualScore"`
	TrustScore     int     `json:"trustScore"`
	ViolationCount int     `json:"violationCount"`
}

type TestView struct {
	TestID    string     `json:"testId"`
	Title     string     `json:"title"`
	StartTime time.Time  `json:"startTime"`
	EndTime   time.Time  `json:"endTime"`
	Duration  int        `json:"duration"`
	Questions []Question `json:"questions"`
}

type AttemptDetail struct {
	Attempt *ExamAttempt      `json:"attempt"`
	Events  []ProctoringEvent `json:"events"`
}
