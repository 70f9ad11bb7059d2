package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionMCQ         QuestionType = "mcq"
	QuestionTrueFalse   QuestionType = "true_false"
	QuestionShortAnswer QuestionType = "short_answer"
	QuestionEssay       QuestionType = "essay"
	QuestionCode        QuestionType = "code"
)

// IsObjective reports whether answers of this type can be graded against a key.
func (t QuestionType) IsObjective() bool {
	return t == QuestionMCQ || t == QuestionTrueFalse
}

// Test is owned by the authoring side; this service only reads it.
type Test struct {
	ID           string                      `json:"id" gorm:"primaryKey;size:64"`
	Title        string                      `json:"title" gorm:"not null;size:200"`
	QuestionIDs  datatypes.JSONSlice[string] `json:"question_ids" gorm:"type:jsonb"`
	StartTime    time.Time                   `json:"start_time"`
	EndTime      time.Time                   `json:"end_time"`
	Duration     int                         `json:"duration"` // minutes
	Participants datatypes.JSONSlice[string] `json:"participants" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Test) TableName() string {
	return "tests"
}

// WindowStatus reports where t falls relative to the [StartTime, EndTime) window.
func (t *Test) WindowStatus(at time.Time) WindowState {
	if !t.StartTime.IsZero() && at.Before(t.StartTime) {
		return WindowNotStarted
	}
	if !t.EndTime.IsZero() && !at.Before(t.EndTime) {
		return WindowEnded
	}
	return WindowOpen
}

// Allows reports whether any of the given identities is on the allow-list.
// An empty allow-list admits everybody.
func (t *Test) Allows(identities ...string) bool {
	if len(t.Participants) == 0 {
		return true
	}
	for _, p := range t.Participants {
		for _, id := range identities {
			if id != "" && strings.EqualFold(strings.TrimSpace(p), strings.TrimSpace(id)) {
				return true
			}
		}
	}
	return false
}

type WindowState int

const (
	WindowOpen WindowState = iota
	WindowNotStarted
	WindowEnded
)

type Question struct {
	ID        string                      `json:"id" gorm:"primaryKey;size:64"`
	Type      QuestionType                `json:"type" gorm:"not null;size:32"`
	Text      string                      `json:"text" gorm:"type:text"`
	Options   datatypes.JSONSlice[string] `json:"options,omitempty" gorm:"type:jsonb"`
	AnswerKey string                      `json:"answer_key,omitempty" gorm:"type:text"`
	Marks     float64                     `json:"marks" gorm:"not null;default:1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// Public returns a copy with the answer key stripped.
func (q Question) Public() Question {
	q.AnswerKey = ""
	return q
}
