package services

import (
	"bytes"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
)

// gradeResult is the outcome of grading one submission against a test's keys.
type gradeResult struct {
	Answers            []models.Answer
	TotalScore         float64
	QuestionsAttempted int
	Ignored            []string
}

// gradeAnswers grades answers in test order. Objective questions earn full
// marks on a case-insensitive trimmed match with the key; other types are
// left for manual grading. Answers to questions outside the test are
// reported in Ignored.
func gradeAnswers(questionIDs []string, keys []models.Question, answers map[string]json.RawMessage) gradeResult {
	byID := make(map[string]models.Question, len(keys))
	for _, q := range keys {
		byID[q.ID] = q
	}

	var result gradeResult
	inTest := make(map[string]bool, len(questionIDs))
	for _, id := range questionIDs {
		inTest[id] = true
		raw, answered := answers[id]
		if !answered {
			continue
		}
		q, known := byID[id]

		answer := models.Answer{
			QuestionID:   id,
			Value:        datatypes.JSON(normalizeRaw(raw)),
			QuestionType: q.Type,
		}
		if !isBlankAnswer(raw) {
			result.QuestionsAttempted++
		}
		if known && q.Type.IsObjective() {
			correct := matchesKey(raw, q.AnswerKey)
			marks := 0.0
			if correct {
				marks = q.Marks
			}
			answer.IsCorrect = &correct
			answer.MarksObtained = &marks
			result.TotalScore += marks
		}
		result.Answers = append(result.Answers, answer)
	}

	for id := range answers {
		if !inTest[id] {
			result.Ignored = append(result.Ignored, id)
		}
	}
	return result
}

func matchesKey(raw json.RawMessage, key string) bool {
	if strings.TrimSpace(key) == "" || isBlankAnswer(raw) {
		return false
	}
	return strings.EqualFold(answerText(raw), strings.TrimSpace(key))
}

// answerText is the string form of a JSON answer value: strings are
// unquoted, anything else is compared by its literal text.
func answerText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func isBlankAnswer(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || answerText(trimmed) == ""
}

func normalizeRaw(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return json.RawMessage("null")
	}
	return trimmed
}
