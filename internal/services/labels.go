package services

import (
	"strings"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
)

// NormalizeLabel maps a free-form detector label onto the closed label set.
// Anything unrecognized is treated as looking away.
func NormalizeLabel(raw string) models.ViolationLabel {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)

	for _, l := range models.ViolationLabels {
		if s == strings.ReplaceAll(string(l), "_", " ") {
			return l
		}
	}

	switch {
	case containsAny(s, "phone", "device"):
		return models.LabelPhoneDetected
	case strings.Contains(s, "multiple") && containsAny(s, "face", "person", "people"):
		return models.LabelMultipleFaces
	case containsAny(s, "no person", "no face", "not visible", "absent"):
		return models.LabelNoPersonVisible
	case containsAny(s, "audio", "voice", "sound", "speech", "talking"):
		return models.LabelAudioDetected
	default:
		return models.LabelLookingAway
	}
}

// NormalizeSeverity defaults unknown severities to medium.
func NormalizeSeverity(raw string) models.Severity {
	s := models.Severity(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return models.SeverityMedium
	}
	return s
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
