// Package detector wraps the external violation classifier. Implementations
// are interchangeable; callers treat any error as "no violation".
package detector

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrDetectorFailed = errors.New("detector failed")
	ErrBadOutput      = errors.New("detector produced no result")
)

// Event is one raw finding inside a segment.
type Event struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Details  string `json:"details"`
}

// Result is the detector's verdict for one segment. Label and Severity are
// raw detector strings; mapping them onto the closed label set happens in
// the intake.
type Result struct {
	HasViolation bool     `json:"hasViolation"`
	Label        string   `json:"violationType,omitempty"`
	Severity     string   `json:"severity,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	Details      string   `json:"details,omitempty"`
	Events       []Event  `json:"events,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// NoViolation is the fail-open answer.
func NoViolation() *Result {
	return &Result{}
}

type Detector interface {
	Classify(ctx context.Context, segment []byte) (*Result, error)
}

// Disabled never reports a violation.
type Disabled struct{}

func (Disabled) Classify(ctx context.Context, segment []byte) (*Result, error) {
	return NoViolation(), nil
}

// normalize fills the headline label from the most severe event when the
// detector only returned events.
func normalize(r *Result) (*Result, error) {
	if r.Error != "" {
		return nil, errors.Join(ErrDetectorFailed, errors.New(r.Error))
	}
	if r.HasViolation && r.Label == "" && len(r.Events) > 0 {
		best := r.Events[0]
		for _, e := range r.Events[1:] {
			if rank(e.Severity) > rank(best.Severity) {
				best = e
			}
		}
		r.Label, r.Severity, r.Details = best.Type, best.Severity, best.Details
	}
	if r.HasViolation && strings.TrimSpace(r.Label) == "" {
		return nil, ErrBadOutput
	}
	return r, nil
}

func rank(severity string) int {
	switch strings.ToLower(severity) {
	case "high":
		return 2
	case "medium":
		return 1
	default:
		return 0
	}
}
