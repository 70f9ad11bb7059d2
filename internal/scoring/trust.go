// Package scoring turns proctoring severities into a bounded trust score.
package scoring

import "github.com/SAP-F-2025/proctoring-service/internal/models"

const fallbackPenaltyPerViolation = 5

// Penalty is the trust deduction for one violation of the given severity.
// Unknown severities are charged as medium.
func Penalty(s models.Severity) int {
	switch s {
	case models.SeverityLow:
		return 2
	case models.SeverityHigh:
		return 10
	default:
		return 5
	}
}

// Apply deducts the penalty for s from score, flooring at zero.
func Apply(score int, s models.Severity) int {
	return Clamp(score - Penalty(s))
}

// FromSeverities is the score after applying every severity to a fresh
// attempt. Subtraction commutes and the floor is only reached once, so the
// result does not depend on arrival order.
func FromSeverities(severities ...models.Severity) int {
	total := 0
	for _, s := range severities {
		total += Penalty(s)
	}
	return Clamp(models.InitialTrustScore - total)
}

// FallbackFromCount scores an attempt from violations the client reported at
// submission time when no chunk-driven score exists.
func FallbackFromCount(n int) int {
	if n < 0 {
		n = 0
	}
	return Clamp(models.InitialTrustScore - fallbackPenaltyPerViolation*n)
}

// Clamp keeps a score inside [0, 100].
func Clamp(score int) int {
	if score < models.MinTrustScore {
		return models.MinTrustScore
	}
	if score > models.InitialTrustScore {
		return models.InitialTrustScore
	}
	return score
}
