package scoring

import (
	"math/rand"
	"testing"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestPenalty(t *testing.T) {
	assert.Equal(t, 2, Penalty(models.SeverityLow))
	assert.Equal(t, 5, Penalty(models.SeverityMedium))
	assert.Equal(t, 10, Penalty(models.SeverityHigh))
	assert.Equal(t, 5, Penalty(models.Severity("unknown")))
}

func TestApply_FloorsAtZero(t *testing.T) {
	assert.Equal(t, 90, Apply(100, models.SeverityHigh))
	assert.Equal(t, 0, Apply(4, models.SeverityMedium))
	assert.Equal(t, 0, Apply(0, models.SeverityLow))
}

func TestFromSeverities_Example(t *testing.T) {
	got := FromSeverities(models.SeverityHigh, models.SeverityMedium, models.SeverityLow)
	assert.Equal(t, 83, got)
}

func TestApply_OrderIndependent(t *testing.T) {
	all := []models.Severity{models.SeverityLow, models.SeverityMedium, models.SeverityHigh}
	r := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		n := r.Intn(25)
		sevs := make([]models.Severity, n)
		for i := range sevs {
			sevs[i] = all[r.Intn(len(all))]
		}
		want := FromSeverities(sevs...)

		for perm := 0; perm < 5; perm++ {
			r.Shuffle(len(sevs), func(i, j int) { sevs[i], sevs[j] = sevs[j], sevs[i] })
			score := models.InitialTrustScore
			for _, s := range sevs {
				score = Apply(score, s)
				assert.GreaterOrEqual(t, score, 0)
				assert.LessOrEqual(t, score, 100)
			}
			assert.Equal(t, want, score, "round %d perm %d", round, perm)
		}
	}
}

func TestFallbackFromCount(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  int
	}{
		{"no violations", 0, 100},
		{"three violations", 3, 85},
		{"floors at zero", 40, 0},
		{"negative treated as zero", -2, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackFromCount(tt.count))
		})
	}
}
