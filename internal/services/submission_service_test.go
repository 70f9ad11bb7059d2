package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/proctoring-service/internal/events"
	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
)

func TestSubmission_EndToEnd(t *testing.T) {
	test, questions := openTest()
	f := newFixture(t, test, questions)

	assert.True(t, f.chunk(t, "phone-detected:high").ViolationDetected)
	assert.True(t, f.chunk(t, "looking-away:low").ViolationDetected)
	assert.False(t, f.chunk(t, "clean").ViolationDetected)

	result, err := f.services.Submission().Submit(context.Background(), submitRequest(map[string]string{
		"1": `"Paris"`,
		"2": `"true"`,
	}))
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.ActualScore)
	assert.Equal(t, 88, result.TrustScore)
	assert.Equal(t, 2, result.ViolationCount)

	attempt := f.attempt(t)
	assert.Equal(t, models.AttemptSubmitted, attempt.Status)
	assert.Equal(t, 2, attempt.TotalViolations)
	assert.Equal(t, 88, attempt.TrustScore)
	assert.Equal(t, 1.0, attempt.TotalScore)
	assert.Equal(t, 2, attempt.QuestionsAttempted)
	assert.Equal(t, 30, attempt.Duration)
	require.Len(t, attempt.Answers, 2)
	assert.True(t, *attempt.Answers[0].IsCorrect)
	assert.False(t, *attempt.Answers[1].IsCorrect)

	submitted := f.publisher.EventsOfType(events.EventAttemptSubmitted)
	require.Len(t, submitted, 1)
	assert.Equal(t, events.AttemptKey(testID, studentID), submitted[0].Key)
}

func TestSubmission_DoubleSubmitIsRejected(t *testing.T) {
	test, questions := openTest()
	f := newFixture(t, test, questions)
	ctx := context.Background()

	f.chunk(t, "phone:high")
	first, err := f.services.Submission().Submit(ctx, submitRequest(map[string]string{"1": `"Paris"`}))
	require.NoError(t, err)

	_, err = f.services.Submission().Submit(ctx, submitRequest(map[string]string{"1": `"Paris"`, "2": `"false"`}, models.ReportedViolation{Type: "audio"}))
	assert.ErrorIs(t, err, ErrAttemptAlreadySubmitted)
	assert.True(t, IsConflict(err))

	attempt := f.attempt(t)
	assert.Equal(t, first.ActualScore, attempt.TotalScore)
	assert.Equal(t, first.TrustScore, attempt.TrustScore)
	assert.Equal(t, first.ViolationCount, attempt.TotalViolations)
	assert.Len(t, f.publisher.EventsOfType(events.EventAttemptSubmitted), 1)
}

func TestSubmission_TrustScore(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to reported count without chunk evidence", func(t *testing.T) {
		test, questions := openTest()
		f := newFixture(t, test, questions)

		result, err := f.services.Submission().Submit(ctx, submitRequest(nil,
			models.ReportedViolation{Type: "tab switch"},
			models.ReportedViolation{Type: "audio_detected", Severity: "low"},
			models.ReportedViolation{Type: "phone_detected", Severity: "high"},
		))
		require.NoError(t, err)

		assert.Equal(t, 85, result.TrustScore)
		assert.Equal(t, 3, result.ViolationCount)
		assert.Zero(t, result.ActualScore)

		ledger, err := f.store.Ledger().ListByAttempt(ctx, f.attempt(t).ID)
		require.NoError(t, err)
		require.Len(t, ledger, 3)
		for _, e := range ledger {
			assert.Equal(t, models.SourceSubmission, e.Source)
		}
	})

	t.Run("no violations keeps a full score", func(t *testing.T) {
		test, questions := openTest()
		f := newFixture(t, test, questions)

		result, err := f.services.Submission().Submit(ctx, submitRequest(map[string]string{"1": `"paris"`, "2": `"FALSE"`}))
		require.NoError(t, err)
		assert.Equal(t, 100, result.TrustScore)
		assert.Equal(t, 3.0, result.ActualScore)
		assert.Zero(t, result.ViolationCount)
	})

	t.Run("chunk score is preserved and duplicates are not counted twice", func(t *testing.T) {
		test, questions := openTest()
		f := newFixture(t, test, questions)

		req := chunkRequest("phone:high")
		at := time.Now().UTC().Truncate(time.Second).Add(-10 * time.Second)
		req.Timestamp = models.NewTimestamp(at)
		_, err := f.services.Chunk().Ingest(ctx, req)
		require.NoError(t, err)

		result, err := f.services.Submission().Submit(ctx, submitRequest(nil,
			models.ReportedViolation{Type: "phone_detected", Timestamp: models.NewTimestamp(at.Add(300 * time.Millisecond))},
			models.ReportedViolation{Type: "audio_detected", Severity: "low"},
		))
		require.NoError(t, err)

		assert.Equal(t, 90, result.TrustScore)
		assert.Equal(t, 2, result.ViolationCount)
	})

	t.Run("untimed reports match by label once each", func(t *testing.T) {
		test, questions := openTest()
		f := newFixture(t, test, questions)
		f.chunk(t, "phone:high")

		result, err := f.services.Submission().Submit(ctx, submitRequest(nil,
			models.ReportedViolation{Type: "phone_detected"},
			models.ReportedViolation{Type: "phone_detected"},
		))
		require.NoError(t, err)
		assert.Equal(t, 2, result.ViolationCount)
		assert.Equal(t, 90, result.TrustScore)
	})
}

func TestSubmission_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("missing fields", func(t *testing.T) {
		test, questions := openTest()
		f := newFixture(t, test, questions)

		req := submitRequest(map[string]string{"1": `"Paris"`})
		req.StartTime = nil
		_, err := f.services.Submission().Submit(ctx, req)
		assert.True(t, IsValidation(err))
	})

	t.Run("end before start", func(t *testing.T) {
		test, questions := openTest()
		f := newFixture(t, test, questions)

		req := submitRequest(map[string]string{"1": `"Paris"`})
		req.StartTime, req.EndTime = req.EndTime, req.StartTime
		_, err := f.services.Submission().Submit(ctx, req)
		assert.True(t, IsValidation(err))
		_, err = f.store.Attempts().GetByKey(ctx, testID, studentID)
		assert.True(t, repositories.IsNotFoundError(err))
	})

	t.Run("session started before the window", func(t *testing.T) {
		test, questions := openTest()
		f := newFixture(t, test, questions)

		req := submitRequest(map[string]string{"1": `"Paris"`})
		req.StartTime = models.NewTimestamp(test.StartTime.Add(-time.Minute))
		_, err := f.services.Submission().Submit(ctx, req)
		assert.ErrorIs(t, err, ErrTestNotStarted)
		_, err = f.store.Attempts().GetByKey(ctx, testID, studentID)
		assert.True(t, repositories.IsNotFoundError(err))
	})

	t.Run("session started after the window", func(t *testing.T) {
		test, questions := openTest()
		f := newFixture(t, test, questions)

		req := submitRequest(map[string]string{"1": `"Paris"`})
		req.StartTime = models.NewTimestamp(test.EndTime)
		req.EndTime = models.NewTimestamp(test.EndTime.Add(time.Minute))
		_, err := f.services.Submission().Submit(ctx, req)
		assert.ErrorIs(t, err, ErrTestEnded)
	})

	t.Run("session ended long after the window", func(t *testing.T) {
		test, questions := openTest()
		f := newFixture(t, test, questions)

		req := submitRequest(map[string]string{"1": `"Paris"`})
		req.EndTime = models.NewTimestamp(test.EndTime.Add(submissionGrace + time.Minute))
		_, err := f.services.Submission().Submit(ctx, req)
		assert.ErrorIs(t, err, ErrTestEnded)
		_, err = f.store.Attempts().GetByKey(ctx, testID, studentID)
		assert.True(t, repositories.IsNotFoundError(err))
	})

	t.Run("session ending within the grace period", func(t *testing.T) {
		test, questions := openTest()
		f := newFixture(t, test, questions)

		req := submitRequest(map[string]string{"1": `"Paris"`})
		req.EndTime = models.NewTimestamp(test.EndTime.Add(submissionGrace))
		_, err := f.services.Submission().Submit(ctx, req)
		assert.NoError(t, err)
	})

	t.Run("student not on allow-list", func(t *testing.T) {
		test, questions := openTest()
		test.Participants = []string{"B"}
		f := newFixture(t, test, questions)

		_, err := f.services.Submission().Submit(ctx, submitRequest(map[string]string{"1": `"Paris"`}))
		assert.ErrorIs(t, err, ErrTestNotFound)
	})

	t.Run("store unavailable", func(t *testing.T) {
		test, questions := openTest()
		f := newFixture(t, test, questions)
		f.store.SetUnavailable(true)

		_, err := f.services.Submission().Submit(ctx, submitRequest(map[string]string{"1": `"Paris"`}))
		assert.True(t, IsUnavailable(err))
	})
}

func TestSubmission_ConcurrentSubmitsFreezeOnce(t *testing.T) {
	test, questions := openTest()
	f := newFixture(t, test, questions)
	ctx := context.Background()

	const callers = 8
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := f.services.Submission().Submit(ctx, submitRequest(map[string]string{"1": `"Paris"`}))
			errs <- err
		}()
	}

	succeeded := 0
	for i := 0; i < callers; i++ {
		err := <-errs
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAttemptAlreadySubmitted)
	}
	assert.Equal(t, 1, succeeded)
}
