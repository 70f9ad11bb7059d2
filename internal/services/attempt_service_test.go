package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/proctoring-service/internal/events"
	"github.com/SAP-F-2025/proctoring-service/internal/models"
)

func TestAttemptService_Start(t *testing.T) {
	ctx := context.Background()
	req := &models.StartTestRequest{StudentID: studentID, TestID: testID}

	t.Run("starts once", func(t *testing.T) {
		test, questions := openTest()
		f := newFixture(t, test, questions)

		first, err := f.services.Attempt().Start(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, models.AttemptInProgress, first.Status)
		require.NotNil(t, first.StartedAt)

		second, err := f.services.Attempt().Start(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.StartedAt.Unix(), second.StartedAt.Unix())

		assert.Len(t, f.publisher.EventsOfType(events.EventAttemptStarted), 1)
	})

	t.Run("submitted attempt", func(t *testing.T) {
		test, questions := openTest()
		f := newFixture(t, test, questions)
		_, err := f.services.Submission().Submit(ctx, submitRequest(nil))
		require.NoError(t, err)

		_, err = f.services.Attempt().Start(ctx, req)
		assert.ErrorIs(t, err, ErrAttemptAlreadySubmitted)
	})

	t.Run("outside window", func(t *testing.T) {
		test, questions := openTest()
		test.StartTime = time.Now().Add(time.Hour)
		test.EndTime = time.Now().Add(2 * time.Hour)
		f := newFixture(t, test, questions)

		_, err := f.services.Attempt().Start(ctx, req)
		assert.ErrorIs(t, err, ErrTestNotStarted)
	})

	t.Run("missing fields", func(t *testing.T) {
		test, questions := openTest()
		f := newFixture(t, test, questions)

		_, err := f.services.Attempt().Start(ctx, &models.StartTestRequest{TestID: testID, StudentID: "  "})
		assert.True(t, IsValidation(err))
	})
}

func TestAttemptService_GetDetail(t *testing.T) {
	ctx := context.Background()
	test, questions := openTest()
	f := newFixture(t, test, questions)

	_, err := f.services.Attempt().GetDetail(ctx, testID, studentID)
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	f.chunk(t, "phone:high")
	f.chunk(t, "voice:low")

	detail, err := f.services.Attempt().GetDetail(ctx, testID, studentID)
	require.NoError(t, err)
	assert.Equal(t, 88, detail.Attempt.TrustScore)
	require.Len(t, detail.Events, 2)
	assert.Equal(t, models.LabelPhoneDetected, detail.Events[0].Label)
	assert.Equal(t, models.LabelAudioDetected, detail.Events[1].Label)
}
