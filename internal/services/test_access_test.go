package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestAccess_GetTestView(t *testing.T) {
	ctx := context.Background()

	t.Run("questions in test order without keys", func(t *testing.T) {
		test, questions := openTest()
		test.QuestionIDs = []string{"2", "1"}
		f := newFixture(t, test, questions)

		view, err := f.services.TestAccess().GetTestView(ctx, testID, studentID, "")
		require.NoError(t, err)
		assert.Equal(t, "Midterm", view.Title)
		require.Len(t, view.Questions, 2)
		assert.Equal(t, "2", view.Questions[0].ID)
		assert.Equal(t, "1", view.Questions[1].ID)
		for _, q := range view.Questions {
			assert.Empty(t, q.AnswerKey)
		}
	})

	t.Run("allow-list matches student id or email", func(t *testing.T) {
		test, questions := openTest()
		test.Participants = []string{"a@example.com"}
		f := newFixture(t, test, questions)

		_, err := f.services.TestAccess().GetTestView(ctx, testID, "", "A@example.com")
		assert.NoError(t, err)

		_, err = f.services.TestAccess().GetTestView(ctx, testID, "other", "")
		assert.ErrorIs(t, err, ErrTestNotFound)
	})

	t.Run("window", func(t *testing.T) {
		test, questions := openTest()
		test.StartTime = time.Now().Add(-2 * time.Hour)
		test.EndTime = time.Now().Add(-time.Hour)
		f := newFixture(t, test, questions)

		_, err := f.services.TestAccess().GetTestView(ctx, testID, studentID, "")
		assert.ErrorIs(t, err, ErrTestEnded)
		assert.True(t, IsAccessDenied(err))
	})

	t.Run("unknown test", func(t *testing.T) {
		test, questions := openTest()
		f := newFixture(t, test, questions)

		_, err := f.services.TestAccess().GetTestView(ctx, "nope", studentID, "")
		assert.ErrorIs(t, err, ErrTestNotFound)
	})
}
