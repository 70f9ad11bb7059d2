package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDomainEvent_Envelope(t *testing.T) {
	event := NewDomainEvent(EventViolationRecorded, AttemptKey("T1", "S1"), ViolationRecordedEvent{
		AttemptID: 7,
		Label:     models.LabelPhoneDetected,
		Severity:  models.SeverityHigh,
	})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "proctoring-service", event.Source)
	assert.Equal(t, "1.0", event.Version)
	assert.Equal(t, "T1/S1", event.Key)
	assert.False(t, event.Timestamp.IsZero())
}

func TestMockEventPublisher(t *testing.T) {
	ctx := context.Background()
	publisher := NewMockEventPublisher(newTestLogger())

	t.Run("records events concurrently", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = publisher.Publish(ctx, NewDomainEvent(EventAttemptStarted, "k", nil))
			}()
		}
		wg.Wait()

		assert.Len(t, publisher.GetPublishedEvents(), 20)
		assert.Len(t, publisher.EventsOfType(EventAttemptStarted), 20)
		assert.Empty(t, publisher.EventsOfType(EventAttemptSubmitted))
	})

	t.Run("returns configured error", func(t *testing.T) {
		publisher.ClearEvents()
		publisher.Err = errors.New("broker down")
		err := publisher.Publish(ctx, NewDomainEvent(EventAttemptSubmitted, "k", nil))
		require.Error(t, err)
		assert.Empty(t, publisher.GetPublishedEvents())
	})
}
