package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/proctoring-service/internal/detector"
	"github.com/SAP-F-2025/proctoring-service/internal/events"
	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories/memory"
	"github.com/SAP-F-2025/proctoring-service/internal/storage"
)

const (
	testID    = "T"
	studentID = "A"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedDetector reads "label:severity" from the segment; "clean" means
// no violation.
type scriptedDetector struct {
	mu    sync.Mutex
	calls int
	err   error
	delay time.Duration
}

func (d *scriptedDetector) Classify(ctx context.Context, segment []byte) (*detector.Result, error) {
	d.mu.Lock()
	d.calls++
	err, delay := d.err, d.delay
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	label, severity, found := strings.Cut(string(segment), ":")
	if !found {
		return detector.NoViolation(), nil
	}
	return &detector.Result{HasViolation: true, Label: label, Severity: severity}, nil
}

func (d *scriptedDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type failingEvidence struct{}

func (failingEvidence) Put(ctx context.Context, data []byte, meta storage.Metadata) (string, error) {
	return "", errors.New("disk full")
}

func (failingEvidence) Get(ctx context.Context, ref string) ([]byte, *storage.Metadata, error) {
	return nil, nil, storage.ErrEvidenceNotFound
}

type fixture struct {
	store     *memory.Store
	detector  *scriptedDetector
	publisher *events.MockEventPublisher
	services  ServiceManager
}

type fixtureOption func(*Dependencies)

func withDetector(d detector.Detector) fixtureOption {
	return func(deps *Dependencies) { deps.Detector = d }
}

func withEvidence(e storage.EvidenceStore) fixtureOption {
	return func(deps *Dependencies) { deps.Evidence = e }
}

// openTest is a two-question objective test whose window is open now.
func openTest() (models.Test, []models.Question) {
	now := time.Now().UTC()
	test := models.Test{
		ID:          testID,
		Title:       "Midterm",
		QuestionIDs: []string{"1", "2"},
		StartTime:   now.Add(-time.Minute),
		EndTime:     now.Add(time.Hour),
		Duration:    60,
	}
	questions := []models.Question{
		{ID: "1", Type: models.QuestionMCQ, Text: "Capital of France?", Options: []string{"Paris", "Rome"}, AnswerKey: "Paris", Marks: 1},
		{ID: "2", Type: models.QuestionTrueFalse, Text: "2+2=5", AnswerKey: "false", Marks: 2},
	}
	return test, questions
}

func newFixture(t *testing.T, test models.Test, questions []models.Question, opts ...fixtureOption) *fixture {
	t.Helper()
	logger := discardLogger()

	f := &fixture{
		store:     memory.NewStore(),
		detector:  &scriptedDetector{},
		publisher: events.NewMockEventPublisher(logger),
	}
	f.store.Seed(test, questions...)

	deps := Dependencies{
		Repo:      f.store,
		Detector:  f.detector,
		Publisher: f.publisher,
		Logger:    logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.services = NewServiceManager(deps)
	return f
}

func (f *fixture) chunk(t *testing.T, payload string) *models.ChunkResult {
	t.Helper()
	result, err := f.services.Chunk().Ingest(context.Background(), chunkRequest(payload))
	require.NoError(t, err)
	return result
}

func (f *fixture) attempt(t *testing.T) *models.ExamAttempt {
	t.Helper()
	attempt, err := f.store.Attempts().GetByKey(context.Background(), testID, studentID)
	require.NoError(t, err)
	return attempt
}

func chunkRequest(payload string) *models.ProctorChunkRequest {
	return &models.ProctorChunkRequest{
		StudentID:     studentID,
		TestID:        testID,
		EvidenceChunk: base64.StdEncoding.EncodeToString([]byte(payload)),
	}
}

func submitRequest(answers map[string]string, violations ...models.ReportedViolation) *models.SubmitTestRequest {
	now := time.Now().UTC()
	req := &models.SubmitTestRequest{
		StudentID:  studentID,
		TestID:     testID,
		Answers:    make(map[string]json.RawMessage, len(answers)),
		StartTime:  models.NewTimestamp(now.Add(-30 * time.Second)),
		EndTime:    models.NewTimestamp(now),
		Violations: violations,
	}
	for questionID, value := range answers {
		req.Answers[questionID] = json.RawMessage(value)
	}
	return req
}
