package services

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/SAP-F-2025/proctoring-service/internal/detector"
	"github.com/SAP-F-2025/proctoring-service/internal/events"
	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
	"github.com/SAP-F-2025/proctoring-service/internal/scoring"
	"github.com/SAP-F-2025/proctoring-service/internal/storage"
	"github.com/SAP-F-2025/proctoring-service/internal/validator"
)

const evidenceContentType = "video/webm"

type chunkIntake struct {
	repo      repositories.Repository
	registry  AttemptRegistry
	access    TestAccessService
	detector  detector.Detector
	evidence  storage.EvidenceStore
	publisher events.EventPublisher
	validator *validator.Validator
	logger    *ServiceLogger
	clock     func() time.Time
}

func NewChunkIntake(
	repo repositories.Repository,
	registry AttemptRegistry,
	access TestAccessService,
	det detector.Detector,
	evidence storage.EvidenceStore,
	publisher events.EventPublisher,
	validator *validator.Validator,
	logger *ServiceLogger,
) ChunkIntake {
	return &chunkIntake{
		repo:      repo,
		registry:  registry,
		access:    access,
		detector:  det,
		evidence:  evidence,
		publisher: publisher,
		validator: validator,
		logger:    logger,
		clock:     now,
	}
}

// Ingest classifies one evidence segment and records a violation when the
// detector reports one. Detector, evidence and ledger failures degrade to
// "no violation"; only bad input, access rejections and an unreachable store
// are returned as errors.
func (s *chunkIntake) Ingest(ctx context.Context, req *models.ProctorChunkRequest) (result *models.ChunkResult, err error) {
	req.Normalize()
	op := s.logger.WithOperation(ctx, "ingest_chunk", req.TestID, req.StudentID)
	var attemptID uint
	defer func() { op.LogResult(attemptID, err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	log := s.logger.Logger().With("test_id", req.TestID, "student_id", req.StudentID)

	segment, decodeErr := decodeChunk(req.EvidenceChunk)
	if decodeErr != nil {
		log.WarnContext(ctx, "Discarding undecodable evidence chunk", "error", decodeErr)
		return &models.ChunkResult{}, nil
	}

	if err := s.repo.Ping(ctx); err != nil {
		return nil, storeError("ping store", err)
	}

	receivedAt := s.clock()
	test, err := s.access.Resolve(ctx, req.TestID, req.StudentID)
	if err != nil {
		return nil, err
	}
	if err := checkWindow(test, receivedAt); err != nil {
		return nil, err
	}

	existing, err := s.registry.Get(ctx, req.TestID, req.StudentID)
	switch {
	case err == nil && existing.IsSubmitted():
		log.InfoContext(ctx, "Ignoring chunk for submitted attempt", "attempt_id", existing.ID)
		return &models.ChunkResult{}, nil
	case err != nil && !errors.Is(err, ErrAttemptNotFound):
		return nil, err
	}

	verdict, err := s.detector.Classify(ctx, segment)
	if err != nil {
		log.WarnContext(ctx, "Detector unavailable, treating chunk as clean", "error", err)
		return &models.ChunkResult{}, nil
	}
	if verdict == nil || !verdict.HasViolation {
		return &models.ChunkResult{}, nil
	}

	label := NormalizeLabel(verdict.Label)
	severity := NormalizeSeverity(verdict.Severity)
	occurredAt := req.Timestamp.TimeOr(receivedAt)

	attempt, _, err := s.registry.GetOrCreate(ctx, req.TestID, req.StudentID)
	if err != nil {
		if !IsUnavailable(err) && !errors.Is(err, ErrAttemptConflict) {
			err = errors.Join(ErrDatabaseUnavailable, err)
		}
		return nil, err
	}
	attemptID = attempt.ID

	var evidenceRef *string
	ref, err := s.evidence.Put(ctx, segment, storage.Metadata{
		TestID:      req.TestID,
		StudentID:   req.StudentID,
		AttemptID:   attempt.ID,
		Label:       string(label),
		ContentType: evidenceContentType,
		CapturedAt:  occurredAt,
	})
	if err != nil {
		log.WarnContext(ctx, "Failed to store evidence", "attempt_id", attempt.ID, "error", err)
	} else if ref != "" {
		evidenceRef = &ref
	}

	event := &models.ProctoringEvent{
		AttemptID:     attempt.ID,
		Timestamp:     occurredAt,
		Label:         label,
		Severity:      severity,
		Source:        models.SourceChunk,
		DetectorLabel: verdict.Label,
		Confidence:    verdict.Confidence,
		Details:       verdict.Details,
		EvidenceRef:   evidenceRef,
	}
	updated, err := s.registry.MutateWithTx(ctx, attempt.ID, func(tx repositories.Repository, a *models.ExamAttempt) error {
		if err := a.Begin(receivedAt); err != nil {
			return err
		}
		if _, err := tx.Ledger().Append(ctx, event); err != nil {
			return err
		}
		a.TrustScore = scoring.Apply(a.TrustScore, severity)
		a.TotalViolations++
		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to record violation",
			"attempt_id", attempt.ID,
			"label", label,
			"severity", severity,
			"error", err)
		return &models.ChunkResult{}, nil
	}

	log.InfoContext(ctx, "Violation recorded",
		"attempt_id", updated.ID,
		"event_id", event.ID,
		"label", label,
		"severity", severity,
		"trust_score", updated.TrustScore)

	s.publish(ctx, events.NewDomainEvent(events.EventViolationRecorded, events.AttemptKey(req.TestID, req.StudentID), events.ViolationRecordedEvent{
		EventID:     event.ID,
		AttemptID:   updated.ID,
		TestID:      req.TestID,
		StudentID:   req.StudentID,
		Label:       label,
		Severity:    severity,
		TrustScore:  updated.TrustScore,
		EvidenceRef: evidenceRef,
		OccurredAt:  occurredAt,
	}))

	return &models.ChunkResult{
		ViolationDetected: true,
		ViolationType:     label,
		Severity:          severity,
	}, nil
}

func (s *chunkIntake) publish(ctx context.Context, event *events.DomainEvent) {
	publish(ctx, s.publisher, s.logger, event)
}

// publish is best effort; a broker outage never fails the request.
func publish(ctx context.Context, publisher events.EventPublisher, logger *ServiceLogger, event *events.DomainEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Logger().WarnContext(ctx, "Failed to publish event",
			"event_type", event.Type,
			"event_id", event.ID,
			"error", err)
	}
}

// decodeChunk accepts raw base64 or a data URL.
func decodeChunk(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:") {
		if i := strings.Index(raw, ","); i >= 0 {
			raw = raw[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(raw)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty evidence chunk")
	}
	return data, nil
}
