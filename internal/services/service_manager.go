package services

import (
	"log/slog"

	"github.com/SAP-F-2025/proctoring-service/internal/detector"
	"github.com/SAP-F-2025/proctoring-service/internal/events"
	"github.com/SAP-F-2025/proctoring-service/internal/lock"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
	"github.com/SAP-F-2025/proctoring-service/internal/storage"
	"github.com/SAP-F-2025/proctoring-service/internal/validator"
)

const serviceName = "proctoring-service"

// ServiceManager exposes every service the HTTP layer needs.
type ServiceManager interface {
	Registry() AttemptRegistry
	TestAccess() TestAccessService
	Chunk() ChunkIntake
	Submission() SubmissionService
	Attempt() AttemptService
	Review() ReviewService
	Report() ReportService
}

// Dependencies are the collaborators shared by all services. Tests may be
// nil, in which case Repo.Tests() is used directly.
type Dependencies struct {
	Repo      repositories.Repository
	Tests     repositories.TestRegistry
	Locker    lock.Locker
	Detector  detector.Detector
	Evidence  storage.EvidenceStore
	Publisher events.EventPublisher
	Validator *validator.Validator
	Logger    *slog.Logger
}

type serviceManager struct {
	registry   AttemptRegistry
	access     TestAccessService
	chunk      ChunkIntake
	submission SubmissionService
	attempt    AttemptService
	review     ReviewService
	report     ReportService
}

func NewServiceManager(deps Dependencies) ServiceManager {
	if deps.Tests == nil {
		deps.Tests = deps.Repo.Tests()
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewKeyedMutex()
	}
	if deps.Detector == nil {
		deps.Detector = detector.Disabled{}
	}
	if deps.Evidence == nil {
		deps.Evidence = storage.Discard{}
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	logger := func(component string) *ServiceLogger {
		return NewServiceLogger(deps.Logger, LogConfig{Service: serviceName, Component: component})
	}

	registry := NewAttemptRegistry(deps.Repo, deps.Locker, logger("attempt_registry").Logger())
	access := NewTestAccessService(deps.Tests, logger("test_access").Logger())
	attempt := NewAttemptService(deps.Repo, registry, access, deps.Publisher, deps.Validator, logger("attempt"))

	return &serviceManager{
		registry:   registry,
		access:     access,
		chunk:      NewChunkIntake(deps.Repo, registry, access, deps.Detector, deps.Evidence, deps.Publisher, deps.Validator, logger("chunk_intake")),
		submission: NewSubmissionService(deps.Repo, registry, access, deps.Tests, deps.Publisher, deps.Validator, logger("submission")),
		attempt:    attempt,
		review:     NewReviewService(deps.Repo, deps.Publisher, deps.Validator, logger("review")),
		report:     NewReportService(attempt, logger("report")),
	}
}

func (m *serviceManager) Registry() AttemptRegistry     { return m.registry }
func (m *serviceManager) TestAccess() TestAccessService { return m.access }
func (m *serviceManager) Chunk() ChunkIntake            { return m.chunk }
func (m *serviceManager) Submission() SubmissionService { return m.submission }
func (m *serviceManager) Attempt() AttemptService       { return m.attempt }
func (m *serviceManager) Review() ReviewService         { return m.review }
func (m *serviceManager) Report() ReportService         { return m.report }
