package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/proctoring-service/internal/cache"
	"github.com/SAP-F-2025/proctoring-service/internal/config"
	"github.com/SAP-F-2025/proctoring-service/internal/detector"
	"github.com/SAP-F-2025/proctoring-service/internal/events"
	"github.com/SAP-F-2025/proctoring-service/internal/handlers"
	"github.com/SAP-F-2025/proctoring-service/internal/lock"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories/memory"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/proctoring-service/internal/services"
	"github.com/SAP-F-2025/proctoring-service/internal/storage"
	"github.com/SAP-F-2025/proctoring-service/internal/utils"
	"github.com/SAP-F-2025/proctoring-service/internal/validator"
	"github.com/SAP-F-2025/proctoring-service/pkg"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Environment, cfg.LogLevel)
	slogger := utils.ToSlogLogger(logger)
	slog.SetDefault(slogger)

	if err := run(cfg, logger, slogger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger utils.Logger, slogger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	var redisClient *redis.Client
	if cfg.LockBackend == "redis" || cfg.TestCacheTTL > 0 {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			if cfg.LockBackend == "redis" {
				return err
			}
			logger.Warn("Redis unavailable, test registry cache disabled", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	tests := repo.Tests()
	if redisClient != nil {
		tests = cache.NewTestRegistry(tests, cache.NewRedisCache(redisClient, logger), cfg.TestCacheTTL, logger)
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.LockBackend == "redis" {
		locker = lock.NewRedisLocker(redisClient, cfg.LockTTL, slogger)
	}

	evidence, err := openEvidenceStore(cfg, logger)
	if err != nil {
		return err
	}

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		logger.Error("Failed to create event publisher, falling back to mock", "error", err)
		publisher = events.NewMockEventPublisher(slogger)
	}
	defer publisher.Close()

	serviceManager := services.NewServiceManager(services.Dependencies{
		Repo:      repo,
		Tests:     tests,
		Locker:    locker,
		Detector:  newDetector(cfg.Detector, slogger),
		Evidence:  evidence,
		Publisher: publisher,
		Validator: validator.New(),
		Logger:    slogger,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(logger, cfg.CORSOrigins)

	var auth gin.HandlerFunc
	if cfg.Auth.Enabled {
		auth = handlers.AuthMiddleware(handlers.NewCasdoorTokenParser(cfg.Auth), logger)
	}
	handlers.NewHandlerManager(serviceManager, repo, auth, cfg.Auth.Reviewers, logger).SetupRoutes(router)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Proctoring service starting",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"store", cfg.StoreDriver,
			"lock", cfg.LockBackend,
			"detector", cfg.Detector.Mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openRepository(cfg *config.Config, logger utils.Logger) (repositories.Repository, error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		return memory.NewStore(), nil
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.AutoMigrate(db); err != nil {
		return nil, err
	}
	return postgres.NewRepository(db), nil
}

func openEvidenceStore(cfg *config.Config, logger utils.Logger) (storage.EvidenceStore, error) {
	if cfg.EvidenceDir == "" {
		logger.Warn("No evidence directory configured, evidence will be discarded")
		return storage.Discard{}, nil
	}
	return storage.NewFSStore(cfg.EvidenceDir)
}

func newDetector(cfg config.DetectorConfig, logger *slog.Logger) detector.Detector {
	var next detector.Detector
	switch cfg.Mode {
	case "subprocess":
		next = detector.NewSubprocessDetector(cfg.Command, cfg.Script, cfg.MaxFrames, logger)
	case "http":
		next = detector.NewHTTPDetector(cfg.URL, &http.Client{Timeout: cfg.Timeout})
	default:
		logger.Warn("Violation detector disabled", "mode", cfg.Mode)
		return detector.Disabled{}
	}

	return detector.NewGuarded(next, detector.GuardOptions{
		Timeout:          cfg.Timeout,
		ErrorThreshold:   cfg.BreakerErrorThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		Cooldown:         cfg.BreakerCooldown,
	}, logger)
}
