package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ServiceLogger provides structured logging for service layer operations
type ServiceLogger struct {
	logger *slog.Logger
}

type LogConfig struct {
	Service   string
	Component string
}

func NewServiceLogger(logger *slog.Logger, config LogConfig) *ServiceLogger {
	return &ServiceLogger{
		logger: logger.With("service", config.Service, "component", config.Component),
	}
}

func (l *ServiceLogger) Logger() *slog.Logger {
	return l.logger
}

// ===== OPERATION LOGGING =====

// LogOperation logs the outcome of one operation at a level chosen from the error kind.
func (l *ServiceLogger) LogOperation(ctx context.Context, operation, testID, studentID string, attemptID uint, duration time.Duration, err error) {
	level := slog.LevelInfo
	status := "success"

	if err != nil {
		level = slog.LevelError
		status = "error"

		switch {
		case IsValidation(err):
			level = slog.LevelWarn
			status = "validation_error"
		case IsConflict(err):
			level = slog.LevelWarn
			status = "conflict"
		case IsAccessDenied(err):
			level = slog.LevelWarn
			status = "access_denied"
		case IsNotFound(err):
			status = "not_found"
		}
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("test_id", testID),
		slog.String("student_id", studentID),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}
	if attemptID != 0 {
		attrs = append(attrs, slog.Uint64("attempt_id", uint64(attemptID)))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		if ve, ok := err.(ValidationErrors); ok {
			attrs = append(attrs, slog.Any("fields", ve.Fields()))
		}
	}

	l.logger.LogAttrs(ctx, level, fmt.Sprintf("%s operation %s", operation, status), attrs...)
}

// ContextualLogger times one operation and logs its result
type ContextualLogger struct {
	logger    *ServiceLogger
	ctx       context.Context
	operation string
	testID    string
	studentID string
	startTime time.Time
}

func (l *ServiceLogger) WithOperation(ctx context.Context, operation, testID, studentID string) *ContextualLogger {
	return &ContextualLogger{
		logger:    l,
		ctx:       ctx,
		operation: operation,
		testID:    testID,
		studentID: studentID,
		startTime: time.Now(),
	}
}

func (cl *ContextualLogger) LogResult(attemptID uint, err error) {
	cl.logger.LogOperation(cl.ctx, cl.operation, cl.testID, cl.studentID, attemptID, time.Since(cl.startTime), err)
}
