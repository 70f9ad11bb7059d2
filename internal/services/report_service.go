package services

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
)

const (
	summarySheet    = "Summary"
	violationsSheet = "Violations"
	reportTimeFmt   = "2006-01-02 15:04:05"
)

type reportService struct {
	attempts AttemptService
	logger   *ServiceLogger
}

func NewReportService(attempts AttemptService, logger *ServiceLogger) ReportService {
	return &reportService{
		attempts: attempts,
		logger:   logger,
	}
}

func (s *reportService) AttemptReport(ctx context.Context, testID, studentID string) (data []byte, err error) {
	op := s.logger.WithOperation(ctx, "attempt_report", testID, studentID)
	var attemptID uint
	defer func() { op.LogResult(attemptID, err) }()

	detail, err := s.attempts.GetDetail(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}
	attemptID = detail.Attempt.ID

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	if err := writeSummary(f, detail.Attempt); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(violationsSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	if err := writeViolations(f, detail.Events); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, a *models.ExamAttempt) error {
	rows := [][]interface{}{
		{"Test ID", a.TestID},
		{"Student ID", a.StudentID},
		{"Status", string(a.Status)},
		{"Started At", formatTime(a.StartedAt)},
		{"Ended At", formatTime(a.EndedAt)},
		{"Duration (seconds)", a.Duration},
		{"Total Score", a.TotalScore},
		{"Trust Score", a.TrustScore},
		{"Total Violations", a.TotalViolations},
		{"Questions Attempted", a.QuestionsAttempted},
	}
	return writeRows(f, summarySheet, rows)
}

func writeViolations(f *excelize.File, ledger []models.ProctoringEvent) error {
	rows := [][]interface{}{
		{"Event ID", "Timestamp", "Label", "Severity", "Source", "Detector Label", "Evidence", "Reviewed", "Verdict", "Reviewer", "Notes"},
	}
	for _, e := range ledger {
		row := []interface{}{
			e.ID,
			e.Timestamp.UTC().Format(reportTimeFmt),
			string(e.Label),
			string(e.Severity),
			string(e.Source),
			e.DetectorLabel,
			deref(e.EvidenceRef),
			e.Reviewed,
		}
		if e.Verdict != nil {
			row = append(row, string(*e.Verdict))
		} else {
			row = append(row, "")
		}
		row = append(row, deref(e.Reviewer), deref(e.Notes))
		rows = append(rows, row)
	}
	return writeRows(f, violationsSheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write cell %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(reportTimeFmt)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
