package postgres

import (
	"context"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
	"gorm.io/gorm"
)

type LedgerPostgreSQL struct {
	db *gorm.DB
}

func NewLedgerPostgreSQL(db *gorm.DB) repositories.LedgerRepository {
	return &LedgerPostgreSQL{db: db}
}

func (l LedgerPostgreSQL) Append(ctx context.Context, event *models.ProctoringEvent) (uint, error) {
	if err := l.db.WithContext(ctx).Omit("Attempt").Create(event).Error; err != nil {
		return 0, err
	}
	return event.ID, nil
}

func (l LedgerPostgreSQL) GetByID(ctx context.Context, id uint) (*models.ProctoringEvent, error) {
	var event models.ProctoringEvent
	if err := l.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, translate(err)
	}
	return &event, nil
}

func (l LedgerPostgreSQL) ListByAttempt(ctx context.Context, attemptID uint) ([]*models.ProctoringEvent, error) {
	var events []*models.ProctoringEvent
	if err := l.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("timestamp ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (l LedgerPostgreSQL) CountByAttempt(ctx context.Context, attemptID uint) (int, error) {
	var count int64
	if err := l.db.WithContext(ctx).
		Model(&models.ProctoringEvent{}).
		Where("attempt_id = ?", attemptID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// Annotate writes review metadata only; label, severity and timestamp are never touched.
func (l LedgerPostgreSQL) Annotate(ctx context.Context, id uint, review models.Review) (*models.ProctoringEvent, error) {
	result := l.db.WithContext(ctx).
		Model(&models.ProctoringEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reviewed":    true,
			"verdict":     review.Verdict,
			"reviewer":    review.Reviewer,
			"reviewed_at": review.At,
			"notes":       review.Notes,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, repositories.ErrNotFound
	}
	return l.GetByID(ctx, id)
}
