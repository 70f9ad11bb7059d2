package postgres

import (
	"context"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
	"gorm.io/gorm"
)

type TestRegistryPostgreSQL struct {
	db *gorm.DB
}

func NewTestRegistryPostgreSQL(db *gorm.DB) repositories.TestRegistry {
	return &TestRegistryPostgreSQL{db: db}
}

func (r TestRegistryPostgreSQL) GetTest(ctx context.Context, testID string) (*models.Test, error) {
	var test models.Test
	if err := r.db.WithContext(ctx).Where("id = ?", testID).First(&test).Error; err != nil {
		return nil, translate(err)
	}
	return &test, nil
}

func (r TestRegistryPostgreSQL) GetQuestions(ctx context.Context, ids []string) ([]models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var questions []models.Question
	if err := r.db.WithContext(ctx).
		Select("id", "type", "text", "options", "marks").
		Where("id IN ?", ids).
		Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r TestRegistryPostgreSQL) GetAnswerKeys(ctx context.Context, ids []string) ([]models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var questions []models.Question
	if err := r.db.WithContext(ctx).
		Select("id", "type", "answer_key", "marks").
		Where("id IN ?", ids).
		Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}
