package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
	"gorm.io/gorm"
)

// Repository is the gorm-backed repositories.Repository.
type Repository struct {
	db       *gorm.DB
	attempts repositories.AttemptRepository
	ledger   repositories.LedgerRepository
	tests    repositories.TestRegistry
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:       db,
		attempts: NewAttemptPostgreSQL(db),
		ledger:   NewLedgerPostgreSQL(db),
		tests:    NewTestRegistryPostgreSQL(db),
	}
}

func (r *Repository) Attempts() repositories.AttemptRepository { return r.attempts }
func (r *Repository) Ledger() repositories.LedgerRepository    { return r.ledger }
func (r *Repository) Tests() repositories.TestRegistry         { return r.tests }

func (r *Repository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{
			db:       tx,
			attempts: NewAttemptPostgreSQL(tx),
			ledger:   NewLedgerPostgreSQL(tx),
			tests:    r.tests,
		})
	})
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", repositories.ErrUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", repositories.ErrUnavailable, err)
	}
	return nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate creates the attempt and ledger tables. The test and question
// tables are owned elsewhere; they are only created when absent so local runs work.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.ExamAttempt{}, &models.ProctoringEvent{}); err != nil {
		return fmt.Errorf("failed to migrate proctoring tables: %w", err)
	}
	for _, m := range []interface{}{&models.Test{}, &models.Question{}} {
		if db.Migrator().HasTable(m) {
			continue
		}
		if err := db.Migrator().CreateTable(m); err != nil {
			return fmt.Errorf("failed to create registry table: %w", err)
		}
	}
	return nil
}
