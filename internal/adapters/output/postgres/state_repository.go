package postgres

import (
	"context"
	"errors"
	"fmt"

	"facebot/internal/domain"
	"facebot/internal/ports/output"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Compile-time check to ensure StateRepository implements output.StateStorage interface
var _ output.StateStorage = (*StateRepository)(nil)

// StateRepository struct - Secondary/Driven adapter for PostgreSQL
type StateRepository struct {
	dbGorm *gorm.DB
}

// NewStateRepository func - Creates new PostgreSQL repository and migrates its table
func NewStateRepository(dbGorm *gorm.DB) (*StateRepository, error) {
	if err := domain.MigrateDatabase(dbGorm); err != nil {
		logrus.Errorln(err)
		return nil, err
	}
	return &StateRepository{
		dbGorm: dbGorm,
	}, nil
}

// Load func - Reads the value stored under key
func (p *StateRepository) Load(ctx context.Context, key string) ([]byte, error) {
	var state domain.StoredState
	err := p.dbGorm.WithContext(ctx).Where("key = ?", key).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		logrus.Errorln(err)
		return nil, fmt.Errorf("load state %q: %w", key, err)
	}
	return []byte(state.Value), nil
}

// Save func - Inserts or overwrites the value stored under key
func (p *StateRepository) Save(ctx context.Context, key string, value []byte) error {
	state := domain.StoredState{
		Key:   key,
		Value: string(value),
	}
	if err := upsert(p.dbGorm.WithContext(ctx), &state).Error; err != nil {
		logrus.Errorln(err)
		return fmt.Errorf("save state %q: %w", key, err)
	}
	return nil
}

// Clear func - Removes the value stored under key
func (p *StateRepository) Clear(ctx context.Context, key string) error {
	tx := p.dbGorm.WithContext(ctx).Begin()
	defer func() {
		tx.Rollback()
	}()
	if err := tx.Where("key = ?", key).Delete(&domain.StoredState{}).Error; err != nil {
		logrus.Errorln(err)
		return fmt.Errorf("clear state %q: %w", key, err)
	}
	return tx.Commit().Error
}

func upsert(tx *gorm.DB, state *domain.StoredState) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(state)
}
