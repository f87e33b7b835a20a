package domain

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StoredState struct - A persisted value keyed by name
type StoredState struct {
	Key       string     `gorm:"type:varchar(128);primary_key;"`
	Value     string     `gorm:"type:text;not null;"`
	CreatedAt *time.Time `gorm:"type:timestamp"`
	UpdatedAt *time.Time `gorm:"type:timestamp"`
}

// TableName func
func (s *StoredState) TableName() string {
	return "client_states"
}

// BeforeSave hook - stamps the modification time
func (s *StoredState) BeforeSave(tx *gorm.DB) (err error) {
	now := time.Now().UTC()
	if s.CreatedAt == nil {
		s.CreatedAt = &now
	}
	s.UpdatedAt = &now
	return nil
}

// MigrateDatabase func - Auto-migrate database schema
func MigrateDatabase(db *gorm.DB) error {
	if db == nil {
		return ErrStorageUnavailable
	}

	logrus.Info("Migrate database ...")
	return db.AutoMigrate(&StoredState{})
}
