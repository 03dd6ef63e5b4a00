package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"chatbot-console/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db  *gorm.DB
	now Clock
}

func NewGormStore(db *gorm.DB, now Clock) *GormStore {
	if now == nil {
		now = time.Now
	}
	return &GormStore{db: db, now: now}
}

func (s *GormStore) Get(ctx context.Context, key string) (*Entry, error) {
	var row models.StoredValue
	err := s.db.WithContext(ctx).Where("store_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Entry{Data: json.RawMessage(row.Data), Timestamp: row.Timestamp}, nil
}

func (s *GormStore) Set(ctx context.Context, key string, data interface{}) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}

	row := models.StoredValue{
		Key:       key,
		Data:      string(encoded),
		Timestamp: s.now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "timestamp", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("store_key = ?", key).Delete(&models.StoredValue{}).Error
}
