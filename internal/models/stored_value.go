package models

import "time"

// StoredValue is one persisted client-state entry. Key already carries the
// owner's namespace (see store.Prefixed).
type StoredValue struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:store_key;type:varchar(255);not null;uniqueIndex" json:"key"`
	Data      string    `gorm:"type:text" json:"data"` // JSON
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StoredValue) TableName() string {
	return "stored_values"
}
