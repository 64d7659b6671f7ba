package models

import (
	"time"

	"gorm.io/datatypes"
)

// KVEntry is one persisted key/value slot.
type KVEntry struct {
	Key       string         `gorm:"column:key;primaryKey;size:191" json:"key"`
	Value     datatypes.JSON `gorm:"column:value;type:jsonb;not null" json:"value"`
	UpdatedAt time.Time      `gorm:"column:updated_at"                json:"updatedAt"`
}

// TableName specifies the table name for KVEntry
func (KVEntry) TableName() string {
	return "kv_entries"
}
