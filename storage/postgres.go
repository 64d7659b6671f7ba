package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"p9e.in/zeladoria/models"
)

// PostgresKV keeps slots in the kv_entries table.
type PostgresKV struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPostgresKV(db *gorm.DB) *PostgresKV {
	return &PostgresKV{db: db, now: time.Now}
}

func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var entry models.KVEntry
	err := p.db.WithContext(ctx).Where("key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select %s: %v", ErrUnavailable, key, err)
	}
	return []byte(entry.Value), nil
}

func (p *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	entry := models.KVEntry{
		Key:       key,
		Value:     datatypes.JSON(value),
		UpdatedAt: p.now().UTC(),
	}
	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %v", ErrUnavailable, key, err)
	}
	return nil
}
