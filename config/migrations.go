package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"p9e.in/zeladoria/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "01062025_create_kv_entries",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.KVEntry{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("kv_entries")
			},
		},
		{
			ID: "01062025_create_reports",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.ReportRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("reports")
			},
		},
		{
			ID: "10062025_reports_created_at_index",
			Migrate: func(tx *gorm.DB) error {
				// list views sort by creation time within a gabinete
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_reports_gabinete_created ON reports (gabinete_id, created_at DESC)").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_reports_gabinete_created").Error
			},
		},
	})
	return m.Migrate()
}
