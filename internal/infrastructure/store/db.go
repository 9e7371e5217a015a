package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shelflink/backend/internal/domain"
)

// Open connects to the configured database. driver is "sqlite" or
// "postgres"; dsn is a file path (sqlite) or connection string (postgres).
func Open(driver, dsn string) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	switch driver {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		return db, nil
	case "postgres":
		db, err := gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("opening postgres database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// Migrate creates the schema and the partial unique index guarding the
// one-active-match-per-pair invariant at the storage layer.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Source{},
		&domain.InternalProduct{},
		&domain.ExternalProduct{},
		&domain.MatchRecord{},
	); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	// Partial unique index: at most one active (matched) row per pair.
	// Supported by both sqlite and postgres.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_match_active_pair
		ON match_records (local_product_id, external_product_key, source_id)
		WHERE status = 'matched'`).Error; err != nil {
		return fmt.Errorf("creating active-pair index: %w", err)
	}

	return nil
}
