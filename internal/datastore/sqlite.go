package datastore

import (
	"fmt"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/logger"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open opens (creating if needed) the SQLite database and migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.RefData.SQLite.Path
	if path != ":memory:" {
		path = store.Settings.ResolvePath(path)
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		GetLogger().Error("Failed to open SQLite database",
			logger.String("path", path),
			logger.Error(err))
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to retrieve generic DB object: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	store.DB = db
	return performAutoMigration(db, "SQLite")
}

// Close closes the SQLite database.
func (store *SQLiteStore) Close() error {
	return closeDB(store.DB)
}
