package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// Open connects to MySQL and migrates the schema.
func (store *MySQLStore) Open() error {
	m := store.Settings.RefData.MySQL

	db, err := gorm.Open(mysql.Open(m.DSN()), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		GetLogger().Error("Failed to open MySQL database",
			logger.String("host", m.Host),
			logger.String("port", m.Port),
			logger.String("database", m.Database),
			logger.Error(err))
		return fmt.Errorf("failed to open MySQL database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db, "MySQL")
}

// Close closes the MySQL connection pool.
func (store *MySQLStore) Close() error {
	if err := closeDB(store.DB); err != nil {
		GetLogger().Error("Failed to close MySQL database", logger.Error(err))
		return err
	}
	return nil
}
