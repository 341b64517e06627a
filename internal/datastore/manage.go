package datastore

import (
	"os"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
)

// DefaultSlowQueryThreshold is the duration after which a query is logged as slow.
const DefaultSlowQueryThreshold = 500 * time.Millisecond

// createGormLogger routes GORM output through the datastore module logger.
func createGormLogger() gormlogger.Interface {
	return logger.NewGormLoggerAdapter(GetLogger().Module("sql"), DefaultSlowQueryThreshold)
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Context("directory", dir).
			Build()
	}
	return nil
}

// performAutoMigration creates or updates the reference tables.
func performAutoMigration(db *gorm.DB, dbType string) error {
	migrationStart := time.Now()
	log := GetLogger().With(logger.String("db_type", dbType))

	tableMappings := []struct {
		model any
		name  string
	}{
		{&StateSoil{}, "state_soil_data"},
		{&StateWeather{}, "state_weather_data"},
		{&DiseaseInfo{}, "disease_info"},
		{&SupplementInfo{}, "supplement_info"},
	}

	for _, table := range tableMappings {
		if err := migrateTable(db, table.model, table.name, dbType, log); err != nil {
			return err
		}
	}

	log.Debug("Database migration completed",
		logger.Duration("total_duration", time.Since(migrationStart)),
		logger.Int("tables_migrated", len(tableMappings)))
	return nil
}

// migrateTable migrates a single table with logging
func migrateTable(db *gorm.DB, model any, tableName, dbType string, log logger.Logger) error {
	tableStart := time.Now()
	tableExists := db.Migrator().HasTable(model)

	if err := db.AutoMigrate(model); err != nil {
		enhancedErr := errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Priority(errors.PriorityCritical).
			Context("operation", "auto_migrate_table").
			Context("db_type", dbType).
			Context("table", tableName).
			Build()
		log.Error("Table migration failed",
			logger.String("table", tableName),
			logger.Error(enhancedErr))
		return enhancedErr
	}

	action := "updated"
	if !tableExists {
		action = "created"
	}
	log.Debug("Table migrated",
		logger.String("table", tableName),
		logger.String("action", action),
		logger.Duration("duration", time.Since(tableStart)))
	return nil
}

// Migrate creates the reference tables on an already opened connection.
func Migrate(db *gorm.DB) error {
	return performAutoMigration(db, db.Name())
}
